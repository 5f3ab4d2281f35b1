package handler

import (
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	svc    *service.AnalyticsService
	logger *zap.Logger
}

func NewAnalyticsHandler(svc *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger}
}

// Summary GET /api/v1/analytics/employees/:id?from=&to=
// Defaults to the 30 days ending today.
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	summary, err := h.svc.Summary(c.Request.Context(), ActorFrom(c), c.Param("id"), from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, summary)
}

// Recompute POST /api/v1/analytics/employees/:id/recompute?from=&to=
func (h *AnalyticsHandler) Recompute(c *gin.Context) {
	actor := ActorFrom(c)
	if !actor.IsAdmin() {
		Forbidden(c, "recompute is limited to hr admins")
		return
	}
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	n, err := h.svc.RecomputeRange(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"days": n})
}

func (h *AnalyticsHandler) dateRange(c *gin.Context) (from, to time.Time, ok bool) {
	to, err := queryDate(c, "to", h.svc.Today())
	if err != nil {
		respondError(c, h.logger, err)
		return from, to, false
	}
	from, err = queryDate(c, "from", to.AddDate(0, 0, -29))
	if err != nil {
		respondError(c, h.logger, err)
		return from, to, false
	}
	return from, to, true
}
