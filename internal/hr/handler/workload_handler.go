package handler

import (
	"github.com/bitfantasy/nimo-hr/internal/hr/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WorkloadHandler struct {
	svc    *service.WorkloadService
	logger *zap.Logger
}

func NewWorkloadHandler(svc *service.WorkloadService, logger *zap.Logger) *WorkloadHandler {
	return &WorkloadHandler{svc: svc, logger: logger}
}

type CapacityRequest struct {
	WeeklyCapacityHours float64 `json:"weekly_capacity_hours" binding:"required"`
}

// Get GET /api/v1/workload/employees/:id?week=YYYY-MM-DD
func (h *WorkloadHandler) Get(c *gin.Context) {
	week, err := queryDate(c, "week", h.svc.CurrentWeek())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	row, err := h.svc.Get(c.Request.Context(), ActorFrom(c), c.Param("id"), week)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, row)
}

// Team GET /api/v1/workload/team?department_id=&week=
func (h *WorkloadHandler) Team(c *gin.Context) {
	week, err := queryDate(c, "week", h.svc.CurrentWeek())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	items, err := h.svc.TeamWorkload(c.Request.Context(), ActorFrom(c), c.Query("department_id"), week)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// SetCapacity PUT /api/v1/workload/employees/:id/capacity?week=
func (h *WorkloadHandler) SetCapacity(c *gin.Context) {
	var req CapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	week, err := queryDate(c, "week", h.svc.CurrentWeek())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	row, err := h.svc.SetCapacity(c.Request.Context(), ActorFrom(c), c.Param("id"), week, req.WeeklyCapacityHours)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, row)
}

// Recalculate POST /api/v1/workload/employees/:id/recalculate?week=
func (h *WorkloadHandler) Recalculate(c *gin.Context) {
	week, err := queryDate(c, "week", h.svc.CurrentWeek())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	actor := ActorFrom(c)
	if c.Param("id") != actor.EmployeeID && !actor.IsManager() {
		Forbidden(c, "cannot recalculate another employee's workload")
		return
	}
	row, err := h.svc.Recalculate(c.Request.Context(), c.Param("id"), week)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, row)
}
