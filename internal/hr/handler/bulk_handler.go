package handler

import (
	"github.com/bitfantasy/nimo-hr/internal/hr/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BulkHandler struct {
	svc    *service.BulkService
	logger *zap.Logger
}

func NewBulkHandler(svc *service.BulkService, logger *zap.Logger) *BulkHandler {
	return &BulkHandler{svc: svc, logger: logger}
}

// Execute runs a batch synchronously and returns the terminal record.
// A rejected batch is still recorded; its record comes back as data with
// the 400.
// POST /api/v1/bulk-operations
func (h *BulkHandler) Execute(c *gin.Context) {
	var req service.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	op, err := h.svc.Execute(c.Request.Context(), ActorFrom(c), req)
	if err != nil {
		if op != nil {
			respondErrorWithData(c, h.logger, err, op)
			return
		}
		respondError(c, h.logger, err)
		return
	}
	Created(c, op)
}

func (h *BulkHandler) Get(c *gin.Context) {
	op, err := h.svc.Get(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, op)
}

func (h *BulkHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListMine(c.Request.Context(), ActorFrom(c), page, pageSize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Paged(c, items, total, page, pageSize)
}
