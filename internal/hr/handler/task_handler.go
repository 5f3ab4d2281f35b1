package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/bitfantasy/nimo-hr/internal/hr/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TaskHandler struct {
	svc    *service.TaskService
	logger *zap.Logger
}

func NewTaskHandler(svc *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

type ReassignRequest struct {
	AssigneeID string `json:"assignee_id" binding:"required"`
}

// List GET /api/v1/tasks?kind=&owner_id=&assignee_id=&project_id=&status=&important=
func (h *TaskHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	f := repository.TaskFilter{
		Kind:       c.Query("kind"),
		OwnerID:    c.Query("owner_id"),
		AssigneeID: c.Query("assignee_id"),
		ProjectID:  c.Query("project_id"),
		Status:     c.Query("status"),
		Page:       page,
		PageSize:   pageSize,
	}
	if raw := c.Query("important"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			BadRequest(c, "important must be a boolean")
			return
		}
		f.IsImportant = &v
	}
	items, total, err := h.svc.List(c.Request.Context(), ActorFrom(c), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Paged(c, items, total, page, pageSize)
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req service.CreateTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	task, err := h.svc.Create(c.Request.Context(), ActorFrom(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Created(c, task)
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.svc.Get(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, task)
}

func (h *TaskHandler) Update(c *gin.Context) {
	var req service.UpdateTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	task, err := h.svc.Update(c.Request.Context(), ActorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, task)
}

func (h *TaskHandler) Reassign(c *gin.Context) {
	var req ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	task, err := h.svc.Reassign(c.Request.Context(), ActorFrom(c), c.Param("id"), req.AssigneeID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, task)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), ActorFrom(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, nil)
}

// Activity GET /api/v1/tasks/:id/activity
func (h *TaskHandler) Activity(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.Activity(c.Request.Context(), ActorFrom(c), c.Param("id"), page, pageSize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Paged(c, items, total, page, pageSize)
}
