package handler

import (
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TimesheetHandler struct {
	svc    *service.TimesheetService
	logger *zap.Logger
}

func NewTimesheetHandler(svc *service.TimesheetService, logger *zap.Logger) *TimesheetHandler {
	return &TimesheetHandler{svc: svc, logger: logger}
}

type CreateTimesheetRequest struct {
	EmployeeID string `json:"employee_id"`
	// any day of the target week, YYYY-MM-DD; empty means the current week
	Week string `json:"week"`
}

type ApprovalRequest struct {
	Stage   string `json:"stage" binding:"required"`
	Comment string `json:"comment"`
}

type ReasonRequest struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

type ChatRequest struct {
	ParentID *string `json:"parent_id"`
	Message  string  `json:"message" binding:"required"`
}

// Create opens a draft timesheet.
// POST /api/v1/timesheets
func (h *TimesheetHandler) Create(c *gin.Context) {
	var req CreateTimesheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	var day time.Time
	if req.Week != "" {
		d, err := time.Parse(dateLayout, req.Week)
		if err != nil {
			BadRequest(c, "week must be YYYY-MM-DD")
			return
		}
		day = d
	}
	ts, err := h.svc.CreateDraft(c.Request.Context(), ActorFrom(c), req.EmployeeID, day)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Created(c, ts)
}

// List pages through an employee's timesheets.
// GET /api/v1/timesheets?employee_id=&status=&page=&page_size=
func (h *TimesheetHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListForEmployee(c.Request.Context(), ActorFrom(c), c.Query("employee_id"), c.Query("status"), page, pageSize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Paged(c, items, total, page, pageSize)
}

// Pending lists the approvals waiting on the caller.
// GET /api/v1/timesheets/pending
func (h *TimesheetHandler) Pending(c *gin.Context) {
	items, err := h.svc.ListPendingForActor(c.Request.Context(), ActorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}

func (h *TimesheetHandler) Get(c *gin.Context) {
	ts, err := h.svc.Get(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, ts)
}

func (h *TimesheetHandler) History(c *gin.Context) {
	items, err := h.svc.History(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}

func (h *TimesheetHandler) AddRow(c *gin.Context) {
	var req service.RowInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	row, err := h.svc.AddRow(c.Request.Context(), ActorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Created(c, row)
}

func (h *TimesheetHandler) UpdateRow(c *gin.Context) {
	var req service.RowInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	row, err := h.svc.UpdateRow(c.Request.Context(), ActorFrom(c), c.Param("id"), c.Param("rowId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, row)
}

func (h *TimesheetHandler) DeleteRow(c *gin.Context) {
	if err := h.svc.DeleteRow(c.Request.Context(), ActorFrom(c), c.Param("id"), c.Param("rowId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, nil)
}

func (h *TimesheetHandler) Submit(c *gin.Context) {
	ts, err := h.svc.Submit(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, ts)
}

// Approve POST /api/v1/timesheets/:id/approve {"stage":"pm","comment":"ok"}
func (h *TimesheetHandler) Approve(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	ts, err := h.svc.Approve(c.Request.Context(), ActorFrom(c), c.Param("id"), req.Stage, req.Comment)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, ts)
}

// Reject POST /api/v1/timesheets/:id/reject {"stage":"dm","reason":"..."}
func (h *TimesheetHandler) Reject(c *gin.Context) {
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	ts, err := h.svc.Reject(c.Request.Context(), ActorFrom(c), c.Param("id"), req.Stage, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, ts)
}

func (h *TimesheetHandler) Reopen(c *gin.Context) {
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	ts, err := h.svc.Reopen(c.Request.Context(), ActorFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, ts)
}

func (h *TimesheetHandler) Withdraw(c *gin.Context) {
	ts, err := h.svc.Withdraw(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, ts)
}

func (h *TimesheetHandler) ListChats(c *gin.Context) {
	items, err := h.svc.ListChats(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}

func (h *TimesheetHandler) AddChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	chat, err := h.svc.AddChat(c.Request.Context(), ActorFrom(c), c.Param("id"), req.ParentID, req.Message)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Created(c, chat)
}

func (h *TimesheetHandler) DeleteChat(c *gin.Context) {
	if err := h.svc.DeleteChat(c.Request.Context(), ActorFrom(c), c.Param("id"), c.Param("chatId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, nil)
}

// Export streams the timesheet as an XLSX workbook.
// GET /api/v1/timesheets/:id/export
func (h *TimesheetHandler) Export(c *gin.Context) {
	f, filename, err := h.svc.Export(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("timesheet export write failed", zap.String("timesheet_id", c.Param("id")), zap.Error(err))
	}
}
