package handler

import (
	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the hr API under /api/v1. Every route requires a
// valid JWT signed with secret.
func RegisterRoutes(r gin.IRouter, h *Handlers, secret, issuer string) {
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(secret, issuer))

	v1.GET("/sse/events", h.SSE.Stream)

	timesheets := v1.Group("/timesheets")
	{
		timesheets.GET("", h.Timesheet.List)
		timesheets.POST("", h.Timesheet.Create)
		timesheets.GET("/pending", h.Timesheet.Pending)
		timesheets.GET("/:id", h.Timesheet.Get)
		timesheets.GET("/:id/history", h.Timesheet.History)
		timesheets.GET("/:id/export", h.Timesheet.Export)
		timesheets.POST("/:id/rows", h.Timesheet.AddRow)
		timesheets.PUT("/:id/rows/:rowId", h.Timesheet.UpdateRow)
		timesheets.DELETE("/:id/rows/:rowId", h.Timesheet.DeleteRow)
		timesheets.POST("/:id/submit", h.Timesheet.Submit)
		timesheets.POST("/:id/approve", h.Timesheet.Approve)
		timesheets.POST("/:id/reject", h.Timesheet.Reject)
		timesheets.POST("/:id/reopen", h.Timesheet.Reopen)
		timesheets.POST("/:id/withdraw", h.Timesheet.Withdraw)
		timesheets.GET("/:id/chats", h.Timesheet.ListChats)
		timesheets.POST("/:id/chats", h.Timesheet.AddChat)
		timesheets.DELETE("/:id/chats/:chatId", h.Timesheet.DeleteChat)
	}

	tasks := v1.Group("/tasks")
	{
		tasks.GET("", h.Task.List)
		tasks.POST("", h.Task.Create)
		tasks.GET("/:id", h.Task.Get)
		tasks.PUT("/:id", h.Task.Update)
		tasks.DELETE("/:id", h.Task.Delete)
		tasks.POST("/:id/reassign", h.Task.Reassign)
		tasks.GET("/:id/activity", h.Task.Activity)
	}

	workload := v1.Group("/workload")
	{
		workload.GET("/team", middleware.RequireRole(entity.ApprovalStages...), h.Workload.Team)
		workload.GET("/employees/:id", h.Workload.Get)
		workload.PUT("/employees/:id/capacity", h.Workload.SetCapacity)
		workload.POST("/employees/:id/recalculate", h.Workload.Recalculate)
	}

	analytics := v1.Group("/analytics")
	{
		analytics.GET("/employees/:id", h.Analytics.Summary)
		analytics.POST("/employees/:id/recompute", middleware.RequireRole(middleware.AdminRole), h.Analytics.Recompute)
	}

	bulk := v1.Group("/bulk-operations")
	{
		bulk.GET("", h.Bulk.List)
		bulk.POST("", middleware.RequireRole(entity.ApprovalStages...), h.Bulk.Execute)
		bulk.GET("/:id", h.Bulk.Get)
	}
}
