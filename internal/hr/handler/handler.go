package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/service"
	"github.com/bitfantasy/nimo-hr/internal/hr/sse"
	"github.com/bitfantasy/nimo-hr/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers of the hr API.
type Handlers struct {
	Timesheet *TimesheetHandler
	Task      *TaskHandler
	Workload  *WorkloadHandler
	Analytics *AnalyticsHandler
	Bulk      *BulkHandler
	SSE       *SSEHandler
}

// NewHandlers builds every handler over one service set.
func NewHandlers(svc *service.Services, hub *sse.Hub, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Timesheet: NewTimesheetHandler(svc.Timesheet, logger),
		Task:      NewTaskHandler(svc.Task, logger),
		Workload:  NewWorkloadHandler(svc.Workload, logger),
		Analytics: NewAnalyticsHandler(svc.Analytics, logger),
		Bulk:      NewBulkHandler(svc.Bulk, logger),
		SSE:       NewSSEHandler(hub),
	}
}

// Response is the envelope of every JSON reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse is the data of paged list replies.
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Paged replies with one page of items.
func Paged(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: pages,
		},
	})
}

// Error replies with an error code; the HTTP status is code/100.
func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// codeOf maps a service error kind to a response code.
func codeOf(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return 40000
	case service.KindAuthorization:
		return 40300
	case service.KindNotFound:
		return 40400
	case service.KindInvalidState:
		return 40900
	default:
		return 50000
	}
}

// respondError writes err with the code of its kind. Internal errors are
// logged and reported without detail.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	respondErrorWithData(c, logger, err, nil)
}

func respondErrorWithData(c *gin.Context, logger *zap.Logger, err error, data interface{}) {
	kind := service.KindOf(err)
	if kind == service.KindInternal {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.KeyRequestID)),
			zap.Error(err))
		ErrorWithData(c, 50000, "internal error", data)
		return
	}
	msg := err.Error()
	var se *service.Error
	if errors.As(err, &se) {
		msg = se.Message
	}
	ErrorWithData(c, codeOf(kind), msg, data)
}

// GetUserID returns the authenticated employee id.
func GetUserID(c *gin.Context) string {
	return c.GetString(middleware.KeyUserID)
}

// ActorFrom builds the service actor from the JWT claims on the context.
func ActorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		EmployeeID:         GetUserID(c),
		Roles:              c.GetStringSlice(middleware.KeyRoles),
		ManagedDepartments: c.GetStringSlice(middleware.KeyDepartments),
	}
}

// GetPagination reads page and page_size (at most 100).
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

const dateLayout = "2006-01-02"

// queryDate parses a YYYY-MM-DD query parameter, returning def when absent.
func queryDate(c *gin.Context, key string, def time.Time) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, service.ErrValidation("%s must be YYYY-MM-DD", key)
	}
	return d, nil
}
