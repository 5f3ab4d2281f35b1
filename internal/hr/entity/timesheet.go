package entity

import (
	"time"

	"gorm.io/gorm"
)

// Timesheet overall status
const (
	TimesheetStatusDraft    = "draft"
	TimesheetStatusInReview = "in_review"
	TimesheetStatusApproved = "approved"
	TimesheetStatusRejected = "rejected"
	TimesheetStatusReopened = "reopened"
)

// Approval row status
const (
	ApprovalStatusPending    = "pending"
	ApprovalStatusApproved   = "approved"
	ApprovalStatusRejected   = "rejected"
	ApprovalStatusReopened   = "reopened"
	ApprovalStatusAutoClosed = "auto_closed"
)

// Pipeline stages, in order.
const (
	StagePM = "pm"
	StageDM = "dm"
	StageGM = "gm"
)

// ApprovalStages is the fixed approval pipeline.
var ApprovalStages = []string{StagePM, StageDM, StageGM}

// Workflow history actions
const (
	HistoryActionSubmitted = "submitted"
	HistoryActionApproved  = "approved"
	HistoryActionRejected  = "rejected"
	HistoryActionReopened  = "reopened"
	HistoryActionWithdrawn = "withdrawn"
)

// HistoryStageEmployee marks history rows written by the timesheet owner.
const HistoryStageEmployee = "employee"

// NextStage returns the stage after stage, or false when stage is the last one.
func NextStage(stage string) (string, bool) {
	for i, s := range ApprovalStages {
		if s == stage && i+1 < len(ApprovalStages) {
			return ApprovalStages[i+1], true
		}
	}
	return "", false
}

// IsStage reports whether s is one of the pipeline stages.
func IsStage(s string) bool {
	for _, st := range ApprovalStages {
		if st == s {
			return true
		}
	}
	return false
}

// Timesheet one employee's week.
type Timesheet struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	EmployeeID    string     `json:"employee_id" gorm:"size:36;not null;uniqueIndex:idx_timesheet_employee_period"`
	PeriodStart   time.Time  `json:"period_start" gorm:"type:date;not null;uniqueIndex:idx_timesheet_employee_period"`
	PeriodEnd     time.Time  `json:"period_end" gorm:"type:date;not null"`
	OverallStatus string     `json:"overall_status" gorm:"size:20;not null;default:'draft';index"`
	CurrentStage  string     `json:"current_stage" gorm:"size:8"`
	Cycle         int        `json:"cycle" gorm:"not null;default:0"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Employee  *Employee                  `json:"employee,omitempty" gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE"`
	Rows      []TimesheetRow             `json:"rows,omitempty" gorm:"foreignKey:TimesheetID;constraint:OnDelete:CASCADE"`
	Approvals []TimesheetApproval        `json:"approvals,omitempty" gorm:"foreignKey:TimesheetID;constraint:OnDelete:CASCADE"`
	History   []TimesheetWorkflowHistory `json:"history,omitempty" gorm:"foreignKey:TimesheetID;constraint:OnDelete:CASCADE"`
	Chats     []TimesheetChat            `json:"chats,omitempty" gorm:"foreignKey:TimesheetID;constraint:OnDelete:CASCADE"`
}

func (Timesheet) TableName() string {
	return "timesheets"
}

// Editable reports whether rows may change in the current status.
func (t *Timesheet) Editable() bool {
	return t.OverallStatus == TimesheetStatusDraft || t.OverallStatus == TimesheetStatusReopened
}

// TotalHours sums all rows.
func (t *Timesheet) TotalHours() float64 {
	var total float64
	for _, r := range t.Rows {
		total += r.TotalHours
	}
	return Round2(total)
}

// TimesheetRow hours for one project/task across the week. TotalHours is
// derived in BeforeSave and never taken from input.
type TimesheetRow struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	TimesheetID string    `json:"timesheet_id" gorm:"size:36;not null;index"`
	ProjectID   *string   `json:"project_id" gorm:"size:36;index"`
	TaskID      *string   `json:"task_id" gorm:"size:36"`
	Description string    `json:"description" gorm:"type:text"`
	MonHours    float64   `json:"mon_hours" gorm:"type:decimal(5,2);not null;default:0"`
	TueHours    float64   `json:"tue_hours" gorm:"type:decimal(5,2);not null;default:0"`
	WedHours    float64   `json:"wed_hours" gorm:"type:decimal(5,2);not null;default:0"`
	ThuHours    float64   `json:"thu_hours" gorm:"type:decimal(5,2);not null;default:0"`
	FriHours    float64   `json:"fri_hours" gorm:"type:decimal(5,2);not null;default:0"`
	SatHours    float64   `json:"sat_hours" gorm:"type:decimal(5,2);not null;default:0"`
	SunHours    float64   `json:"sun_hours" gorm:"type:decimal(5,2);not null;default:0"`
	TotalHours  float64   `json:"total_hours" gorm:"type:decimal(6,2);not null;default:0"`
	SortOrder   int       `json:"sort_order" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

func (TimesheetRow) TableName() string {
	return "timesheet_rows"
}

// DayHours returns Monday..Sunday.
func (r *TimesheetRow) DayHours() [7]float64 {
	return [7]float64{r.MonHours, r.TueHours, r.WedHours, r.ThuHours, r.FriHours, r.SatHours, r.SunHours}
}

// SetDayHours assigns Monday..Sunday and recomputes the total.
func (r *TimesheetRow) SetDayHours(h [7]float64) {
	r.MonHours, r.TueHours, r.WedHours, r.ThuHours = h[0], h[1], h[2], h[3]
	r.FriHours, r.SatHours, r.SunHours = h[4], h[5], h[6]
	r.RecalculateTotal()
}

// HoursOn returns the hours for the weekday of day.
func (r *TimesheetRow) HoursOn(day time.Time) float64 {
	return r.DayHours()[WeekdayIndex(day)]
}

// RecalculateTotal keeps TotalHours equal to the sum of the day columns.
func (r *TimesheetRow) RecalculateTotal() {
	var sum float64
	for _, h := range r.DayHours() {
		sum += h
	}
	r.TotalHours = Round2(sum)
}

func (r *TimesheetRow) BeforeSave(tx *gorm.DB) error {
	r.RecalculateTotal()
	return nil
}

// TimesheetApproval state of one stage in one submission cycle. Several rows
// per (timesheet, approver) accumulate across cycles.
type TimesheetApproval struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	TimesheetID  string     `json:"timesheet_id" gorm:"size:36;not null;index"`
	ApproverID   *string    `json:"approver_id" gorm:"size:36;index"`
	ApproverRole string     `json:"approver_role" gorm:"size:8;not null"`
	Cycle        int        `json:"cycle" gorm:"not null;default:1"`
	Status       string     `json:"status" gorm:"size:20;not null;default:'pending';index"`
	ActedAt      *time.Time `json:"acted_at"`
	Comment      string     `json:"comment" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Approver *Employee `json:"approver,omitempty" gorm:"foreignKey:ApproverID"`
}

func (TimesheetApproval) TableName() string {
	return "timesheet_approvals"
}

// TimesheetWorkflowHistory append-only audit row, one per committed transition.
type TimesheetWorkflowHistory struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	TimesheetID string    `json:"timesheet_id" gorm:"size:36;not null;index"`
	Cycle       int       `json:"cycle" gorm:"not null;default:0"`
	Stage       string    `json:"stage" gorm:"size:16;not null"`
	Action      string    `json:"action" gorm:"size:20;not null"`
	FromStatus  string    `json:"from_status" gorm:"size:20"`
	ToStatus    string    `json:"to_status" gorm:"size:20"`
	ActorID     string    `json:"actor_id" gorm:"size:36;not null"`
	Comment     string    `json:"comment" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

func (TimesheetWorkflowHistory) TableName() string {
	return "timesheet_workflow_histories"
}

// TimesheetChat threaded comment; replies are removed with their parent.
type TimesheetChat struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	TimesheetID string    `json:"timesheet_id" gorm:"size:36;not null;index"`
	ParentID    *string   `json:"parent_id" gorm:"size:36;index"`
	AuthorID    string    `json:"author_id" gorm:"size:36;not null"`
	Message     string    `json:"message" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Replies []TimesheetChat `json:"replies,omitempty" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
}

func (TimesheetChat) TableName() string {
	return "timesheet_chats"
}
