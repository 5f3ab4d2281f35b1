package entity

import "time"

// Productivity trend
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// EmployeeProductivityAnalytics per-employee per-day projection of task and
// timesheet activity.
type EmployeeProductivityAnalytics struct {
	ID                  string    `json:"id" gorm:"primaryKey;size:36"`
	EmployeeID          string    `json:"employee_id" gorm:"size:36;not null;uniqueIndex:idx_analytics_employee_day"`
	Date                time.Time `json:"date" gorm:"type:date;not null;uniqueIndex:idx_analytics_employee_day"`
	TasksCompleted      int       `json:"tasks_completed" gorm:"not null"`
	TasksCreated        int       `json:"tasks_created" gorm:"not null"`
	TotalProgressPoints int       `json:"total_progress_points" gorm:"not null"`
	HoursLogged         float64   `json:"hours_logged" gorm:"type:decimal(6,2);not null"`
	CurrentStreak       int       `json:"current_streak" gorm:"not null"`
	MaxStreak           int       `json:"max_streak" gorm:"not null"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (EmployeeProductivityAnalytics) TableName() string {
	return "employee_productivity_analytics"
}
