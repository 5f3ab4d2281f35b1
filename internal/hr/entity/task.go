package entity

import "time"

// Task kinds. Personal, project and assigned tasks share one table; the
// assignment-only fields live in TaskAssignment.
const (
	TaskKindPersonal = "personal"
	TaskKindProject  = "project"
	TaskKindAssigned = "assigned"
)

// Task status
const (
	TaskStatusToDo    = "to-do"
	TaskStatusDoing   = "doing"
	TaskStatusDone    = "done"
	TaskStatusBlocked = "blocked"
)

// Assignment permission levels
const (
	PermissionViewOnly     = "view_only"
	PermissionEditProgress = "edit_progress"
	PermissionFullEdit     = "full_edit"
)

// ActiveTaskStatuses count toward planned workload.
var ActiveTaskStatuses = []string{TaskStatusToDo, TaskStatusDoing}

func IsTaskKind(k string) bool {
	return k == TaskKindPersonal || k == TaskKindProject || k == TaskKindAssigned
}

func IsTaskStatus(s string) bool {
	return s == TaskStatusToDo || s == TaskStatusDoing || s == TaskStatusDone || s == TaskStatusBlocked
}

func IsPermissionLevel(p string) bool {
	return p == PermissionViewOnly || p == PermissionEditProgress || p == PermissionFullEdit
}

// Task common shape of every task kind.
type Task struct {
	ID             string     `json:"id" gorm:"primaryKey;size:36"`
	Kind           string     `json:"kind" gorm:"size:16;not null;index"`
	Title          string     `json:"title" gorm:"size:256;not null"`
	Description    string     `json:"description" gorm:"type:text"`
	ProjectID      *string    `json:"project_id" gorm:"size:36;index"`
	OwnerID        string     `json:"owner_id" gorm:"size:36;not null;index"`
	AssigneeID     *string    `json:"assignee_id" gorm:"size:36;index"`
	Status         string     `json:"status" gorm:"size:16;not null;default:'to-do';index"`
	ProgressPoints int        `json:"progress_points" gorm:"not null;default:0"`
	EstimatedHours *float64   `json:"estimated_hours" gorm:"type:decimal(8,2)"`
	ActualHours    float64    `json:"actual_hours" gorm:"type:decimal(8,2);not null;default:0"`
	DueDate        *time.Time `json:"due_date" gorm:"type:date"`
	IsPinned       bool       `json:"is_pinned" gorm:"not null;default:false"`
	IsImportant    bool       `json:"is_important" gorm:"not null;default:false"`
	CompletedAt    *time.Time `json:"completed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Assignment *TaskAssignment `json:"assignment,omitempty" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

func (Task) TableName() string {
	return "tasks"
}

// ResponsibleID is the employee whose workload and analytics the task counts toward.
func (t *Task) ResponsibleID() string {
	if t.AssigneeID != nil && *t.AssigneeID != "" {
		return *t.AssigneeID
	}
	return t.OwnerID
}

// TaskAssignment assignment extension of an assigned task.
type TaskAssignment struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	TaskID          string    `json:"task_id" gorm:"size:36;not null;uniqueIndex:idx_task_assignee"`
	AssigneeID      string    `json:"assignee_id" gorm:"size:36;not null;uniqueIndex:idx_task_assignee;index"`
	AssignerID      string    `json:"assigner_id" gorm:"size:36;not null"`
	PermissionLevel string    `json:"permission_level" gorm:"size:20;not null;default:'full_edit'"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (TaskAssignment) TableName() string {
	return "task_assignments"
}
