package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Task activity actions
const (
	TaskActionCreated           = "created"
	TaskActionUpdated           = "updated"
	TaskActionStatusChanged     = "status_changed"
	TaskActionPinned            = "pinned"
	TaskActionUnpinned          = "unpinned"
	TaskActionMarkedImportant   = "marked_important"
	TaskActionUnmarkedImportant = "unmarked_important"
	TaskActionCompleted         = "completed"
	TaskActionBlocked           = "blocked"
	TaskActionDeleted           = "deleted"
	TaskActionReassigned        = "reassigned"
)

// TaskActivityLog append-only change log keyed by (task_kind, task_id).
type TaskActivityLog struct {
	ID       string            `json:"id" gorm:"primaryKey;size:36"`
	TaskKind string            `json:"task_kind" gorm:"size:16;not null;index:idx_task_activity"`
	TaskID   string            `json:"task_id" gorm:"size:36;not null;index:idx_task_activity"`
	Action   string            `json:"action" gorm:"size:32;not null"`
	Field    string            `json:"field" gorm:"size:32"`
	OldValue string            `json:"old_value" gorm:"type:text"`
	NewValue string            `json:"new_value" gorm:"type:text"`
	ActorID  string            `json:"actor_id" gorm:"size:36;not null"`
	Metadata datatypes.JSONMap `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
}

func (TaskActivityLog) TableName() string {
	return "task_activity_logs"
}
