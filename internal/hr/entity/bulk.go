package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Bulk operation status
const (
	BulkStatusPending    = "pending"
	BulkStatusInProgress = "in_progress"
	BulkStatusCompleted  = "completed"
	BulkStatusFailed     = "failed"
)

// Bulk operation types
const (
	BulkOpReassign      = "reassign"
	BulkOpUpdateStatus  = "update_status"
	BulkOpUpdateDueDate = "update_due_date"
	BulkOpSetImportant  = "set_important"
	BulkOpDelete        = "delete"
)

func IsBulkOperationType(op string) bool {
	switch op {
	case BulkOpReassign, BulkOpUpdateStatus, BulkOpUpdateDueDate, BulkOpSetImportant, BulkOpDelete:
		return true
	}
	return false
}

// BulkItemError one failed task of a batch.
type BulkItemError struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// BulkTaskOperation one manager-initiated batch.
type BulkTaskOperation struct {
	ID             string                             `json:"id" gorm:"primaryKey;size:36"`
	OperationType  string                             `json:"operation_type" gorm:"size:32;not null"`
	InitiatedBy    string                             `json:"initiated_by" gorm:"size:36;not null;index"`
	TaskIDs        datatypes.JSONSlice[string]        `json:"task_ids"`
	Parameters     datatypes.JSON                     `json:"parameters"`
	Status         string                             `json:"status" gorm:"size:20;not null;index"`
	TotalTasks     int                                `json:"total_tasks" gorm:"not null"`
	ProcessedTasks int                                `json:"processed_tasks" gorm:"not null"`
	FailedTasks    int                                `json:"failed_tasks" gorm:"not null"`
	ErrorLog       datatypes.JSONSlice[BulkItemError] `json:"error_log"`
	StartedAt      *time.Time                         `json:"started_at"`
	CompletedAt    *time.Time                         `json:"completed_at"`
	CreatedAt      time.Time                          `json:"created_at"`
	UpdatedAt      time.Time                          `json:"updated_at"`
}

func (BulkTaskOperation) TableName() string {
	return "bulk_task_operations"
}

// IsTerminal reports whether the batch reached completed or failed.
func (o *BulkTaskOperation) IsTerminal() bool {
	return o.Status == BulkStatusCompleted || o.Status == BulkStatusFailed
}
