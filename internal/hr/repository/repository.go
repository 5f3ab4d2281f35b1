package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories bundles every hr repository over one *gorm.DB, which is either
// the pool or an open transaction.
type Repositories struct {
	db *gorm.DB

	Employee    *EmployeeRepository
	Timesheet   *TimesheetRepository
	Task        *TaskRepository
	ActivityLog *ActivityLogRepository
	Workload    *WorkloadRepository
	Analytics   *AnalyticsRepository
	Bulk        *BulkRepository
}

// NewRepositories creates the repository set.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Employee:    NewEmployeeRepository(db),
		Timesheet:   NewTimesheetRepository(db),
		Task:        NewTaskRepository(db),
		ActivityLog: NewActivityLogRepository(db),
		Workload:    NewWorkloadRepository(db),
		Analytics:   NewAnalyticsRepository(db),
		Bulk:        NewBulkRepository(db),
	}
}

// DB exposes the underlying handle.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn with a repository set bound to one transaction. The
// transaction commits when fn returns nil.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
