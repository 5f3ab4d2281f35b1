package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WorkloadRepository struct {
	db *gorm.DB
}

func NewWorkloadRepository(db *gorm.DB) *WorkloadRepository {
	return &WorkloadRepository{db: db}
}

func (r *WorkloadRepository) FindByEmployeeWeek(ctx context.Context, employeeID string, weekStart time.Time) (*entity.EmployeeWorkloadCapacity, error) {
	var w entity.EmployeeWorkloadCapacity
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND week_start_date = ?", employeeID, weekStart).
		First(&w).Error
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

// Upsert writes w keyed on (employee_id, week_start_date), replacing every
// derived column. The stored row is read back so the caller sees its id.
func (r *WorkloadRepository) Upsert(ctx context.Context, w *entity.EmployeeWorkloadCapacity) (*entity.EmployeeWorkloadCapacity, error) {
	err := r.db.WithContext(ctx).Omit("Employee").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "employee_id"}, {Name: "week_start_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"weekly_capacity_hours",
			"current_planned_hours",
			"workload_percentage",
			"workload_status",
			"active_task_count",
			"updated_at",
		}),
	}).Create(w).Error
	if err != nil {
		return nil, err
	}
	return r.FindByEmployeeWeek(ctx, w.EmployeeID, w.WeekStartDate)
}

// ListByWeek returns the rows of the given employees for one week.
func (r *WorkloadRepository) ListByWeek(ctx context.Context, weekStart time.Time, employeeIDs []string) ([]entity.EmployeeWorkloadCapacity, error) {
	var items []entity.EmployeeWorkloadCapacity
	query := r.db.WithContext(ctx).Preload("Employee").Where("week_start_date = ?", weekStart)
	if employeeIDs != nil {
		if len(employeeIDs) == 0 {
			return items, nil
		}
		query = query.Where("employee_id IN ?", employeeIDs)
	}
	err := query.Order("workload_percentage DESC, employee_id ASC").Find(&items).Error
	return items, err
}
