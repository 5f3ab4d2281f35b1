package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnalyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) FindDay(ctx context.Context, employeeID string, day time.Time) (*entity.EmployeeProductivityAnalytics, error) {
	var a entity.EmployeeProductivityAnalytics
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND date = ?", employeeID, entity.DateOnly(day)).
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// FindLatestBefore returns the newest row strictly before day.
func (r *AnalyticsRepository) FindLatestBefore(ctx context.Context, employeeID string, day time.Time) (*entity.EmployeeProductivityAnalytics, error) {
	var a entity.EmployeeProductivityAnalytics
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND date < ?", employeeID, day).
		Order("date DESC").
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// Upsert writes a keyed on (employee_id, date) and reads the row back.
func (r *AnalyticsRepository) Upsert(ctx context.Context, a *entity.EmployeeProductivityAnalytics) (*entity.EmployeeProductivityAnalytics, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "employee_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tasks_completed",
			"tasks_created",
			"total_progress_points",
			"hours_logged",
			"current_streak",
			"max_streak",
			"updated_at",
		}),
	}).Create(a).Error
	if err != nil {
		return nil, err
	}
	return r.FindDay(ctx, a.EmployeeID, a.Date)
}

// ListRange returns rows with from <= date <= to, oldest first.
func (r *AnalyticsRepository) ListRange(ctx context.Context, employeeID string, from, to time.Time) ([]entity.EmployeeProductivityAnalytics, error) {
	var items []entity.EmployeeProductivityAnalytics
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND date >= ? AND date <= ?", employeeID, from, to).
		Order("date ASC").
		Find(&items).Error
	return items, err
}

// UpdateStreak rewrites only the streak columns of one row.
func (r *AnalyticsRepository) UpdateStreak(ctx context.Context, id string, current, best int) error {
	return r.db.WithContext(ctx).Model(&entity.EmployeeProductivityAnalytics{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_streak": current,
			"max_streak":     best,
		}).Error
}
