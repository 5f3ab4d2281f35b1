package repository

import (
	"context"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLogRepository task change log
type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

func (r *ActivityLogRepository) Create(ctx context.Context, log *entity.TaskActivityLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// CreateBatch inserts logs in one statement.
func (r *ActivityLogRepository) CreateBatch(ctx context.Context, logs []entity.TaskActivityLog) error {
	if len(logs) == 0 {
		return nil
	}
	for i := range logs {
		if logs[i].ID == "" {
			logs[i].ID = uuid.New().String()
		}
	}
	return r.db.WithContext(ctx).Create(&logs).Error
}

// FindByTask lists the log of one task, newest first.
func (r *ActivityLogRepository) FindByTask(ctx context.Context, kind, taskID string, page, pageSize int) ([]entity.TaskActivityLog, int64, error) {
	var items []entity.TaskActivityLog
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.TaskActivityLog{}).
		Where("task_kind = ? AND task_id = ?", kind, taskID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}
