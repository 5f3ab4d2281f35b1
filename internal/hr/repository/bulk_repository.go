package repository

import (
	"context"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"gorm.io/gorm"
)

type BulkRepository struct {
	db *gorm.DB
}

func NewBulkRepository(db *gorm.DB) *BulkRepository {
	return &BulkRepository{db: db}
}

func (r *BulkRepository) Create(ctx context.Context, op *entity.BulkTaskOperation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

func (r *BulkRepository) Save(ctx context.Context, op *entity.BulkTaskOperation) error {
	return r.db.WithContext(ctx).Save(op).Error
}

func (r *BulkRepository) FindByID(ctx context.Context, id string) (*entity.BulkTaskOperation, error) {
	var op entity.BulkTaskOperation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&op).Error; err != nil {
		return nil, translate(err)
	}
	return &op, nil
}

// ListByInitiator lists the batches one manager started, newest first.
func (r *BulkRepository) ListByInitiator(ctx context.Context, initiatorID string, page, pageSize int) ([]entity.BulkTaskOperation, int64, error) {
	var items []entity.BulkTaskOperation
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.BulkTaskOperation{}).Where("initiated_by = ?", initiatorID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}
