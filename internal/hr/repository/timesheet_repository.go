package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"gorm.io/gorm"
)

// TimesheetRepository timesheets and the records they own.
type TimesheetRepository struct {
	db *gorm.DB
}

func NewTimesheetRepository(db *gorm.DB) *TimesheetRepository {
	return &TimesheetRepository{db: db}
}

// Create inserts the timesheet row only.
func (r *TimesheetRepository) Create(ctx context.Context, ts *entity.Timesheet) error {
	return r.db.WithContext(ctx).Omit("Employee", "Rows", "Approvals", "History", "Chats").Create(ts).Error
}

// Save updates the timesheet columns without touching associations.
func (r *TimesheetRepository) Save(ctx context.Context, ts *entity.Timesheet) error {
	return r.db.WithContext(ctx).Omit("Employee", "Rows", "Approvals", "History", "Chats").Save(ts).Error
}

// FindByID finds a timesheet by id.
func (r *TimesheetRepository) FindByID(ctx context.Context, id string) (*entity.Timesheet, error) {
	var ts entity.Timesheet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ts).Error; err != nil {
		return nil, translate(err)
	}
	return &ts, nil
}

// FindByIDForUpdate loads the timesheet holding a row lock, serializing
// concurrent transitions of the same timesheet.
func (r *TimesheetRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Timesheet, error) {
	var ts entity.Timesheet
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&ts).Error; err != nil {
		return nil, translate(err)
	}
	return &ts, nil
}

// FindDetail loads the timesheet with rows, approvals and history.
func (r *TimesheetRepository) FindDetail(ctx context.Context, id string) (*entity.Timesheet, error) {
	var ts entity.Timesheet
	err := r.db.WithContext(ctx).
		Preload("Employee").
		Preload("Rows", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Preload("Rows.Project").
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("cycle ASC, created_at ASC")
		}).
		Preload("Approvals.Approver").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&ts).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ts, nil
}

// FindByEmployeePeriod finds the timesheet of an employee for the week starting at periodStart.
func (r *TimesheetRepository) FindByEmployeePeriod(ctx context.Context, employeeID string, periodStart time.Time) (*entity.Timesheet, error) {
	var ts entity.Timesheet
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND period_start = ?", employeeID, periodStart).
		First(&ts).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ts, nil
}

// ListByEmployee pages through an employee's timesheets, newest week first.
func (r *TimesheetRepository) ListByEmployee(ctx context.Context, employeeID, status string, page, pageSize int) ([]entity.Timesheet, int64, error) {
	var items []entity.Timesheet
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Timesheet{}).Where("employee_id = ?", employeeID)
	if status != "" {
		query = query.Where("overall_status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("period_start DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// ---- rows ----

func (r *TimesheetRepository) CreateRow(ctx context.Context, row *entity.TimesheetRow) error {
	return r.db.WithContext(ctx).Omit("Project").Create(row).Error
}

func (r *TimesheetRepository) SaveRow(ctx context.Context, row *entity.TimesheetRow) error {
	return r.db.WithContext(ctx).Omit("Project").Save(row).Error
}

func (r *TimesheetRepository) DeleteRow(ctx context.Context, rowID string) error {
	return r.db.WithContext(ctx).Where("id = ?", rowID).Delete(&entity.TimesheetRow{}).Error
}

// FindRow finds a row belonging to timesheetID.
func (r *TimesheetRepository) FindRow(ctx context.Context, timesheetID, rowID string) (*entity.TimesheetRow, error) {
	var row entity.TimesheetRow
	err := r.db.WithContext(ctx).
		Where("id = ? AND timesheet_id = ?", rowID, timesheetID).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

func (r *TimesheetRepository) ListRows(ctx context.Context, timesheetID string) ([]entity.TimesheetRow, error) {
	var rows []entity.TimesheetRow
	err := r.db.WithContext(ctx).
		Where("timesheet_id = ?", timesheetID).
		Order("sort_order ASC, created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *TimesheetRepository) CountRows(ctx context.Context, timesheetID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TimesheetRow{}).
		Where("timesheet_id = ?", timesheetID).
		Count(&count).Error
	return count, err
}

// ---- approvals ----

func (r *TimesheetRepository) CreateApproval(ctx context.Context, a *entity.TimesheetApproval) error {
	return r.db.WithContext(ctx).Omit("Approver").Create(a).Error
}

func (r *TimesheetRepository) SaveApproval(ctx context.Context, a *entity.TimesheetApproval) error {
	return r.db.WithContext(ctx).Omit("Approver").Save(a).Error
}

// FindPendingApproval finds the pending row of stage in cycle.
func (r *TimesheetRepository) FindPendingApproval(ctx context.Context, timesheetID string, cycle int, stage string) (*entity.TimesheetApproval, error) {
	var a entity.TimesheetApproval
	err := r.db.WithContext(ctx).
		Where("timesheet_id = ? AND cycle = ? AND approver_role = ? AND status = ?",
			timesheetID, cycle, stage, entity.ApprovalStatusPending).
		Order("created_at DESC").
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *TimesheetRepository) ListApprovals(ctx context.Context, timesheetID string) ([]entity.TimesheetApproval, error) {
	var items []entity.TimesheetApproval
	err := r.db.WithContext(ctx).
		Where("timesheet_id = ?", timesheetID).
		Order("cycle ASC, created_at ASC").
		Find(&items).Error
	return items, err
}

// CountApprovalsInCycle counts rows with status in the given cycle.
func (r *TimesheetRepository) CountApprovalsInCycle(ctx context.Context, timesheetID string, cycle int, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TimesheetApproval{}).
		Where("timesheet_id = ? AND cycle = ? AND status = ?", timesheetID, cycle, status).
		Count(&count).Error
	return count, err
}

// CloseOutstanding moves every pending approval of the timesheet to status.
func (r *TimesheetRepository) CloseOutstanding(ctx context.Context, timesheetID, status, comment string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.TimesheetApproval{}).
		Where("timesheet_id = ? AND status = ?", timesheetID, entity.ApprovalStatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"acted_at":   at,
			"comment":    comment,
			"updated_at": at,
		})
	return result.RowsAffected, result.Error
}

// ListPending returns pending approvals for any of roles, limited to rows
// either unassigned or assigned to approverID.
func (r *TimesheetRepository) ListPending(ctx context.Context, roles []string, approverID string) ([]entity.TimesheetApproval, error) {
	var items []entity.TimesheetApproval
	if len(roles) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).
		Where("status = ? AND approver_role IN ?", entity.ApprovalStatusPending, roles).
		Where("approver_id IS NULL OR approver_id = ?", approverID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// ---- history ----

// AppendHistory inserts one audit row. History rows are never updated.
func (r *TimesheetRepository) AppendHistory(ctx context.Context, h *entity.TimesheetWorkflowHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *TimesheetRepository) ListHistory(ctx context.Context, timesheetID string) ([]entity.TimesheetWorkflowHistory, error) {
	var items []entity.TimesheetWorkflowHistory
	err := r.db.WithContext(ctx).
		Where("timesheet_id = ?", timesheetID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// ---- chats ----

func (r *TimesheetRepository) CreateChat(ctx context.Context, c *entity.TimesheetChat) error {
	return r.db.WithContext(ctx).Omit("Replies").Create(c).Error
}

func (r *TimesheetRepository) FindChat(ctx context.Context, timesheetID, chatID string) (*entity.TimesheetChat, error) {
	var c entity.TimesheetChat
	err := r.db.WithContext(ctx).
		Where("id = ? AND timesheet_id = ?", chatID, timesheetID).
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// ListChats returns every chat of the timesheet, oldest first.
func (r *TimesheetRepository) ListChats(ctx context.Context, timesheetID string) ([]entity.TimesheetChat, error) {
	var items []entity.TimesheetChat
	err := r.db.WithContext(ctx).
		Where("timesheet_id = ?", timesheetID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// DeleteChatTree deletes a chat and all of its descendants.
func (r *TimesheetRepository) DeleteChatTree(ctx context.Context, chatID string) error {
	ids := []string{chatID}
	frontier := []string{chatID}
	for len(frontier) > 0 {
		var children []string
		if err := r.db.WithContext(ctx).Model(&entity.TimesheetChat{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return err
		}
		ids = append(ids, children...)
		frontier = children
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entity.TimesheetChat{}).Error
}

// ---- analytics sources ----

// SumHoursOn sums the hours an employee logged on day across all rows of
// the timesheet covering that day.
func (r *TimesheetRepository) SumHoursOn(ctx context.Context, employeeID string, day time.Time) (float64, error) {
	ts, err := r.FindByEmployeePeriod(ctx, employeeID, entity.WeekStart(day))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	rows, err := r.ListRows(ctx, ts.ID)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range rows {
		sum += rows[i].HoursOn(day)
	}
	return entity.Round2(sum), nil
}
