package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"gorm.io/gorm"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// TaskFilter list filters; zero values are ignored.
type TaskFilter struct {
	Kind        string
	OwnerID     string
	AssigneeID  string
	InvolvedID  string // owner or assignee
	ViewerID    string // hides personal tasks owned by anyone else
	ProjectID   string
	Status      string
	IsImportant *bool
	Page        int
	PageSize    int
}

func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	return r.db.WithContext(ctx).Omit("Assignment").Create(task).Error
}

func (r *TaskRepository) Save(ctx context.Context, task *entity.Task) error {
	return r.db.WithContext(ctx).Omit("Assignment").Save(task).Error
}

// Delete removes the task together with its assignment.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("task_id = ?", id).Delete(&entity.TaskAssignment{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Task{}).Error
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*entity.Task, error) {
	var task entity.Task
	if err := r.db.WithContext(ctx).Preload("Assignment").Where("id = ?", id).First(&task).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

// FindByIDForUpdate locks the task row for the rest of the transaction.
func (r *TaskRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Task, error) {
	var task entity.Task
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, translate(err)
	}
	assignment, err := r.FindAssignment(ctx, id)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	task.Assignment = assignment
	return &task, nil
}

// List pages through tasks matching f, pinned first.
func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]entity.Task, int64, error) {
	var items []entity.Task
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Task{})
	if f.Kind != "" {
		query = query.Where("kind = ?", f.Kind)
	}
	if f.OwnerID != "" {
		query = query.Where("owner_id = ?", f.OwnerID)
	}
	if f.AssigneeID != "" {
		query = query.Where("assignee_id = ?", f.AssigneeID)
	}
	if f.InvolvedID != "" {
		query = query.Where("(owner_id = ? OR assignee_id = ?)", f.InvolvedID, f.InvolvedID)
	}
	if f.ViewerID != "" {
		query = query.Where("(kind <> ? OR owner_id = ?)", entity.TaskKindPersonal, f.ViewerID)
	}
	if f.ProjectID != "" {
		query = query.Where("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.IsImportant != nil {
		query = query.Where("is_important = ?", *f.IsImportant)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	err := query.
		Preload("Assignment").
		Order("is_pinned DESC, created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// ---- assignments ----

func (r *TaskRepository) CreateAssignment(ctx context.Context, a *entity.TaskAssignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *TaskRepository) SaveAssignment(ctx context.Context, a *entity.TaskAssignment) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *TaskRepository) FindAssignment(ctx context.Context, taskID string) (*entity.TaskAssignment, error) {
	var a entity.TaskAssignment
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// AssignmentExists reports whether taskID is already assigned to assigneeID.
func (r *TaskRepository) AssignmentExists(ctx context.Context, taskID, assigneeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TaskAssignment{}).
		Where("task_id = ? AND assignee_id = ?", taskID, assigneeID).
		Count(&count).Error
	return count > 0, err
}

// ---- workload sources ----

// ActiveAssignedLoad sums estimated hours (null as 0) and counts the active
// assigned tasks of an employee that fall in the week starting weekStart:
// created before the week ends and not due before it begins.
func (r *TaskRepository) ActiveAssignedLoad(ctx context.Context, employeeID string, weekStart time.Time) (float64, int, error) {
	var result struct {
		Hours float64
		Count int
	}
	weekStart = entity.DateOnly(weekStart)
	err := r.db.WithContext(ctx).Model(&entity.Task{}).
		Select("COALESCE(SUM(COALESCE(estimated_hours, 0)), 0) AS hours, COUNT(*) AS count").
		Where("kind = ? AND assignee_id = ? AND status IN ?",
			entity.TaskKindAssigned, employeeID, entity.ActiveTaskStatuses).
		Where("created_at < ?", weekStart.AddDate(0, 0, 7)).
		Where("(due_date IS NULL OR due_date >= ?)", weekStart).
		Scan(&result).Error
	return entity.Round2(result.Hours), result.Count, err
}

// ---- analytics sources ----

func responsibleScope(db *gorm.DB, employeeID string) *gorm.DB {
	return db.Where("(assignee_id = ? OR (assignee_id IS NULL AND owner_id = ?))", employeeID, employeeID)
}

// CompletedOn returns the tasks of an employee completed within [day, day+1).
func (r *TaskRepository) CompletedOn(ctx context.Context, employeeID string, day time.Time) (count int, points int, err error) {
	var result struct {
		Count  int
		Points int
	}
	start := entity.DateOnly(day)
	query := r.db.WithContext(ctx).Model(&entity.Task{}).
		Select("COUNT(*) AS count, COALESCE(SUM(progress_points), 0) AS points").
		Where("status = ? AND completed_at >= ? AND completed_at < ?",
			entity.TaskStatusDone, start, start.AddDate(0, 0, 1))
	err = responsibleScope(query, employeeID).Scan(&result).Error
	return result.Count, result.Points, err
}

// CountCreatedOn counts tasks owned by the employee created on day.
func (r *TaskRepository) CountCreatedOn(ctx context.Context, employeeID string, day time.Time) (int, error) {
	var count int64
	start := entity.DateOnly(day)
	err := r.db.WithContext(ctx).Model(&entity.Task{}).
		Where("owner_id = ? AND created_at >= ? AND created_at < ?", employeeID, start, start.AddDate(0, 0, 1)).
		Count(&count).Error
	return int(count), err
}
