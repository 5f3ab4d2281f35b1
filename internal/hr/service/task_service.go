package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateTaskReq creates a task of any kind.
type CreateTaskReq struct {
	Kind            string     `json:"kind" binding:"required"`
	Title           string     `json:"title" binding:"required"`
	Description     string     `json:"description"`
	ProjectID       *string    `json:"project_id"`
	AssigneeID      *string    `json:"assignee_id"`
	PermissionLevel string     `json:"permission_level"`
	Status          string     `json:"status"`
	ProgressPoints  int        `json:"progress_points"`
	EstimatedHours  *float64   `json:"estimated_hours"`
	DueDate         *time.Time `json:"due_date"`
	IsImportant     bool       `json:"is_important"`
}

// UpdateTaskReq patches a task; nil fields are left alone.
type UpdateTaskReq struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Status         *string    `json:"status"`
	ProgressPoints *int       `json:"progress_points"`
	EstimatedHours *float64   `json:"estimated_hours"`
	ActualHours    *float64   `json:"actual_hours"`
	DueDate        *time.Time `json:"due_date"`
	ClearDueDate   bool       `json:"clear_due_date"`
	IsPinned       *bool      `json:"is_pinned"`
	IsImportant    *bool      `json:"is_important"`
}

func (r UpdateTaskReq) touchesOnlyProgress() bool {
	return r.Title == nil && r.Description == nil && r.EstimatedHours == nil &&
		r.DueDate == nil && !r.ClearDueDate && r.IsPinned == nil && r.IsImportant == nil
}

func (r UpdateTaskReq) empty() bool {
	return r.touchesOnlyProgress() && r.Status == nil && r.ProgressPoints == nil && r.ActualHours == nil
}

// editLevel is what an actor may change on one task.
type editLevel int

const (
	editNone editLevel = iota
	editProgress
	editFull
)

// impact names the projections a committed task change affects.
type impact struct {
	workload  map[string]bool
	analytics map[string]map[time.Time]bool
}

func newImpact() *impact {
	return &impact{workload: map[string]bool{}, analytics: map[string]map[time.Time]bool{}}
}

func (i *impact) addWorkload(employeeID *string) {
	if employeeID != nil && *employeeID != "" {
		i.workload[*employeeID] = true
	}
}

func (i *impact) addDay(employeeID string, day time.Time) {
	if employeeID == "" {
		return
	}
	if i.analytics[employeeID] == nil {
		i.analytics[employeeID] = map[time.Time]bool{}
	}
	i.analytics[employeeID][entity.DateOnly(day)] = true
}

// addTask records every projection the task state touches.
func (i *impact) addTask(t *entity.Task, today time.Time) {
	if t.Kind == entity.TaskKindAssigned {
		i.addWorkload(t.AssigneeID)
	}
	i.addDay(t.ResponsibleID(), today)
	i.addDay(t.OwnerID, t.CreatedAt)
	if t.CompletedAt != nil {
		i.addDay(t.ResponsibleID(), *t.CompletedAt)
	}
}

// TaskService owns personal, project and assigned tasks.
type TaskService struct {
	repos     *repository.Repositories
	workload  *WorkloadService
	analytics *AnalyticsService
	now       func() time.Time
	logger    *zap.Logger
}

func NewTaskService(repos *repository.Repositories, workload *WorkloadService, analytics *AnalyticsService, now func() time.Time, logger *zap.Logger) *TaskService {
	return &TaskService{repos: repos, workload: workload, analytics: analytics, now: now, logger: logger}
}

// Create validates and stores a task, then refreshes the projections.
func (s *TaskService) Create(ctx context.Context, actor Actor, req CreateTaskReq) (*entity.Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	if !entity.IsTaskKind(req.Kind) {
		return nil, ErrValidation("invalid task kind %q", req.Kind)
	}
	if req.Title == "" {
		return nil, ErrValidation("title is required")
	}
	if req.Status == "" {
		req.Status = entity.TaskStatusToDo
	}
	if !entity.IsTaskStatus(req.Status) {
		return nil, ErrValidation("invalid task status %q", req.Status)
	}
	if err := validateProgress(req.ProgressPoints); err != nil {
		return nil, err
	}
	if err := validateHours("estimated_hours", req.EstimatedHours); err != nil {
		return nil, err
	}

	switch req.Kind {
	case entity.TaskKindPersonal:
		req.ProjectID, req.AssigneeID = nil, nil
	case entity.TaskKindProject:
		if req.ProjectID == nil || *req.ProjectID == "" {
			return nil, ErrValidation("project tasks require project_id")
		}
	case entity.TaskKindAssigned:
		if !actor.IsManager() {
			return nil, ErrAuthorization("only managers may assign tasks")
		}
		if req.AssigneeID == nil || *req.AssigneeID == "" {
			return nil, ErrValidation("assigned tasks require assignee_id")
		}
		if !entity.IsPermissionLevel(req.PermissionLevel) {
			return nil, ErrValidation("invalid permission_level %q", req.PermissionLevel)
		}
	}

	now := s.now()
	task := &entity.Task{
		ID:             uuid.New().String(),
		Kind:           req.Kind,
		Title:          req.Title,
		Description:    req.Description,
		ProjectID:      req.ProjectID,
		OwnerID:        actor.EmployeeID,
		AssigneeID:     req.AssigneeID,
		Status:         req.Status,
		ProgressPoints: req.ProgressPoints,
		EstimatedHours: req.EstimatedHours,
		DueDate:        dateOnlyPtr(req.DueDate),
		IsImportant:    req.IsImportant,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	applyStatus(task, task.Status, now)

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Employee.FindByID(ctx, actor.EmployeeID); err != nil {
			return notFoundOr(err, "employee")
		}
		if task.ProjectID != nil && *task.ProjectID != "" {
			if _, err := tx.Employee.FindProject(ctx, *task.ProjectID); err != nil {
				return notFoundOr(err, "project")
			}
		}
		if task.AssigneeID != nil && *task.AssigneeID != "" {
			if _, err := tx.Employee.FindByID(ctx, *task.AssigneeID); err != nil {
				return notFoundOr(err, "assignee")
			}
		}
		if err := tx.Task.Create(ctx, task); err != nil {
			return err
		}
		if task.Kind == entity.TaskKindAssigned {
			task.Assignment = &entity.TaskAssignment{
				ID:              uuid.New().String(),
				TaskID:          task.ID,
				AssigneeID:      *task.AssigneeID,
				AssignerID:      actor.EmployeeID,
				PermissionLevel: req.PermissionLevel,
			}
			if err := tx.Task.CreateAssignment(ctx, task.Assignment); err != nil {
				return err
			}
		}
		return tx.ActivityLog.Create(ctx, &entity.TaskActivityLog{
			TaskKind: task.Kind,
			TaskID:   task.ID,
			Action:   entity.TaskActionCreated,
			ActorID:  actor.EmployeeID,
			Metadata: map[string]interface{}{"title": task.Title, "status": task.Status},
		})
	})
	if err != nil {
		return nil, err
	}

	imp := newImpact()
	imp.addTask(task, now)
	s.refresh(ctx, imp)
	return task, nil
}

// Get returns a task visible to actor.
func (s *TaskService) Get(ctx context.Context, actor Actor, id string) (*entity.Task, error) {
	task, err := s.repos.Task.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "task")
	}
	if !canViewTask(actor, task) {
		return nil, ErrAuthorization("task is not visible to you")
	}
	return task, nil
}

// List returns tasks. Non-managers only see tasks they own or are assigned,
// and personal tasks stay private to their owner.
func (s *TaskService) List(ctx context.Context, actor Actor, f repository.TaskFilter) ([]entity.Task, int64, error) {
	if f.Kind != "" && !entity.IsTaskKind(f.Kind) {
		return nil, 0, ErrValidation("invalid task kind %q", f.Kind)
	}
	if f.Status != "" && !entity.IsTaskStatus(f.Status) {
		return nil, 0, ErrValidation("invalid task status %q", f.Status)
	}
	if !actor.IsManager() {
		f.InvolvedID = actor.EmployeeID
	}
	if !actor.IsAdmin() {
		f.ViewerID = actor.EmployeeID
	}
	return s.repos.Task.List(ctx, f)
}

// Update applies req within the actor's edit level and logs every change.
func (s *TaskService) Update(ctx context.Context, actor Actor, id string, req UpdateTaskReq) (*entity.Task, error) {
	if req.empty() {
		return nil, ErrValidation("nothing to update")
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, ErrValidation("title cannot be empty")
	}
	if req.Status != nil && !entity.IsTaskStatus(*req.Status) {
		return nil, ErrValidation("invalid task status %q", *req.Status)
	}
	if req.ProgressPoints != nil {
		if err := validateProgress(*req.ProgressPoints); err != nil {
			return nil, err
		}
	}
	if err := validateHours("estimated_hours", req.EstimatedHours); err != nil {
		return nil, err
	}
	if err := validateHours("actual_hours", req.ActualHours); err != nil {
		return nil, err
	}

	now := s.now()
	imp := newImpact()
	var task *entity.Task
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		task, err = tx.Task.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "task")
		}
		switch editLevelOf(actor, task) {
		case editNone:
			return ErrAuthorization("you may not edit this task")
		case editProgress:
			if !req.touchesOnlyProgress() {
				return ErrAuthorization("your permission only allows status, progress and actual hours")
			}
		}

		imp.addTask(task, now)
		logs := s.applyUpdate(task, req, actor.EmployeeID, now)
		if len(logs) == 0 {
			return nil
		}
		task.UpdatedAt = now
		if err := tx.Task.Save(ctx, task); err != nil {
			return err
		}
		return tx.ActivityLog.CreateBatch(ctx, logs)
	})
	if err != nil {
		return nil, err
	}

	imp.addTask(task, now)
	s.refresh(ctx, imp)
	return task, nil
}

func (s *TaskService) applyUpdate(task *entity.Task, req UpdateTaskReq, actorID string, now time.Time) []entity.TaskActivityLog {
	var logs []entity.TaskActivityLog
	add := func(action, field, oldValue, newValue string) {
		logs = append(logs, entity.TaskActivityLog{
			TaskKind: task.Kind,
			TaskID:   task.ID,
			Action:   action,
			Field:    field,
			OldValue: oldValue,
			NewValue: newValue,
			ActorID:  actorID,
		})
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) != task.Title {
		title := strings.TrimSpace(*req.Title)
		add(entity.TaskActionUpdated, "title", task.Title, title)
		task.Title = title
	}
	if req.Description != nil && *req.Description != task.Description {
		add(entity.TaskActionUpdated, "description", task.Description, *req.Description)
		task.Description = *req.Description
	}
	if req.EstimatedHours != nil && !sameHours(task.EstimatedHours, req.EstimatedHours) {
		add(entity.TaskActionUpdated, "estimated_hours", formatHoursPtr(task.EstimatedHours), formatHoursPtr(req.EstimatedHours))
		v := *req.EstimatedHours
		task.EstimatedHours = &v
	}
	if req.ActualHours != nil && *req.ActualHours != task.ActualHours {
		add(entity.TaskActionUpdated, "actual_hours", formatHours(task.ActualHours), formatHours(*req.ActualHours))
		task.ActualHours = *req.ActualHours
	}
	if req.ClearDueDate && task.DueDate != nil {
		add(entity.TaskActionUpdated, "due_date", formatDate(task.DueDate), "")
		task.DueDate = nil
	} else if req.DueDate != nil {
		due := dateOnlyPtr(req.DueDate)
		if task.DueDate == nil || !task.DueDate.Equal(*due) {
			add(entity.TaskActionUpdated, "due_date", formatDate(task.DueDate), formatDate(due))
			task.DueDate = due
		}
	}
	if req.ProgressPoints != nil && *req.ProgressPoints != task.ProgressPoints {
		add(entity.TaskActionUpdated, "progress_points", strconv.Itoa(task.ProgressPoints), strconv.Itoa(*req.ProgressPoints))
		task.ProgressPoints = *req.ProgressPoints
	}
	if req.Status != nil && *req.Status != task.Status {
		action := entity.TaskActionStatusChanged
		switch *req.Status {
		case entity.TaskStatusDone:
			action = entity.TaskActionCompleted
		case entity.TaskStatusBlocked:
			action = entity.TaskActionBlocked
		}
		add(action, "status", task.Status, *req.Status)
		applyStatus(task, *req.Status, now)
	}
	if req.IsPinned != nil && *req.IsPinned != task.IsPinned {
		action := entity.TaskActionUnpinned
		if *req.IsPinned {
			action = entity.TaskActionPinned
		}
		add(action, "is_pinned", strconv.FormatBool(task.IsPinned), strconv.FormatBool(*req.IsPinned))
		task.IsPinned = *req.IsPinned
	}
	if req.IsImportant != nil && *req.IsImportant != task.IsImportant {
		action := entity.TaskActionUnmarkedImportant
		if *req.IsImportant {
			action = entity.TaskActionMarkedImportant
		}
		add(action, "is_important", strconv.FormatBool(task.IsImportant), strconv.FormatBool(*req.IsImportant))
		task.IsImportant = *req.IsImportant
	}
	return logs
}

// Reassign moves an assigned task to another employee.
func (s *TaskService) Reassign(ctx context.Context, actor Actor, id, assigneeID string) (*entity.Task, error) {
	if assigneeID == "" {
		return nil, ErrValidation("assignee_id is required")
	}
	now := s.now()
	imp := newImpact()
	var task *entity.Task
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		task, err = tx.Task.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "task")
		}
		if task.Kind != entity.TaskKindAssigned || task.Assignment == nil {
			return ErrInvalidState("only assigned tasks can be reassigned")
		}
		if editLevelOf(actor, task) != editFull || (task.Assignment.AssigneeID == actor.EmployeeID && !actor.IsManager()) {
			return ErrAuthorization("you may not reassign this task")
		}
		exists, err := tx.Task.AssignmentExists(ctx, task.ID, assigneeID)
		if err != nil {
			return err
		}
		if exists {
			return ErrValidation("task is already assigned to %s", assigneeID)
		}
		if _, err := tx.Employee.FindByID(ctx, assigneeID); err != nil {
			return notFoundOr(err, "assignee")
		}

		imp.addTask(task, now)
		previous := task.Assignment.AssigneeID
		task.Assignment.AssigneeID = assigneeID
		task.Assignment.AssignerID = actor.EmployeeID
		task.AssigneeID = &assigneeID
		task.UpdatedAt = now
		if err := tx.Task.SaveAssignment(ctx, task.Assignment); err != nil {
			return err
		}
		if err := tx.Task.Save(ctx, task); err != nil {
			return err
		}
		return tx.ActivityLog.Create(ctx, &entity.TaskActivityLog{
			TaskKind: task.Kind,
			TaskID:   task.ID,
			Action:   entity.TaskActionReassigned,
			Field:    "assignee_id",
			OldValue: previous,
			NewValue: assigneeID,
			ActorID:  actor.EmployeeID,
		})
	})
	if err != nil {
		return nil, err
	}
	imp.addTask(task, now)
	s.refresh(ctx, imp)
	return task, nil
}

// Delete removes a task. Owners, assigners and managers with full edit may delete.
func (s *TaskService) Delete(ctx context.Context, actor Actor, id string) error {
	now := s.now()
	imp := newImpact()
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		task, err := tx.Task.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "task")
		}
		if editLevelOf(actor, task) != editFull {
			return ErrAuthorization("you may not delete this task")
		}
		if task.Assignment != nil && task.Assignment.AssigneeID == actor.EmployeeID && task.OwnerID != actor.EmployeeID && !actor.IsManager() {
			return ErrAuthorization("assignees may not delete assigned tasks")
		}
		imp.addTask(task, now)
		if err := tx.Task.Delete(ctx, task.ID); err != nil {
			return err
		}
		return tx.ActivityLog.Create(ctx, &entity.TaskActivityLog{
			TaskKind: task.Kind,
			TaskID:   task.ID,
			Action:   entity.TaskActionDeleted,
			ActorID:  actor.EmployeeID,
			Metadata: map[string]interface{}{"title": task.Title},
		})
	})
	if err != nil {
		return err
	}
	s.refresh(ctx, imp)
	return nil
}

// Activity lists the change log of a task. Logs of deleted tasks stay readable
// for managers.
func (s *TaskService) Activity(ctx context.Context, actor Actor, id string, page, pageSize int) ([]entity.TaskActivityLog, int64, error) {
	task, err := s.repos.Task.FindByID(ctx, id)
	if err != nil {
		if !actor.IsManager() {
			return nil, 0, notFoundOr(err, "task")
		}
		logs, total, lerr := s.findLogsAnyKind(ctx, id, page, pageSize)
		if lerr != nil || total == 0 {
			return nil, 0, notFoundOr(err, "task")
		}
		return logs, total, nil
	}
	if !canViewTask(actor, task) {
		return nil, 0, ErrAuthorization("task is not visible to you")
	}
	return s.repos.ActivityLog.FindByTask(ctx, task.Kind, task.ID, page, pageSize)
}

func (s *TaskService) findLogsAnyKind(ctx context.Context, id string, page, pageSize int) ([]entity.TaskActivityLog, int64, error) {
	for _, kind := range []string{entity.TaskKindAssigned, entity.TaskKindProject, entity.TaskKindPersonal} {
		logs, total, err := s.repos.ActivityLog.FindByTask(ctx, kind, id, page, pageSize)
		if err != nil {
			return nil, 0, err
		}
		if total > 0 {
			return logs, total, nil
		}
	}
	return nil, 0, nil
}

// refresh recomputes the projections after a commit. Failures are logged; the
// projections can be rebuilt from tasks at any time.
func (s *TaskService) refresh(ctx context.Context, imp *impact) {
	week := s.workload.CurrentWeek()
	for employeeID := range imp.workload {
		if _, err := s.workload.Recalculate(ctx, employeeID, week); err != nil {
			s.logger.Error("workload recompute failed", zap.String("employee_id", employeeID), zap.Error(err))
		}
	}
	today := entity.DateOnly(s.now())
	for employeeID, days := range imp.analytics {
		for day := range days {
			if day.After(today) {
				continue
			}
			if _, err := s.analytics.RecomputeDay(ctx, employeeID, day); err != nil {
				s.logger.Error("analytics recompute failed",
					zap.String("employee_id", employeeID),
					zap.Time("day", day),
					zap.Error(err))
			}
		}
	}
}

func editLevelOf(actor Actor, task *entity.Task) editLevel {
	if actor.IsAdmin() || task.OwnerID == actor.EmployeeID {
		return editFull
	}
	if task.Assignment != nil {
		if task.Assignment.AssignerID == actor.EmployeeID {
			return editFull
		}
		if task.Assignment.AssigneeID == actor.EmployeeID {
			switch task.Assignment.PermissionLevel {
			case entity.PermissionFullEdit:
				return editFull
			case entity.PermissionEditProgress:
				return editProgress
			default:
				return editNone
			}
		}
	}
	if task.Kind == entity.TaskKindProject && task.AssigneeID != nil && *task.AssigneeID == actor.EmployeeID {
		return editProgress
	}
	if task.Kind != entity.TaskKindPersonal && actor.IsManager() {
		return editFull
	}
	return editNone
}

func canViewTask(actor Actor, task *entity.Task) bool {
	if task.Kind == entity.TaskKindPersonal {
		return task.OwnerID == actor.EmployeeID || actor.IsAdmin()
	}
	if actor.IsManager() || task.OwnerID == actor.EmployeeID {
		return true
	}
	return task.AssigneeID != nil && *task.AssigneeID == actor.EmployeeID
}

// applyStatus sets status and the fields that follow from it.
func applyStatus(task *entity.Task, status string, now time.Time) {
	task.Status = status
	if status == entity.TaskStatusDone {
		task.ProgressPoints = 100
		if task.CompletedAt == nil {
			t := now
			task.CompletedAt = &t
		}
		return
	}
	task.CompletedAt = nil
}

func validateProgress(p int) error {
	if p < 0 || p > 100 {
		return ErrValidation("progress_points must be within 0..100")
	}
	return nil
}

func validateHours(field string, h *float64) error {
	if h != nil && *h < 0 {
		return ErrValidation("%s must not be negative", field)
	}
	return nil
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := entity.DateOnly(*t)
	return &d
}

func sameHours(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64)
}

func formatHoursPtr(h *float64) string {
	if h == nil {
		return ""
	}
	return formatHours(*h)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
