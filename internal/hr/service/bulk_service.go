package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/hr/notify"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BulkRequest is one batch of a single mutation type.
type BulkRequest struct {
	OperationType string          `json:"operation_type" binding:"required"`
	TaskIDs       []string        `json:"task_ids" binding:"required"`
	Parameters    json.RawMessage `json:"parameters"`
}

type bulkParams struct {
	AssigneeID string `json:"assignee_id"`
	Status     string `json:"status"`
	DueDate    string `json:"due_date"`
	Important  *bool  `json:"important"`

	dueDate *time.Time
}

// BulkService applies one mutation to many tasks, recording per-item failures.
type BulkService struct {
	repos       *repository.Repositories
	tasks       *TaskService
	notifier    notify.Sender
	maxTasks    int
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

func NewBulkService(repos *repository.Repositories, tasks *TaskService, notifier notify.Sender, cfg config.BulkConfig, now func() time.Time, logger *zap.Logger) *BulkService {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 500
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BulkService{
		repos:       repos,
		tasks:       tasks,
		notifier:    notifier,
		maxTasks:    maxTasks,
		concurrency: concurrency,
		now:         now,
		logger:      logger,
	}
}

// Execute records the batch, runs every item and returns the terminal record.
// Malformed input marks the record failed before any task is touched and is
// also returned as a validation error.
func (s *BulkService) Execute(ctx context.Context, actor Actor, req BulkRequest) (*entity.BulkTaskOperation, error) {
	if !actor.IsManager() {
		return nil, ErrAuthorization("bulk operations are limited to managers")
	}

	op := &entity.BulkTaskOperation{
		ID:            uuid.New().String(),
		OperationType: req.OperationType,
		InitiatedBy:   actor.EmployeeID,
		TaskIDs:       append([]string{}, req.TaskIDs...),
		Parameters:    normalizeParams(req.Parameters),
		Status:        entity.BulkStatusPending,
		TotalTasks:    len(req.TaskIDs),
		ErrorLog:      []entity.BulkItemError{},
	}
	if err := s.repos.Bulk.Create(ctx, op); err != nil {
		return nil, err
	}

	params, verr := s.validate(req)
	if verr != nil {
		if err := s.finish(ctx, op, entity.BulkStatusFailed, []entity.BulkItemError{{Error: verr.Error()}}); err != nil {
			return nil, err
		}
		s.logger.Warn("bulk operation rejected",
			zap.String("operation_id", op.ID),
			zap.String("type", op.OperationType),
			zap.Error(verr))
		return op, verr
	}

	started := s.now()
	op.Status = entity.BulkStatusInProgress
	op.StartedAt = &started
	if err := s.repos.Bulk.Save(ctx, op); err != nil {
		return nil, err
	}

	type itemErr struct {
		pos int
		entity.BulkItemError
	}
	var (
		mu     sync.Mutex
		failed []itemErr
	)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range req.TaskIDs {
		i, id := i, id
		g.Go(func() error {
			err := s.apply(ctx, actor, req.OperationType, params, id)
			mu.Lock()
			defer mu.Unlock()
			op.ProcessedTasks++
			if err != nil {
				op.FailedTasks++
				failed = append(failed, itemErr{pos: i, BulkItemError: entity.BulkItemError{TaskID: id, Error: err.Error()}})
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failed, func(a, b int) bool { return failed[a].pos < failed[b].pos })
	log := make([]entity.BulkItemError, 0, len(failed))
	for _, f := range failed {
		log = append(log, f.BulkItemError)
	}

	if err := s.finish(ctx, op, entity.BulkStatusCompleted, log); err != nil {
		return nil, err
	}

	s.logger.Info("bulk operation finished",
		zap.String("operation_id", op.ID),
		zap.String("type", op.OperationType),
		zap.Int("processed", op.ProcessedTasks),
		zap.Int("failed", op.FailedTasks))
	s.notifier.Send(ctx, notify.Message{
		UserID:    actor.EmployeeID,
		Event:     notify.EventBulkFinished,
		MessageID: "bulk.finished",
		Params: map[string]any{
			"Operation": op.OperationType,
			"Processed": op.ProcessedTasks,
			"Failed":    op.FailedTasks,
		},
		Ref: map[string]string{"operation_id": op.ID},
	})
	return op, nil
}

// finish moves op to a terminal status. A record that already finished is
// left alone.
func (s *BulkService) finish(ctx context.Context, op *entity.BulkTaskOperation, status string, log []entity.BulkItemError) error {
	if op.IsTerminal() {
		return ErrInvalidState("bulk operation %s is already %s", op.ID, op.Status)
	}
	now := s.now()
	op.Status = status
	op.ErrorLog = log
	op.CompletedAt = &now
	return s.repos.Bulk.Save(ctx, op)
}

func (s *BulkService) validate(req BulkRequest) (*bulkParams, error) {
	if !entity.IsBulkOperationType(req.OperationType) {
		return nil, ErrValidation("unknown operation type %q", req.OperationType)
	}
	if len(req.TaskIDs) == 0 {
		return nil, ErrValidation("task_ids must not be empty")
	}
	if len(req.TaskIDs) > s.maxTasks {
		return nil, ErrValidation("at most %d tasks per batch", s.maxTasks)
	}
	seen := make(map[string]bool, len(req.TaskIDs))
	for _, id := range req.TaskIDs {
		if id == "" {
			return nil, ErrValidation("task_ids must not contain empty ids")
		}
		if seen[id] {
			return nil, ErrValidation("duplicate task id %s", id)
		}
		seen[id] = true
	}

	p := &bulkParams{}
	if len(req.Parameters) > 0 && string(req.Parameters) != "null" {
		if err := json.Unmarshal(req.Parameters, p); err != nil {
			return nil, ErrValidation("invalid parameters: %v", err)
		}
	}
	switch req.OperationType {
	case entity.BulkOpReassign:
		if p.AssigneeID == "" {
			return nil, ErrValidation("reassign requires assignee_id")
		}
	case entity.BulkOpUpdateStatus:
		if !entity.IsTaskStatus(p.Status) {
			return nil, ErrValidation("invalid status %q", p.Status)
		}
	case entity.BulkOpUpdateDueDate:
		d, err := time.Parse("2006-01-02", p.DueDate)
		if err != nil {
			return nil, ErrValidation("due_date must be YYYY-MM-DD")
		}
		p.dueDate = &d
	case entity.BulkOpSetImportant:
		if p.Important == nil {
			return nil, ErrValidation("set_important requires important")
		}
	}
	return p, nil
}

func (s *BulkService) apply(ctx context.Context, actor Actor, opType string, p *bulkParams, taskID string) error {
	var err error
	switch opType {
	case entity.BulkOpReassign:
		_, err = s.tasks.Reassign(ctx, actor, taskID, p.AssigneeID)
	case entity.BulkOpUpdateStatus:
		status := p.Status
		_, err = s.tasks.Update(ctx, actor, taskID, UpdateTaskReq{Status: &status})
	case entity.BulkOpUpdateDueDate:
		_, err = s.tasks.Update(ctx, actor, taskID, UpdateTaskReq{DueDate: p.dueDate})
	case entity.BulkOpSetImportant:
		important := *p.Important
		_, err = s.tasks.Update(ctx, actor, taskID, UpdateTaskReq{IsImportant: &important})
	case entity.BulkOpDelete:
		err = s.tasks.Delete(ctx, actor, taskID)
	default:
		err = fmt.Errorf("unsupported operation %s", opType)
	}
	return err
}

// Get returns a batch visible to the actor.
func (s *BulkService) Get(ctx context.Context, actor Actor, id string) (*entity.BulkTaskOperation, error) {
	op, err := s.repos.Bulk.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "bulk operation")
	}
	if op.InitiatedBy != actor.EmployeeID && !actor.IsAdmin() {
		return nil, ErrAuthorization("bulk operation is not visible to you")
	}
	return op, nil
}

// ListMine pages through the actor's batches.
func (s *BulkService) ListMine(ctx context.Context, actor Actor, page, pageSize int) ([]entity.BulkTaskOperation, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.repos.Bulk.ListByInitiator(ctx, actor.EmployeeID, page, pageSize)
}

func normalizeParams(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
