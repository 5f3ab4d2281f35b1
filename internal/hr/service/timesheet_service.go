package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/hr/notify"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxDayHours = 24.0

// RowInput is the editable part of a timesheet row. The total is derived.
type RowInput struct {
	ProjectID   *string `json:"project_id"`
	TaskID      *string `json:"task_id"`
	Description string  `json:"description"`
	MonHours    float64 `json:"mon_hours"`
	TueHours    float64 `json:"tue_hours"`
	WedHours    float64 `json:"wed_hours"`
	ThuHours    float64 `json:"thu_hours"`
	FriHours    float64 `json:"fri_hours"`
	SatHours    float64 `json:"sat_hours"`
	SunHours    float64 `json:"sun_hours"`
}

func (in RowInput) days() [7]float64 {
	return [7]float64{in.MonHours, in.TueHours, in.WedHours, in.ThuHours, in.FriHours, in.SatHours, in.SunHours}
}

func (in RowInput) validate() error {
	for i, h := range in.days() {
		if h < 0 || h > maxDayHours {
			return ErrValidation("hours for %s must be within 0..%g", weekdayNames[i], maxDayHours)
		}
	}
	return nil
}

var weekdayNames = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// PendingApproval is one item of an approver's inbox.
type PendingApproval struct {
	Approval  entity.TimesheetApproval `json:"approval"`
	Timesheet entity.Timesheet         `json:"timesheet"`
}

// TimesheetService runs the pm → dm → gm approval pipeline.
type TimesheetService struct {
	repos     *repository.Repositories
	analytics *AnalyticsService
	notifier  notify.Sender
	locale    string
	now       func() time.Time
	logger    *zap.Logger
}

func NewTimesheetService(repos *repository.Repositories, analytics *AnalyticsService, notifier notify.Sender, locale string, now func() time.Time, logger *zap.Logger) *TimesheetService {
	return &TimesheetService{
		repos:     repos,
		analytics: analytics,
		notifier:  notifier,
		locale:    locale,
		now:       now,
		logger:    logger,
	}
}

// CreateDraft opens the timesheet of the ISO week containing day.
func (s *TimesheetService) CreateDraft(ctx context.Context, actor Actor, employeeID string, day time.Time) (*entity.Timesheet, error) {
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	if employeeID != actor.EmployeeID && !actor.IsAdmin() {
		return nil, ErrAuthorization("you may only create your own timesheets")
	}
	if day.IsZero() {
		day = s.now()
	}
	periodStart := entity.WeekStart(day)

	ts := &entity.Timesheet{
		ID:            uuid.New().String(),
		EmployeeID:    employeeID,
		PeriodStart:   periodStart,
		PeriodEnd:     entity.WeekEnd(periodStart),
		OverallStatus: entity.TimesheetStatusDraft,
	}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Employee.LockByID(ctx, employeeID); err != nil {
			return notFoundOr(err, "employee")
		}
		_, err := tx.Timesheet.FindByEmployeePeriod(ctx, employeeID, periodStart)
		if err == nil {
			return ErrValidation("a timesheet for the week of %s already exists", periodStart.Format("2006-01-02"))
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return tx.Timesheet.Create(ctx, ts)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("timesheet draft created",
		zap.String("timesheet_id", ts.ID),
		zap.String("employee_id", employeeID),
		zap.Time("period_start", periodStart))
	return ts, nil
}

// AddRow appends a row to an editable timesheet.
func (s *TimesheetService) AddRow(ctx context.Context, actor Actor, timesheetID string, in RowInput) (*entity.TimesheetRow, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var row *entity.TimesheetRow
	var ts *entity.Timesheet
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		if ts, err = s.lockEditable(ctx, tx, actor, timesheetID); err != nil {
			return err
		}
		if err := s.checkRowRefs(ctx, tx, in); err != nil {
			return err
		}
		count, err := tx.Timesheet.CountRows(ctx, ts.ID)
		if err != nil {
			return err
		}
		row = &entity.TimesheetRow{
			ID:          uuid.New().String(),
			TimesheetID: ts.ID,
			ProjectID:   in.ProjectID,
			TaskID:      in.TaskID,
			Description: in.Description,
			SortOrder:   int(count),
		}
		row.SetDayHours(in.days())
		return tx.Timesheet.CreateRow(ctx, row)
	})
	if err != nil {
		return nil, err
	}
	s.refreshHours(ctx, ts)
	return row, nil
}

// UpdateRow replaces the editable fields of a row.
func (s *TimesheetService) UpdateRow(ctx context.Context, actor Actor, timesheetID, rowID string, in RowInput) (*entity.TimesheetRow, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var row *entity.TimesheetRow
	var ts *entity.Timesheet
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		if ts, err = s.lockEditable(ctx, tx, actor, timesheetID); err != nil {
			return err
		}
		if row, err = tx.Timesheet.FindRow(ctx, ts.ID, rowID); err != nil {
			return notFoundOr(err, "timesheet row")
		}
		if err := s.checkRowRefs(ctx, tx, in); err != nil {
			return err
		}
		row.ProjectID = in.ProjectID
		row.TaskID = in.TaskID
		row.Description = in.Description
		row.SetDayHours(in.days())
		return tx.Timesheet.SaveRow(ctx, row)
	})
	if err != nil {
		return nil, err
	}
	s.refreshHours(ctx, ts)
	return row, nil
}

// DeleteRow removes a row from an editable timesheet.
func (s *TimesheetService) DeleteRow(ctx context.Context, actor Actor, timesheetID, rowID string) error {
	var ts *entity.Timesheet
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		if ts, err = s.lockEditable(ctx, tx, actor, timesheetID); err != nil {
			return err
		}
		if _, err := tx.Timesheet.FindRow(ctx, ts.ID, rowID); err != nil {
			return notFoundOr(err, "timesheet row")
		}
		return tx.Timesheet.DeleteRow(ctx, rowID)
	})
	if err != nil {
		return err
	}
	s.refreshHours(ctx, ts)
	return nil
}

func (s *TimesheetService) lockEditable(ctx context.Context, tx *repository.Repositories, actor Actor, id string) (*entity.Timesheet, error) {
	ts, err := tx.Timesheet.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "timesheet")
	}
	if ts.EmployeeID != actor.EmployeeID && !actor.IsAdmin() {
		return nil, ErrAuthorization("only the owner may edit this timesheet")
	}
	if !ts.Editable() {
		return nil, ErrInvalidState("timesheet rows cannot change while %s", ts.OverallStatus)
	}
	return ts, nil
}

func (s *TimesheetService) checkRowRefs(ctx context.Context, tx *repository.Repositories, in RowInput) error {
	if in.ProjectID != nil && *in.ProjectID != "" {
		if _, err := tx.Employee.FindProject(ctx, *in.ProjectID); err != nil {
			return notFoundOr(err, "project")
		}
	}
	if in.TaskID != nil && *in.TaskID != "" {
		if _, err := tx.Task.FindByID(ctx, *in.TaskID); err != nil {
			return notFoundOr(err, "task")
		}
	}
	return nil
}

// refreshHours recomputes hours_logged for the days of the week up to today.
func (s *TimesheetService) refreshHours(ctx context.Context, ts *entity.Timesheet) {
	if s.analytics == nil || ts == nil {
		return
	}
	if _, err := s.analytics.RecomputeRange(ctx, ts.EmployeeID, ts.PeriodStart, ts.PeriodEnd); err != nil {
		s.logger.Error("analytics refresh after timesheet edit failed",
			zap.String("timesheet_id", ts.ID),
			zap.Error(err))
	}
}

// Submit sends a draft or reopened timesheet into the pipeline, starting a new cycle.
func (s *TimesheetService) Submit(ctx context.Context, actor Actor, id string) (*entity.Timesheet, error) {
	var ts *entity.Timesheet
	var pending *entity.TimesheetApproval
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		ts, err = tx.Timesheet.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "timesheet")
		}
		if ts.EmployeeID != actor.EmployeeID && !actor.IsAdmin() {
			return ErrAuthorization("only the owner may submit this timesheet")
		}
		if ts.OverallStatus != entity.TimesheetStatusDraft && ts.OverallStatus != entity.TimesheetStatusReopened {
			return ErrInvalidState("cannot submit a timesheet that is %s", ts.OverallStatus)
		}
		count, err := tx.Timesheet.CountRows(ctx, ts.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrValidation("cannot submit an empty timesheet")
		}

		now := s.now()
		from := ts.OverallStatus
		ts.Cycle++
		ts.OverallStatus = entity.TimesheetStatusInReview
		ts.CurrentStage = entity.StagePM
		ts.SubmittedAt = &now
		if err := tx.Timesheet.Save(ctx, ts); err != nil {
			return err
		}
		if pending, err = s.openStage(ctx, tx, ts, entity.StagePM); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, ts, entity.HistoryStageEmployee, entity.HistoryActionSubmitted, from, actor.EmployeeID, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("timesheet submitted",
		zap.String("timesheet_id", ts.ID),
		zap.Int("cycle", ts.Cycle))
	s.notifyPending(ctx, ts, pending)
	return ts, nil
}

// Approve records the actor's approval of stage and advances the pipeline.
func (s *TimesheetService) Approve(ctx context.Context, actor Actor, id, stage, comment string) (*entity.Timesheet, error) {
	if !entity.IsStage(stage) {
		return nil, ErrValidation("unknown approval stage %q", stage)
	}
	comment = strings.TrimSpace(comment)

	var ts *entity.Timesheet
	var next *entity.TimesheetApproval
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var approval *entity.TimesheetApproval
		var err error
		if ts, approval, err = s.lockStage(ctx, tx, actor, id, stage); err != nil {
			return err
		}

		now := s.now()
		approval.Status = entity.ApprovalStatusApproved
		approval.ApproverID = &actor.EmployeeID
		approval.ActedAt = &now
		approval.Comment = comment
		if err := tx.Timesheet.SaveApproval(ctx, approval); err != nil {
			return err
		}

		from := ts.OverallStatus
		if nextStage, ok := entity.NextStage(stage); ok {
			ts.CurrentStage = nextStage
			if next, err = s.openStage(ctx, tx, ts, nextStage); err != nil {
				return err
			}
		} else {
			approved, err := tx.Timesheet.CountApprovalsInCycle(ctx, ts.ID, ts.Cycle, entity.ApprovalStatusApproved)
			if err != nil {
				return err
			}
			if approved != int64(len(entity.ApprovalStages)) {
				return ErrInvalidState("cycle %d has %d approvals, expected %d", ts.Cycle, approved, len(entity.ApprovalStages))
			}
			ts.OverallStatus = entity.TimesheetStatusApproved
			ts.CurrentStage = ""
		}
		if err := tx.Timesheet.Save(ctx, ts); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, ts, stage, entity.HistoryActionApproved, from, actor.EmployeeID, comment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("timesheet approved",
		zap.String("timesheet_id", ts.ID),
		zap.String("stage", stage),
		zap.String("approver_id", actor.EmployeeID),
		zap.String("overall_status", ts.OverallStatus))
	if next != nil {
		s.notifyPending(ctx, ts, next)
		s.notifyOwner(ctx, ts, notify.EventTimesheetApproved, "timesheet.stage_approved", map[string]any{"Stage": stage})
	} else {
		s.notifyOwner(ctx, ts, notify.EventTimesheetApproved, "timesheet.approved", nil)
	}
	return ts, nil
}

// Reject stops the pipeline at stage. A reason is mandatory.
func (s *TimesheetService) Reject(ctx context.Context, actor Actor, id, stage, reason string) (*entity.Timesheet, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrValidation("a reason is required to reject a timesheet")
	}
	if !entity.IsStage(stage) {
		return nil, ErrValidation("unknown approval stage %q", stage)
	}

	var ts *entity.Timesheet
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var approval *entity.TimesheetApproval
		var err error
		if ts, approval, err = s.lockStage(ctx, tx, actor, id, stage); err != nil {
			return err
		}

		now := s.now()
		approval.Status = entity.ApprovalStatusRejected
		approval.ApproverID = &actor.EmployeeID
		approval.ActedAt = &now
		approval.Comment = reason
		if err := tx.Timesheet.SaveApproval(ctx, approval); err != nil {
			return err
		}

		from := ts.OverallStatus
		ts.OverallStatus = entity.TimesheetStatusRejected
		ts.CurrentStage = ""
		if err := tx.Timesheet.Save(ctx, ts); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, ts, stage, entity.HistoryActionRejected, from, actor.EmployeeID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("timesheet rejected",
		zap.String("timesheet_id", ts.ID),
		zap.String("stage", stage),
		zap.String("approver_id", actor.EmployeeID))
	s.notifyOwner(ctx, ts, notify.EventTimesheetRejected, "timesheet.rejected", map[string]any{"Stage": stage, "Reason": reason})
	return ts, nil
}

// lockStage loads the timesheet under lock and checks that actor may act on
// stage now. It returns the pending approval of that stage.
func (s *TimesheetService) lockStage(ctx context.Context, tx *repository.Repositories, actor Actor, id, stage string) (*entity.Timesheet, *entity.TimesheetApproval, error) {
	ts, err := tx.Timesheet.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, nil, notFoundOr(err, "timesheet")
	}
	if ts.OverallStatus != entity.TimesheetStatusInReview {
		return nil, nil, ErrInvalidState("timesheet is %s, not in review", ts.OverallStatus)
	}
	if stage != ts.CurrentStage {
		return nil, nil, ErrAuthorization("stage %s is not the current stage (%s)", stage, ts.CurrentStage)
	}
	if !actor.HasRole(stage) && !actor.IsAdmin() {
		return nil, nil, ErrAuthorization("role %s is required to act on this stage", stage)
	}
	if ts.EmployeeID == actor.EmployeeID {
		return nil, nil, ErrAuthorization("you may not approve your own timesheet")
	}
	approval, err := tx.Timesheet.FindPendingApproval(ctx, ts.ID, ts.Cycle, stage)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidState("no pending %s approval in cycle %d", stage, ts.Cycle)
		}
		return nil, nil, err
	}
	if approval.ApproverID != nil && *approval.ApproverID != actor.EmployeeID && !actor.IsAdmin() {
		return nil, nil, ErrAuthorization("this approval is assigned to another approver")
	}
	return ts, approval, nil
}

// Reopen sends an in-review, rejected or approved timesheet back to the
// employee. Outstanding approvals are closed as reopened.
func (s *TimesheetService) Reopen(ctx context.Context, actor Actor, id, reason string) (*entity.Timesheet, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrValidation("a reason is required to reopen a timesheet")
	}
	if len(actor.ApproverRoles()) == 0 {
		return nil, ErrAuthorization("only approvers or hr admins may reopen timesheets")
	}

	var ts *entity.Timesheet
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		ts, err = tx.Timesheet.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "timesheet")
		}
		if ts.EmployeeID == actor.EmployeeID && !actor.IsAdmin() {
			return ErrAuthorization("you may not reopen your own timesheet")
		}
		if err := s.checkReopener(ctx, tx, actor, ts); err != nil {
			return err
		}
		switch ts.OverallStatus {
		case entity.TimesheetStatusInReview, entity.TimesheetStatusRejected, entity.TimesheetStatusApproved:
		default:
			return ErrInvalidState("cannot reopen a timesheet that is %s", ts.OverallStatus)
		}

		now := s.now()
		if _, err := tx.Timesheet.CloseOutstanding(ctx, ts.ID, entity.ApprovalStatusReopened, reason, now); err != nil {
			return err
		}
		from := ts.OverallStatus
		ts.OverallStatus = entity.TimesheetStatusReopened
		ts.CurrentStage = ""
		if err := tx.Timesheet.Save(ctx, ts); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, ts, actingStage(actor), entity.HistoryActionReopened, from, actor.EmployeeID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("timesheet reopened",
		zap.String("timesheet_id", ts.ID),
		zap.String("actor_id", actor.EmployeeID))
	s.notifyOwner(ctx, ts, notify.EventTimesheetReopened, "timesheet.reopened", map[string]any{"Reason": reason})
	return ts, nil
}

// checkReopener admits admins and the approvers of the current cycle: an
// employee who acted on or is assigned to one of its stages, or a holder of
// the role of a stage still open to that role.
func (s *TimesheetService) checkReopener(ctx context.Context, tx *repository.Repositories, actor Actor, ts *entity.Timesheet) error {
	if actor.IsAdmin() {
		return nil
	}
	approvals, err := tx.Timesheet.ListApprovals(ctx, ts.ID)
	if err != nil {
		return err
	}
	for _, a := range approvals {
		if a.Cycle != ts.Cycle {
			continue
		}
		if a.ApproverID != nil && *a.ApproverID == actor.EmployeeID {
			return nil
		}
		if a.ApproverID == nil && actor.HasRole(a.ApproverRole) {
			return nil
		}
	}
	return ErrAuthorization("only an approver of this timesheet may reopen it")
}

// Withdraw lets the owner pull an in-review timesheet back to draft while no
// stage of the current cycle has approved it yet.
func (s *TimesheetService) Withdraw(ctx context.Context, actor Actor, id string) (*entity.Timesheet, error) {
	var ts *entity.Timesheet
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		ts, err = tx.Timesheet.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "timesheet")
		}
		if ts.EmployeeID != actor.EmployeeID && !actor.IsAdmin() {
			return ErrAuthorization("only the owner may withdraw this timesheet")
		}
		if ts.OverallStatus != entity.TimesheetStatusInReview {
			return ErrInvalidState("cannot withdraw a timesheet that is %s", ts.OverallStatus)
		}
		approved, err := tx.Timesheet.CountApprovalsInCycle(ctx, ts.ID, ts.Cycle, entity.ApprovalStatusApproved)
		if err != nil {
			return err
		}
		if approved > 0 {
			return ErrInvalidState("timesheet was already approved at a stage of this cycle")
		}

		now := s.now()
		if _, err := tx.Timesheet.CloseOutstanding(ctx, ts.ID, entity.ApprovalStatusAutoClosed, "withdrawn", now); err != nil {
			return err
		}
		from := ts.OverallStatus
		ts.OverallStatus = entity.TimesheetStatusDraft
		ts.CurrentStage = ""
		ts.SubmittedAt = nil
		if err := tx.Timesheet.Save(ctx, ts); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, ts, entity.HistoryStageEmployee, entity.HistoryActionWithdrawn, from, actor.EmployeeID, "")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("timesheet withdrawn", zap.String("timesheet_id", ts.ID))
	return ts, nil
}

// openStage creates the pending approval of stage for the current cycle.
func (s *TimesheetService) openStage(ctx context.Context, tx *repository.Repositories, ts *entity.Timesheet, stage string) (*entity.TimesheetApproval, error) {
	approverID, err := s.resolveApprover(ctx, tx, ts, stage)
	if err != nil {
		return nil, err
	}
	approval := &entity.TimesheetApproval{
		ID:           uuid.New().String(),
		TimesheetID:  ts.ID,
		ApproverID:   approverID,
		ApproverRole: stage,
		Cycle:        ts.Cycle,
		Status:       entity.ApprovalStatusPending,
		CreatedAt:    s.now(),
	}
	if err := tx.Timesheet.CreateApproval(ctx, approval); err != nil {
		return nil, err
	}
	return approval, nil
}

// resolveApprover picks the employee expected to act on stage. pm is the
// manager of the first row's project, dm the manager of the employee's
// department, gm the first general manager. A nil result leaves the stage
// open to anyone holding the role.
func (s *TimesheetService) resolveApprover(ctx context.Context, tx *repository.Repositories, ts *entity.Timesheet, stage string) (*string, error) {
	var candidate *string
	switch stage {
	case entity.StagePM:
		rows, err := tx.Timesheet.ListRows(ctx, ts.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if r.ProjectID == nil {
				continue
			}
			project, err := tx.Employee.FindProject(ctx, *r.ProjectID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			if project != nil {
				candidate = project.ManagerID
			}
			break
		}
	case entity.StageDM:
		emp, err := tx.Employee.FindByID(ctx, ts.EmployeeID)
		if err != nil {
			return nil, notFoundOr(err, "employee")
		}
		if emp.DepartmentID != nil {
			dept, err := tx.Employee.FindDepartment(ctx, *emp.DepartmentID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			if dept != nil {
				candidate = dept.ManagerID
			}
		}
	}

	if candidate != nil && *candidate != "" {
		ok, err := tx.Employee.HasRole(ctx, *candidate, stage)
		if err != nil {
			return nil, err
		}
		if ok && *candidate != ts.EmployeeID {
			return candidate, nil
		}
	}

	fallback, err := tx.Employee.FirstWithRole(ctx, stage)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fallback.ID == ts.EmployeeID {
		return nil, nil
	}
	return &fallback.ID, nil
}

func (s *TimesheetService) appendHistory(ctx context.Context, tx *repository.Repositories, ts *entity.Timesheet, stage, action, from, actorID, comment string) error {
	return tx.Timesheet.AppendHistory(ctx, &entity.TimesheetWorkflowHistory{
		ID:          uuid.New().String(),
		TimesheetID: ts.ID,
		Cycle:       ts.Cycle,
		Stage:       stage,
		Action:      action,
		FromStatus:  from,
		ToStatus:    ts.OverallStatus,
		ActorID:     actorID,
		Comment:     comment,
		CreatedAt:   s.now(),
	})
}

// actingStage names the role a reopen is recorded under, the most senior one held.
func actingStage(actor Actor) string {
	for i := len(entity.ApprovalStages) - 1; i >= 0; i-- {
		if actor.HasRole(entity.ApprovalStages[i]) {
			return entity.ApprovalStages[i]
		}
	}
	return entity.RoleAdmin
}

// ---- reads ----

// Get returns the timesheet with rows, approvals, history and the chat tree.
func (s *TimesheetService) Get(ctx context.Context, actor Actor, id string) (*entity.Timesheet, error) {
	ts, err := s.repos.Timesheet.FindDetail(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "timesheet")
	}
	if !canViewTimesheet(actor, ts) {
		return nil, ErrAuthorization("timesheet is not visible to you")
	}
	chats, err := s.repos.Timesheet.ListChats(ctx, ts.ID)
	if err != nil {
		return nil, err
	}
	ts.Chats = BuildChatTree(chats)
	return ts, nil
}

// ListForEmployee pages through one employee's timesheets.
func (s *TimesheetService) ListForEmployee(ctx context.Context, actor Actor, employeeID, status string, page, pageSize int) ([]entity.Timesheet, int64, error) {
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	if employeeID != actor.EmployeeID && !actor.IsManager() {
		return nil, 0, ErrAuthorization("cannot list another employee's timesheets")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.repos.Timesheet.ListByEmployee(ctx, employeeID, status, page, pageSize)
}

// ListPendingForActor returns the approvals waiting on the actor, skipping
// the actor's own timesheets and stale rows.
func (s *TimesheetService) ListPendingForActor(ctx context.Context, actor Actor) ([]PendingApproval, error) {
	approvals, err := s.repos.Timesheet.ListPending(ctx, actor.ApproverRoles(), actor.EmployeeID)
	if err != nil {
		return nil, err
	}
	out := make([]PendingApproval, 0, len(approvals))
	for _, a := range approvals {
		ts, err := s.repos.Timesheet.FindByID(ctx, a.TimesheetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if ts.EmployeeID == actor.EmployeeID || ts.OverallStatus != entity.TimesheetStatusInReview ||
			ts.CurrentStage != a.ApproverRole || ts.Cycle != a.Cycle {
			continue
		}
		out = append(out, PendingApproval{Approval: a, Timesheet: *ts})
	}
	return out, nil
}

// History returns the audit trail, oldest first.
func (s *TimesheetService) History(ctx context.Context, actor Actor, id string) ([]entity.TimesheetWorkflowHistory, error) {
	ts, err := s.repos.Timesheet.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "timesheet")
	}
	if !canViewTimesheet(actor, ts) {
		return nil, ErrAuthorization("timesheet is not visible to you")
	}
	return s.repos.Timesheet.ListHistory(ctx, ts.ID)
}

func canViewTimesheet(actor Actor, ts *entity.Timesheet) bool {
	return ts.EmployeeID == actor.EmployeeID || actor.IsManager()
}

// ---- notifications ----

func (s *TimesheetService) notifyPending(ctx context.Context, ts *entity.Timesheet, approval *entity.TimesheetApproval) {
	if approval == nil || approval.ApproverID == nil {
		return
	}
	employeeName := ts.EmployeeID
	if emp, err := s.repos.Employee.FindByID(ctx, ts.EmployeeID); err == nil {
		employeeName = emp.Name
	}
	s.notifier.Send(ctx, notify.Message{
		UserID:    *approval.ApproverID,
		Locale:    s.localeOf(ctx, *approval.ApproverID),
		Event:     notify.EventTimesheetPending,
		MessageID: "timesheet.pending",
		Params: map[string]any{
			"Employee": employeeName,
			"Week":     ts.PeriodStart.Format("2006-01-02"),
			"Stage":    approval.ApproverRole,
		},
		Ref: map[string]string{"timesheet_id": ts.ID, "stage": approval.ApproverRole},
	})
}

func (s *TimesheetService) notifyOwner(ctx context.Context, ts *entity.Timesheet, event, messageID string, params map[string]any) {
	if params == nil {
		params = map[string]any{}
	}
	params["Week"] = ts.PeriodStart.Format("2006-01-02")
	s.notifier.Send(ctx, notify.Message{
		UserID:    ts.EmployeeID,
		Locale:    s.localeOf(ctx, ts.EmployeeID),
		Event:     event,
		MessageID: messageID,
		Params:    params,
		Ref:       map[string]string{"timesheet_id": ts.ID, "status": ts.OverallStatus},
	})
}

func (s *TimesheetService) localeOf(ctx context.Context, employeeID string) string {
	if emp, err := s.repos.Employee.FindByID(ctx, employeeID); err == nil && emp.Locale != "" {
		return emp.Locale
	}
	return s.locale
}
