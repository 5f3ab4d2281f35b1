package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Workload thresholds in percent. Upper bounds are inclusive.
const (
	workloadOptimalFrom  = 70.0
	workloadOptimalTo    = 100.0
	workloadOverloadedTo = 120.0
	maxWeeklyCapacity    = 168.0
)

// ClassifyWorkload maps a utilization percentage to a workload status.
func ClassifyWorkload(pct float64) string {
	switch {
	case pct < workloadOptimalFrom:
		return entity.WorkloadUnderUtilized
	case pct <= workloadOptimalTo:
		return entity.WorkloadOptimal
	case pct <= workloadOverloadedTo:
		return entity.WorkloadOverLoaded
	default:
		return entity.WorkloadCritical
	}
}

// WorkloadPercentage returns planned/capacity as a percentage rounded to two
// decimals, 0 when capacity is not positive.
func WorkloadPercentage(planned, capacity float64) float64 {
	return entity.Round2(workloadRatio(planned, capacity))
}

func workloadRatio(planned, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	return planned / capacity * 100
}

// WorkloadService keeps EmployeeWorkloadCapacity in sync with assigned tasks.
type WorkloadService struct {
	repos           *repository.Repositories
	rdb             *redis.Client
	cacheTTL        time.Duration
	defaultCapacity float64
	now             func() time.Time
	logger          *zap.Logger
}

func NewWorkloadService(repos *repository.Repositories, rdb *redis.Client, cfg config.WorkloadConfig, cacheTTL time.Duration, now func() time.Time, logger *zap.Logger) *WorkloadService {
	capacity := cfg.DefaultCapacityHours
	if capacity <= 0 {
		capacity = 40
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &WorkloadService{
		repos:           repos,
		rdb:             rdb,
		cacheTTL:        cacheTTL,
		defaultCapacity: capacity,
		now:             now,
		logger:          logger,
	}
}

// CurrentWeek returns the Monday of the current ISO week.
func (s *WorkloadService) CurrentWeek() time.Time {
	return entity.WeekStart(s.now())
}

// Recalculate recomputes one employee's row for the week containing weekStart.
func (s *WorkloadService) Recalculate(ctx context.Context, employeeID string, weekStart time.Time) (*entity.EmployeeWorkloadCapacity, error) {
	return s.recalculate(ctx, employeeID, weekStart, nil)
}

// SetCapacity changes an employee's weekly capacity and recomputes the row.
// Admins may set anyone's capacity, department managers only their members'.
func (s *WorkloadService) SetCapacity(ctx context.Context, actor Actor, employeeID string, weekStart time.Time, hours float64) (*entity.EmployeeWorkloadCapacity, error) {
	if hours <= 0 || hours > maxWeeklyCapacity {
		return nil, ErrValidation("weekly capacity must be within (0, %g] hours", maxWeeklyCapacity)
	}
	emp, err := s.repos.Employee.FindByID(ctx, employeeID)
	if err != nil {
		return nil, notFoundOr(err, "employee")
	}
	if !actor.IsAdmin() {
		if !actor.HasRole(entity.RoleDM) || emp.DepartmentID == nil || !actor.Manages(*emp.DepartmentID) {
			return nil, ErrAuthorization("only hr admins or the department manager may change capacity")
		}
	}
	return s.recalculate(ctx, employeeID, weekStart, &hours)
}

func (s *WorkloadService) recalculate(ctx context.Context, employeeID string, weekStart time.Time, capacity *float64) (*entity.EmployeeWorkloadCapacity, error) {
	week := entity.WeekStart(weekStart)
	var saved *entity.EmployeeWorkloadCapacity
	var departmentID string

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		// serializes concurrent recomputes of the same employee
		emp, err := tx.Employee.LockByID(ctx, employeeID)
		if err != nil {
			return notFoundOr(err, "employee")
		}
		if emp.DepartmentID != nil {
			departmentID = *emp.DepartmentID
		}

		planned, count, err := tx.Task.ActiveAssignedLoad(ctx, employeeID, week)
		if err != nil {
			return fmt.Errorf("sum active load: %w", err)
		}

		weekly := s.defaultCapacity
		existing, err := tx.Workload.FindByEmployeeWeek(ctx, employeeID, week)
		switch {
		case err == nil:
			weekly = existing.WeeklyCapacityHours
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		if capacity != nil {
			weekly = *capacity
		}

		// classified before rounding so 69.997 stays under_utilized
		status := ClassifyWorkload(workloadRatio(planned, weekly))
		row := &entity.EmployeeWorkloadCapacity{
			ID:                  uuid.New().String(),
			EmployeeID:          employeeID,
			WeekStartDate:       week,
			WeeklyCapacityHours: weekly,
			CurrentPlannedHours: planned,
			WorkloadPercentage:  WorkloadPercentage(planned, weekly),
			WorkloadStatus:      status,
			ActiveTaskCount:     count,
		}
		saved, err = tx.Workload.Upsert(ctx, row)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, departmentID, week)
	s.logger.Debug("workload recalculated",
		zap.String("employee_id", employeeID),
		zap.Time("week", week),
		zap.Float64("planned_hours", saved.CurrentPlannedHours),
		zap.String("status", saved.WorkloadStatus))
	return saved, nil
}

// Get returns an employee's row for a week, computing it when missing.
func (s *WorkloadService) Get(ctx context.Context, actor Actor, employeeID string, weekStart time.Time) (*entity.EmployeeWorkloadCapacity, error) {
	if employeeID != actor.EmployeeID && !actor.IsManager() {
		return nil, ErrAuthorization("cannot view another employee's workload")
	}
	week := entity.WeekStart(weekStart)
	row, err := s.repos.Workload.FindByEmployeeWeek(ctx, employeeID, week)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return s.Recalculate(ctx, employeeID, week)
}

// TeamWorkload lists the rows of a department (every active employee when
// departmentID is empty) for one week. Results are cached in redis when
// configured.
func (s *WorkloadService) TeamWorkload(ctx context.Context, actor Actor, departmentID string, weekStart time.Time) ([]entity.EmployeeWorkloadCapacity, error) {
	if !actor.IsManager() {
		return nil, ErrAuthorization("team workload is limited to managers")
	}
	week := entity.WeekStart(weekStart)
	key := teamCacheKey(departmentID, week)

	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, key).Result()
		if err == nil {
			var items []entity.EmployeeWorkloadCapacity
			if err := json.Unmarshal([]byte(cached), &items); err == nil {
				return items, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("workload cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	var ids []string
	var err error
	if departmentID == "" {
		ids, err = s.repos.Employee.ListActiveIDs(ctx)
	} else {
		if _, err := s.repos.Employee.FindDepartment(ctx, departmentID); err != nil {
			return nil, notFoundOr(err, "department")
		}
		ids, err = s.repos.Employee.ListIDsByDepartment(ctx, departmentID)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.repos.Workload.ListByWeek(ctx, week, ids)
	if err != nil {
		return nil, err
	}
	if missing := missingEmployees(ids, items); len(missing) > 0 {
		for _, id := range missing {
			if _, err := s.Recalculate(ctx, id, week); err != nil {
				return nil, err
			}
		}
		if items, err = s.repos.Workload.ListByWeek(ctx, week, ids); err != nil {
			return nil, err
		}
	}

	if s.rdb != nil {
		if data, err := json.Marshal(items); err == nil {
			if err := s.rdb.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("workload cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return items, nil
}

// Rebuild recomputes the week for every active employee and returns how many
// rows were written.
func (s *WorkloadService) Rebuild(ctx context.Context, weekStart time.Time) (int, error) {
	ids, err := s.repos.Employee.ListActiveIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if _, err := s.Recalculate(ctx, id, weekStart); err != nil {
			return i, fmt.Errorf("rebuild workload of %s: %w", id, err)
		}
	}
	s.logger.Info("workload rebuilt", zap.Time("week", entity.WeekStart(weekStart)), zap.Int("employees", len(ids)))
	return len(ids), nil
}

func (s *WorkloadService) invalidate(ctx context.Context, departmentID string, week time.Time) {
	if s.rdb == nil {
		return
	}
	keys := []string{teamCacheKey("", week)}
	if departmentID != "" {
		keys = append(keys, teamCacheKey(departmentID, week))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("workload cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func teamCacheKey(departmentID string, week time.Time) string {
	if departmentID == "" {
		departmentID = "all"
	}
	return fmt.Sprintf("hr:workload:team:%s:%s", departmentID, week.Format("2006-01-02"))
}

func missingEmployees(ids []string, rows []entity.EmployeeWorkloadCapacity) []string {
	have := make(map[string]bool, len(rows))
	for _, r := range rows {
		have[r.EmployeeID] = true
	}
	var out []string
	for _, id := range ids {
		if !have[id] {
			out = append(out, id)
		}
	}
	return out
}
