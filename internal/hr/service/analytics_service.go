package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSummaryDays = 366

// TrendPolicy compares the average daily tasks_completed of the last
// WindowDays against the WindowDays before them. A ratio at or above
// ImprovingRatio is improving, at or below DecliningRatio is declining.
type TrendPolicy struct {
	WindowDays     int
	ImprovingRatio float64
	DecliningRatio float64
}

// DefaultTrendPolicy is used for zero config values.
var DefaultTrendPolicy = TrendPolicy{WindowDays: 7, ImprovingRatio: 1.10, DecliningRatio: 0.90}

func TrendPolicyFrom(cfg config.AnalyticsConfig) TrendPolicy {
	p := TrendPolicy{
		WindowDays:     cfg.TrendWindowDays,
		ImprovingRatio: cfg.ImprovingRatio,
		DecliningRatio: cfg.DecliningRatio,
	}
	if p.WindowDays <= 0 {
		p.WindowDays = DefaultTrendPolicy.WindowDays
	}
	if p.ImprovingRatio <= 0 {
		p.ImprovingRatio = DefaultTrendPolicy.ImprovingRatio
	}
	if p.DecliningRatio <= 0 || p.DecliningRatio > p.ImprovingRatio {
		p.DecliningRatio = DefaultTrendPolicy.DecliningRatio
	}
	return p
}

// Classify compares two window averages.
func (p TrendPolicy) Classify(priorAvg, recentAvg float64) string {
	if priorAvg <= 0 {
		if recentAvg > 0 {
			return entity.TrendImproving
		}
		return entity.TrendStable
	}
	ratio := recentAvg / priorAvg
	switch {
	case ratio >= p.ImprovingRatio:
		return entity.TrendImproving
	case ratio <= p.DecliningRatio:
		return entity.TrendDeclining
	default:
		return entity.TrendStable
	}
}

// WeeklyRollup aggregates the daily rows of one ISO week.
type WeeklyRollup struct {
	WeekStart      time.Time `json:"week_start"`
	TasksCompleted int       `json:"tasks_completed"`
	TasksCreated   int       `json:"tasks_created"`
	ProgressPoints int       `json:"progress_points"`
	HoursLogged    float64   `json:"hours_logged"`
	ActiveDays     int       `json:"active_days"`
}

// ProductivitySummary is the read model of one employee over a date range.
type ProductivitySummary struct {
	EmployeeID    string                                 `json:"employee_id"`
	From          time.Time                              `json:"from"`
	To            time.Time                              `json:"to"`
	Daily         []entity.EmployeeProductivityAnalytics `json:"daily"`
	Weekly        []WeeklyRollup                         `json:"weekly"`
	CurrentStreak int                                    `json:"current_streak"`
	MaxStreak     int                                    `json:"max_streak"`
	Trend         string                                 `json:"trend"`
	RecentAverage float64                                `json:"recent_average"`
	PriorAverage  float64                                `json:"prior_average"`
}

// AnalyticsService derives EmployeeProductivityAnalytics from tasks and timesheets.
type AnalyticsService struct {
	repos  *repository.Repositories
	policy TrendPolicy
	now    func() time.Time
	logger *zap.Logger
}

func NewAnalyticsService(repos *repository.Repositories, policy TrendPolicy, now func() time.Time, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{repos: repos, policy: policy, now: now, logger: logger}
}

// Policy returns the trend policy in effect.
func (s *AnalyticsService) Policy() TrendPolicy {
	return s.policy
}

// Today returns the current date at UTC midnight.
func (s *AnalyticsService) Today() time.Time {
	return entity.DateOnly(s.now())
}

// RecomputeDay rebuilds the row of one day from source data and rolls the
// streaks of the following days forward up to today.
func (s *AnalyticsService) RecomputeDay(ctx context.Context, employeeID string, day time.Time) (*entity.EmployeeProductivityAnalytics, error) {
	day = entity.DateOnly(day)
	today := entity.DateOnly(s.now())
	if day.After(today) {
		return nil, ErrValidation("cannot compute analytics for a future day")
	}

	var saved *entity.EmployeeProductivityAnalytics
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Employee.LockByID(ctx, employeeID); err != nil {
			return notFoundOr(err, "employee")
		}

		completed, points, err := tx.Task.CompletedOn(ctx, employeeID, day)
		if err != nil {
			return fmt.Errorf("count completed: %w", err)
		}
		created, err := tx.Task.CountCreatedOn(ctx, employeeID, day)
		if err != nil {
			return fmt.Errorf("count created: %w", err)
		}
		hours, err := tx.Timesheet.SumHoursOn(ctx, employeeID, day)
		if err != nil {
			return fmt.Errorf("sum hours: %w", err)
		}

		prev, err := tx.Analytics.FindLatestBefore(ctx, employeeID, day)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		existing, err := tx.Analytics.FindDay(ctx, employeeID, day)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		row := &entity.EmployeeProductivityAnalytics{
			ID:                  uuid.New().String(),
			EmployeeID:          employeeID,
			Date:                day,
			TasksCompleted:      completed,
			TasksCreated:        created,
			TotalProgressPoints: points,
			HoursLogged:         hours,
		}
		row.CurrentStreak, row.MaxStreak = nextStreak(prev, day, completed)
		if existing != nil && existing.MaxStreak > row.MaxStreak {
			row.MaxStreak = existing.MaxStreak
		}

		if saved, err = tx.Analytics.Upsert(ctx, row); err != nil {
			return err
		}
		return s.rollForward(ctx, tx, saved, today)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// RecomputeRange recomputes every day in [from, to], clamped to today.
func (s *AnalyticsService) RecomputeRange(ctx context.Context, employeeID string, from, to time.Time) (int, error) {
	from, to = entity.DateOnly(from), entity.DateOnly(to)
	if today := entity.DateOnly(s.now()); to.After(today) {
		to = today
	}
	if from.After(to) {
		return 0, nil
	}
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if _, err := s.RecomputeDay(ctx, employeeID, d); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// nextStreak derives the streak of day from the newest earlier row.
func nextStreak(prev *entity.EmployeeProductivityAnalytics, day time.Time, completed int) (current, best int) {
	prevStreak, prevMax := 0, 0
	if prev != nil {
		prevMax = prev.MaxStreak
		if entity.DateOnly(prev.Date).Equal(day.AddDate(0, 0, -1)) {
			prevStreak = prev.CurrentStreak
		}
	}
	if completed > 0 {
		current = prevStreak + 1
	}
	best = prevMax
	if current > best {
		best = current
	}
	return current, best
}

func (s *AnalyticsService) rollForward(ctx context.Context, tx *repository.Repositories, from *entity.EmployeeProductivityAnalytics, today time.Time) error {
	start := entity.DateOnly(from.Date)
	if !start.Before(today) {
		return nil
	}
	later, err := tx.Analytics.ListRange(ctx, from.EmployeeID, start.AddDate(0, 0, 1), today)
	if err != nil {
		return err
	}
	prev := from
	for i := range later {
		row := &later[i]
		current, best := nextStreak(prev, entity.DateOnly(row.Date), row.TasksCompleted)
		if row.MaxStreak > best {
			best = row.MaxStreak
		}
		if current != row.CurrentStreak || best != row.MaxStreak {
			row.CurrentStreak, row.MaxStreak = current, best
			if err := tx.Analytics.UpdateStreak(ctx, row.ID, current, best); err != nil {
				return err
			}
		}
		prev = row
	}
	return nil
}

// Summary returns daily rows, weekly rollups, streaks and the trend for one
// employee. Employees see their own numbers, managers anyone's.
func (s *AnalyticsService) Summary(ctx context.Context, actor Actor, employeeID string, from, to time.Time) (*ProductivitySummary, error) {
	if employeeID != actor.EmployeeID && !actor.IsManager() {
		return nil, ErrAuthorization("cannot view another employee's analytics")
	}
	from, to = entity.DateOnly(from), entity.DateOnly(to)
	if from.After(to) {
		return nil, ErrValidation("from must not be after to")
	}
	if to.Sub(from) > maxSummaryDays*24*time.Hour {
		return nil, ErrValidation("range is limited to %d days", maxSummaryDays)
	}
	if _, err := s.repos.Employee.FindByID(ctx, employeeID); err != nil {
		return nil, notFoundOr(err, "employee")
	}

	daily, err := s.repos.Analytics.ListRange(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	summary := &ProductivitySummary{
		EmployeeID: employeeID,
		From:       from,
		To:         to,
		Daily:      daily,
		Weekly:     RollupWeeks(daily),
	}

	latest, err := s.repos.Analytics.FindLatestBefore(ctx, employeeID, to.AddDate(0, 0, 1))
	switch {
	case err == nil:
		summary.MaxStreak = latest.MaxStreak
		// the streak survives until a full day passes without a completion
		if !entity.DateOnly(latest.Date).Before(to.AddDate(0, 0, -1)) {
			summary.CurrentStreak = latest.CurrentStreak
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	w := s.policy.WindowDays
	window, err := s.repos.Analytics.ListRange(ctx, employeeID, to.AddDate(0, 0, -2*w+1), to)
	if err != nil {
		return nil, err
	}
	recentFrom := to.AddDate(0, 0, -w+1)
	var recent, prior int
	for _, row := range window {
		if entity.DateOnly(row.Date).Before(recentFrom) {
			prior += row.TasksCompleted
		} else {
			recent += row.TasksCompleted
		}
	}
	summary.RecentAverage = entity.Round2(float64(recent) / float64(w))
	summary.PriorAverage = entity.Round2(float64(prior) / float64(w))
	summary.Trend = s.policy.Classify(float64(prior)/float64(w), float64(recent)/float64(w))
	return summary, nil
}

// RollupWeeks groups daily rows by ISO week, in date order.
func RollupWeeks(daily []entity.EmployeeProductivityAnalytics) []WeeklyRollup {
	var out []WeeklyRollup
	for _, d := range daily {
		week := entity.WeekStart(d.Date)
		if len(out) == 0 || !out[len(out)-1].WeekStart.Equal(week) {
			out = append(out, WeeklyRollup{WeekStart: week})
		}
		w := &out[len(out)-1]
		w.TasksCompleted += d.TasksCompleted
		w.TasksCreated += d.TasksCreated
		w.ProgressPoints += d.TotalProgressPoints
		w.HoursLogged = entity.Round2(w.HoursLogged + d.HoursLogged)
		if d.TasksCompleted > 0 {
			w.ActiveDays++
		}
	}
	return out
}
