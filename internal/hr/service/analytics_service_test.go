package service

import (
	"testing"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/testutil"
)

func TestTrendPolicyClassify(t *testing.T) {
	p := DefaultTrendPolicy
	tests := []struct {
		prior, recent float64
		want          string
	}{
		{0, 0, entity.TrendStable},
		{0, 1, entity.TrendImproving},
		{10, 11, entity.TrendImproving},
		{10, 10.5, entity.TrendStable},
		{10, 9.5, entity.TrendStable},
		{10, 9, entity.TrendDeclining},
		{10, 0, entity.TrendDeclining},
	}
	for _, tt := range tests {
		if got := p.Classify(tt.prior, tt.recent); got != tt.want {
			t.Errorf("Classify(%v, %v) = %s, want %s", tt.prior, tt.recent, got, tt.want)
		}
	}
}

func TestTrendPolicyDefaults(t *testing.T) {
	p := TrendPolicyFrom(testutil.TestConfig().Analytics)
	if p != DefaultTrendPolicy {
		t.Errorf("policy = %+v", p)
	}
	got := TrendPolicyFrom(config.AnalyticsConfig{ImprovingRatio: 1.5, DecliningRatio: 2})
	if got.WindowDays != 7 || got.ImprovingRatio != 1.5 || got.DecliningRatio != DefaultTrendPolicy.DecliningRatio {
		t.Errorf("policy = %+v", got)
	}
}

func TestRollupWeeks(t *testing.T) {
	daily := []entity.EmployeeProductivityAnalytics{
		{Date: testutil.Date(2026, 10, 8), TasksCompleted: 2, TasksCreated: 1, TotalProgressPoints: 200, HoursLogged: 7.5},
		{Date: testutil.Date(2026, 10, 11), TasksCompleted: 0, TasksCreated: 3, HoursLogged: 0.25},
		{Date: testutil.Date(2026, 10, 12), TasksCompleted: 1, TotalProgressPoints: 100, HoursLogged: 8},
		{Date: testutil.Date(2026, 10, 14), TasksCompleted: 3, TotalProgressPoints: 250, HoursLogged: 6},
	}
	weeks := RollupWeeks(daily)
	if len(weeks) != 2 {
		t.Fatalf("weeks = %d", len(weeks))
	}
	first, second := weeks[0], weeks[1]
	if !first.WeekStart.Equal(testutil.Date(2026, 10, 5)) || first.TasksCompleted != 2 || first.TasksCreated != 4 ||
		first.HoursLogged != 7.75 || first.ActiveDays != 1 {
		t.Errorf("first week = %+v", first)
	}
	if !second.WeekStart.Equal(testutil.Date(2026, 10, 12)) || second.TasksCompleted != 4 || second.ProgressPoints != 350 ||
		second.HoursLogged != 14 || second.ActiveDays != 2 {
		t.Errorf("second week = %+v", second)
	}
	if RollupWeeks(nil) != nil {
		t.Error("no rows, no weeks")
	}
}

// completeTask creates a personal task for the employee and marks it done at
// the current clock time.
func (f *fixture) completeTask(title string) *entity.Task {
	f.t.Helper()
	task, err := f.svc.Task.Create(f.ctx, f.employee(), CreateTaskReq{Kind: entity.TaskKindPersonal, Title: title})
	mustNoErr(f.t, err)
	task, err = f.svc.Task.Update(f.ctx, f.employee(), task.ID, UpdateTaskReq{Status: ptr(entity.TaskStatusDone)})
	mustNoErr(f.t, err)
	return task
}

func TestAnalyticsStreaks(t *testing.T) {
	f := newFixture(t)
	emp := f.org.Employee.ID

	f.completeTask("wed")
	f.clock.Set(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	f.completeTask("thu")

	thu, err := f.repos.Analytics.FindDay(f.ctx, emp, testutil.Date(2026, 10, 15))
	mustNoErr(t, err)
	if thu.TasksCompleted != 1 || thu.TasksCreated != 1 || thu.TotalProgressPoints != 100 {
		t.Errorf("thursday = %+v", thu)
	}
	if thu.CurrentStreak != 2 || thu.MaxStreak != 2 {
		t.Fatalf("thursday streak = %d/%d, want 2/2", thu.CurrentStreak, thu.MaxStreak)
	}

	// friday passes without a completion
	f.clock.Set(time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC))
	f.completeTask("sat")
	sat, err := f.repos.Analytics.FindDay(f.ctx, emp, testutil.Date(2026, 10, 17))
	mustNoErr(t, err)
	if sat.CurrentStreak != 1 || sat.MaxStreak != 2 {
		t.Fatalf("saturday streak = %d/%d, want 1/2", sat.CurrentStreak, sat.MaxStreak)
	}

	summary, err := f.svc.Analytics.Summary(f.ctx, f.employee(), emp, testutil.Date(2026, 10, 11), testutil.Date(2026, 10, 17))
	mustNoErr(t, err)
	if summary.CurrentStreak != 1 || summary.MaxStreak != 2 {
		t.Errorf("summary streak = %d/%d", summary.CurrentStreak, summary.MaxStreak)
	}
	if len(summary.Daily) != 3 || len(summary.Weekly) != 1 || summary.Weekly[0].TasksCompleted != 3 {
		t.Errorf("summary rows: daily=%d weekly=%+v", len(summary.Daily), summary.Weekly)
	}
	if summary.Trend != entity.TrendImproving || summary.RecentAverage != 0.43 || summary.PriorAverage != 0 {
		t.Errorf("trend = %s recent=%v prior=%v", summary.Trend, summary.RecentAverage, summary.PriorAverage)
	}
}

func TestAnalyticsBackfillRollsForward(t *testing.T) {
	f := newFixture(t)
	emp := f.org.Employee.ID

	f.completeTask("wed")
	f.clock.Set(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	f.completeTask("thu")
	f.clock.Set(time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC))
	f.completeTask("sat")

	// a completion on friday is imported after the fact
	fri := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	late := &entity.Task{
		ID:             "task-late",
		Kind:           entity.TaskKindPersonal,
		Title:          "imported",
		OwnerID:        emp,
		Status:         entity.TaskStatusDone,
		ProgressPoints: 100,
		CompletedAt:    &fri,
		CreatedAt:      fri,
		UpdatedAt:      fri,
	}
	if err := f.db.Create(late).Error; err != nil {
		t.Fatal(err)
	}
	n, err := f.svc.Analytics.RecomputeRange(f.ctx, emp, testutil.Date(2026, 10, 16), testutil.Date(2026, 12, 31))
	mustNoErr(t, err)
	// clamped to today
	if n != 2 {
		t.Errorf("recomputed %d days, want 2", n)
	}

	sat, err := f.repos.Analytics.FindDay(f.ctx, emp, testutil.Date(2026, 10, 17))
	mustNoErr(t, err)
	if sat.CurrentStreak != 4 || sat.MaxStreak != 4 {
		t.Errorf("saturday streak = %d/%d, want 4/4", sat.CurrentStreak, sat.MaxStreak)
	}

	_, err = f.svc.Analytics.RecomputeDay(f.ctx, emp, testutil.Date(2026, 10, 18))
	wantKind(t, err, KindValidation)
}

func TestAnalyticsSummaryRules(t *testing.T) {
	f := newFixture(t)
	from, to := testutil.Date(2026, 10, 1), testutil.Date(2026, 10, 14)

	_, err := f.svc.Analytics.Summary(f.ctx, f.actor(f.org.Peer), f.org.Employee.ID, from, to)
	wantKind(t, err, KindAuthorization)
	_, err = f.svc.Analytics.Summary(f.ctx, f.employee(), f.org.Employee.ID, to, from)
	wantKind(t, err, KindValidation)
	_, err = f.svc.Analytics.Summary(f.ctx, f.employee(), f.org.Employee.ID, to.AddDate(-2, 0, 0), to)
	wantKind(t, err, KindValidation)
	_, err = f.svc.Analytics.Summary(f.ctx, f.gm(), "emp-missing", from, to)
	wantKind(t, err, KindNotFound)

	summary, err := f.svc.Analytics.Summary(f.ctx, f.gm(), f.org.Employee.ID, from, to)
	mustNoErr(t, err)
	if len(summary.Daily) != 0 || summary.Trend != entity.TrendStable || summary.CurrentStreak != 0 {
		t.Errorf("empty summary = %+v", summary)
	}
}
