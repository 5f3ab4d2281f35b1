package entity

import (
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		// a Sunday belongs to the week that started six days earlier
		{time.Date(2027, 1, 3, 8, 0, 0, 0, time.UTC), time.Date(2026, 12, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := WeekStart(tt.in); !got.Equal(tt.want) {
			t.Errorf("WeekStart(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if end := WeekEnd(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)); !end.Equal(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("WeekEnd = %s", end)
	}
}

func TestWeekdayIndex(t *testing.T) {
	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if got := WeekdayIndex(monday.AddDate(0, 0, i)); got != i {
			t.Errorf("WeekdayIndex(+%d) = %d", i, got)
		}
	}
}

func TestNextStage(t *testing.T) {
	if s, ok := NextStage(StagePM); !ok || s != StageDM {
		t.Errorf("after pm: %q %v", s, ok)
	}
	if s, ok := NextStage(StageDM); !ok || s != StageGM {
		t.Errorf("after dm: %q %v", s, ok)
	}
	if _, ok := NextStage(StageGM); ok {
		t.Error("gm must be the last stage")
	}
	if _, ok := NextStage("ceo"); ok {
		t.Error("unknown stage must not advance")
	}
	if !IsStage("dm") || IsStage("employee") {
		t.Error("IsStage mismatch")
	}
}

func TestTimesheetRowTotals(t *testing.T) {
	row := &TimesheetRow{}
	row.SetDayHours([7]float64{8, 7.5, 8, 8, 6.25, 0, 0})
	if row.TotalHours != 37.75 {
		t.Errorf("TotalHours = %v, want 37.75", row.TotalHours)
	}

	// a caller-supplied total is overwritten on save
	row.TotalHours = 99
	if err := row.BeforeSave(nil); err != nil {
		t.Fatal(err)
	}
	if row.TotalHours != 37.75 {
		t.Errorf("TotalHours after BeforeSave = %v", row.TotalHours)
	}

	friday := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	if h := row.HoursOn(friday); h != 6.25 {
		t.Errorf("HoursOn(friday) = %v", h)
	}

	ts := &Timesheet{Rows: []TimesheetRow{*row, {TotalHours: 2.25}}}
	if ts.TotalHours() != 40 {
		t.Errorf("Timesheet.TotalHours = %v", ts.TotalHours())
	}
}

func TestTaskResponsible(t *testing.T) {
	assignee := "emp-2"
	task := &Task{OwnerID: "emp-1"}
	if task.ResponsibleID() != "emp-1" {
		t.Errorf("unassigned task counts toward the owner")
	}
	task.AssigneeID = &assignee
	if task.ResponsibleID() != "emp-2" {
		t.Errorf("assigned task counts toward the assignee")
	}
}
