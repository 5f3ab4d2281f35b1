package entity

import (
	"math"
	"time"
)

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekdayIndex maps Monday..Sunday to 0..6.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekStart returns the Monday (UTC midnight) of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	d := DateOnly(t)
	return d.AddDate(0, 0, -WeekdayIndex(d))
}

// WeekEnd returns the Sunday of the ISO week containing t.
func WeekEnd(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 6)
}

// Round2 rounds to two decimals, the precision of every hours column.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
