package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Today returns the current calendar date of clk, truncated to midnight UTC.
// A nil clock reads real time.
func Today(clk clockwork.Clock) time.Time {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return CalendarDate(clk.Now())
}

// CalendarDate drops the time-of-day component of t, in UTC.
func CalendarDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(CalendarDate(b).Sub(CalendarDate(a)).Hours() / 24)
}
