package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns the wall clock in UTC.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type fixedClock struct {
	now time.Time
}

func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// MonthEnded reports whether the calendar month year/month is over at c's
// current time. A card valid through 06/26 is still usable on 30 June 2026.
func MonthEnded(c Clock, year int, month time.Month) bool {
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return !c.Now().Before(next)
}
