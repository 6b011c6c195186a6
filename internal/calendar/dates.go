package calendar

import (
	"time"
)

// DateLayouts are accepted by ParseDate, most specific first.
var DateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses raw in loc using DateLayouts. Zoned layouts keep their
// own offset.
func ParseDate(field, raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, &InvalidDateError{Field: field}
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range DateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &InvalidDateError{Field: field, Value: raw}
}

// Window is a half-open occupancy range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days is the whole number of days between Start and End.
func (w Window) Days() int {
	return daysBetween(w.Start, w.End)
}

func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

// present treats nil and zero instants as absent dates.
func present(t *time.Time) bool {
	return t != nil && !t.IsZero()
}

func addDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// wallClock maps t onto UTC keeping its wall-clock fields, so differences
// ignore DST transitions in t's location.
func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), time.UTC)
}

func wallDelta(from, to time.Time) time.Duration {
	return wallClock(to).Sub(wallClock(from))
}

// shift moves t by a wall-clock duration and re-anchors it in t's location.
func shift(t time.Time, d time.Duration) time.Time {
	w := wallClock(t).Add(d)
	return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), t.Location())
}

// daysBetween truncates toward zero.
func daysBetween(from, to time.Time) int {
	return int(wallDelta(from, to) / (24 * time.Hour))
}
