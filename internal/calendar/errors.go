package calendar

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrTransient    = errors.New("transient network error")

	// ErrTaskDone rejects any occupancy gesture on a completed task.
	ErrTaskDone = fmt.Errorf("task is done: %w", ErrUnauthorized)
)

// InvalidDateError describes a date that could not be used as an instant.
type InvalidDateError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid date: %s is missing", e.Field)
	}
	if e.Reason != "" {
		return fmt.Sprintf("invalid date: %s %q %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid date: %s %q", e.Field, e.Value)
}

func (e *InvalidDateError) Is(target error) bool {
	return target == ErrInvalidDate
}

// Kind names the taxonomy bucket of err, or "internal" when it has none.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}
