// Package calendar reconciles a task's calendar occupancy with its
// authoritative project dates. Everything here is pure: callers supply the
// clock and persist results themselves.
package calendar

import (
	"time"

	"taskcal/internal/model"
)

// Occupancy is the window a task is drawn on in a calendar grid.
type Occupancy struct {
	Window
	AllDay bool `json:"all_day"`
}

// Derive computes the displayed occupancy of task for a user acting with
// role. It is total: absent or zero dates fall through to the next rule.
func Derive(task model.Task, role model.Role, now time.Time) Occupancy {
	var w Window

	switch {
	case role == model.RoleManager || task.IsDone():
		w = deriveAuthoritative(task, now)
	case task.HasOverride():
		w = deriveOverride(task)
	case present(task.StartDate) || present(task.Deadline):
		w = deriveBounds(task)
	default:
		w = Window{Start: now, End: addDays(now, 1)}
	}

	if !w.End.After(w.Start) {
		w.End = addDays(w.Start, 1)
	}
	return Occupancy{Window: w, AllDay: true}
}

// deriveAuthoritative places the task at its stored bounds without the
// inclusive-day adjustment; managers edit those dates directly.
func deriveAuthoritative(task model.Task, now time.Time) Window {
	var w Window
	switch {
	case present(task.StartDate):
		w.Start = *task.StartDate
	case present(task.Deadline):
		w.Start = *task.Deadline
	default:
		w.Start = now
	}
	if present(task.Deadline) {
		w.End = *task.Deadline
	} else {
		w.End = addDays(w.Start, 1)
	}
	return w
}

func deriveOverride(task model.Task) Window {
	w := Window{Start: *task.Calendar.Start}
	if present(task.Calendar.End) {
		w.End = *task.Calendar.End
	} else {
		w.End = addDays(w.Start, 1)
	}
	lo, hi := Bounds(task)
	return clampInto(w, lo, hi)
}

func deriveBounds(task model.Task) Window {
	var w Window
	if present(task.StartDate) {
		w.Start = *task.StartDate
	} else {
		w.Start = *task.Deadline
	}
	if present(task.Deadline) {
		w.End = *task.Deadline
	} else {
		w.End = *task.StartDate
	}
	if !w.End.After(w.Start) {
		w.End = addDays(w.Start, 1)
	} else {
		w.End = addDays(w.End, 1)
	}
	return w
}

// Bounds returns the authoritative range a contributor may occupy:
// [StartDate, Deadline + 1 day). Either edge is nil when unset. A deadline
// before the start date is ignored, leaving only the lower edge.
func Bounds(task model.Task) (lo, hi *time.Time) {
	if present(task.StartDate) {
		s := *task.StartDate
		lo = &s
	}
	if present(task.Deadline) && (lo == nil || !task.Deadline.Before(*lo)) {
		e := addDays(*task.Deadline, 1)
		hi = &e
	}
	return lo, hi
}

// clampInto shrinks w to fit [lo, hi). A window pushed entirely past an
// edge collapses to the one-day slot next to that edge.
func clampInto(w Window, lo, hi *time.Time) Window {
	if lo != nil && w.Start.Before(*lo) {
		w.Start = *lo
	}
	if hi != nil && w.End.After(*hi) {
		w.End = *hi
	}
	if !w.End.After(w.Start) {
		w.End = addDays(w.Start, 1)
		if hi != nil && w.End.After(*hi) {
			w.End = *hi
			w.Start = addDays(w.End, -1)
		}
	}
	return w
}
