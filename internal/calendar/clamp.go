package calendar

import (
	"time"

	"taskcal/internal/model"
)

// Result is the outcome of a drag, resize or drop gesture.
type Result struct {
	Window
	Accepted bool `json:"accepted"`
	// Adjusted is set when the window differs from the proposal.
	Adjusted bool `json:"adjusted"`
}

// Clamp corrects a proposed window against task's authoritative bounds for
// a user acting with role. A zero proposal.End, or one equal to Start,
// means the gesture carried no extent and is read as a one-day window.
//
// The returned error is an *InvalidDateError for malformed proposals and
// ErrTaskDone for completed tasks; Accepted is false in both cases and the
// caller should revert the gesture.
func Clamp(task model.Task, role model.Role, proposal Window) (Result, error) {
	if proposal.Start.IsZero() {
		return Result{Window: proposal}, &InvalidDateError{Field: "start"}
	}
	if proposal.End.IsZero() || proposal.End.Equal(proposal.Start) {
		proposal.End = addDays(proposal.Start, 1)
	}
	if proposal.End.Before(proposal.Start) {
		return Result{Window: proposal}, &InvalidDateError{Field: "end", Value: proposal.End.Format(time.RFC3339)}
	}
	if task.IsDone() {
		return Result{Window: proposal}, ErrTaskDone
	}
	if role == model.RoleManager {
		return Result{Window: proposal, Accepted: true}, nil
	}

	w := clampContributor(proposal, task)
	return Result{Window: w, Accepted: true, Adjusted: !w.Equal(proposal)}, nil
}

func clampContributor(w Window, task model.Task) Window {
	lo, hi := Bounds(task)

	if lo != nil && w.Start.Before(*lo) {
		d := wallDelta(w.Start, *lo)
		w.Start = *lo
		w.End = shift(w.End, d)
	}

	if hi != nil && w.End.After(*hi) {
		w.End = *hi
		if !w.Start.Before(w.End) {
			w.Start = addDays(w.End, -1)
		}
	}

	if lo != nil && hi != nil {
		maxDays := daysBetween(*task.StartDate, *task.Deadline) + 1
		if maxDays > 0 && w.Days() > maxDays {
			w.End = addDays(w.Start, maxDays)
		}
	}
	return w
}
