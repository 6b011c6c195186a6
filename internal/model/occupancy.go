package model

import "time"

// Target names which pair of dates an occupancy change writes.
type Target string

const (
	// TargetAuthoritative writes StartDate/Deadline and clears any override.
	TargetAuthoritative Target = "authoritative"
	// TargetOverride writes the contributor's CalendarDates.
	TargetOverride Target = "override"
)

func (t Target) IsValid() bool {
	return t == TargetAuthoritative || t == TargetOverride
}

// OccupancyChange is one update of a task's calendar placement. Nil Start
// and End clear the targeted dates.
type OccupancyChange struct {
	Target Target     `json:"target"`
	Start  *time.Time `json:"start"`
	End    *time.Time `json:"end"`
}

// Clears reports whether the change removes the task from the calendar.
func (c OccupancyChange) Clears() bool {
	return c.Start == nil && c.End == nil
}
