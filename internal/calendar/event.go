package calendar

import (
	"encoding/json"
	"time"

	"taskcal/internal/model"
)

type SourceKind string

const (
	SourceTask    SourceKind = "task"
	SourceMeeting SourceKind = "meeting"
)

// Event is one entry of a rendered calendar. It is implemented only by
// TaskEvent and MeetingEvent; switch on the concrete type where behavior
// differs.
type Event interface {
	EventID() string
	EventTitle() string
	Span() Occupancy
	Kind() SourceKind
	sealed()
}

// TaskEvent is a task projected through Derive.
type TaskEvent struct {
	Occupancy
	Task model.Task
	Role model.Role
	// Editable is false for completed tasks.
	Editable bool
}

func (e TaskEvent) EventID() string    { return e.Task.ID }
func (e TaskEvent) EventTitle() string { return e.Task.Title }
func (e TaskEvent) Span() Occupancy    { return e.Occupancy }
func (e TaskEvent) Kind() SourceKind   { return SourceTask }
func (TaskEvent) sealed()              {}

func (e TaskEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string     `json:"id"`
		Title    string     `json:"title"`
		Start    time.Time  `json:"start"`
		End      time.Time  `json:"end"`
		AllDay   bool       `json:"all_day"`
		Kind     SourceKind `json:"kind"`
		Editable bool       `json:"editable"`
		Role     model.Role `json:"role"`
		Task     model.Task `json:"task"`
	}{e.Task.ID, e.Task.Title, e.Start, e.End, e.AllDay, SourceTask, e.Editable, e.Role, e.Task})
}

// MeetingEvent is a meeting, or one occurrence of a recurring meeting.
type MeetingEvent struct {
	Occupancy
	Meeting model.Meeting
	// Occurrence is the start of this instance for recurring meetings, and
	// equals Meeting.Start otherwise.
	Occurrence time.Time
}

func (e MeetingEvent) EventID() string {
	if e.Meeting.RRule == "" {
		return e.Meeting.ID
	}
	return e.Meeting.ID + "@" + e.Occurrence.UTC().Format("20060102T150405Z")
}
func (e MeetingEvent) EventTitle() string { return e.Meeting.Title }
func (e MeetingEvent) Span() Occupancy    { return e.Occupancy }
func (e MeetingEvent) Kind() SourceKind   { return SourceMeeting }
func (MeetingEvent) sealed()              {}

func (e MeetingEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string        `json:"id"`
		Title       string        `json:"title"`
		Start       time.Time     `json:"start"`
		End         time.Time     `json:"end"`
		AllDay      bool          `json:"all_day"`
		Kind        SourceKind    `json:"kind"`
		Description string        `json:"description,omitempty"`
		JoinLink    string        `json:"join_link"`
		Meeting     model.Meeting `json:"meeting"`
	}{e.EventID(), e.Meeting.Title, e.Start, e.End, e.AllDay, SourceMeeting, e.Meeting.Description, e.Meeting.JoinLink, e.Meeting})
}
