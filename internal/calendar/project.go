package calendar

import (
	"time"

	"taskcal/internal/model"
)

// ProjectTask derives the task's occupancy and wraps it as an event.
func ProjectTask(task model.Task, role model.Role, now time.Time) TaskEvent {
	return TaskEvent{
		Occupancy: Derive(task, role, now),
		Task:      task,
		Role:      role,
		Editable:  !task.IsDone(),
	}
}

// ProjectMeeting places a meeting exactly at its stored start and end.
func ProjectMeeting(m model.Meeting) MeetingEvent {
	return MeetingEvent{
		Occupancy:  Occupancy{Window: Window{Start: m.Start, End: m.End}},
		Meeting:    m,
		Occurrence: m.Start,
	}
}

// ProjectAll maps tasks then meetings, each in input order. Callers decide
// beforehand which tasks belong on the calendar.
func ProjectAll(tasks []model.Task, meetings []model.Meeting, role model.Role, now time.Time) []Event {
	events := make([]Event, 0, len(tasks)+len(meetings))
	for _, t := range tasks {
		events = append(events, ProjectTask(t, role, now))
	}
	for _, m := range meetings {
		events = append(events, ProjectMeeting(m))
	}
	return events
}

// ProjectRange is ProjectAll restricted to events overlapping [from, to),
// with recurring meetings expanded into their occurrences. A meeting whose
// rule cannot be parsed is placed once at its stored dates.
func ProjectRange(tasks []model.Task, meetings []model.Meeting, role model.Role, now, from, to time.Time) []Event {
	events := make([]Event, 0, len(tasks)+len(meetings))
	for _, t := range tasks {
		ev := ProjectTask(t, role, now)
		if overlaps(ev.Window, from, to) {
			events = append(events, ev)
		}
	}
	for _, m := range meetings {
		occ, err := ExpandMeeting(m, from, to)
		if err != nil {
			ev := ProjectMeeting(m)
			if overlaps(ev.Window, from, to) {
				events = append(events, ev)
			}
			continue
		}
		for _, ev := range occ {
			events = append(events, ev)
		}
	}
	return events
}

func overlaps(w Window, from, to time.Time) bool {
	return w.End.After(from) && w.Start.Before(to)
}
