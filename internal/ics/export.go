// Package ics renders projected calendar events as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"taskcal/internal/calendar"
)

const productID = "-//taskcal//calendar//EN"

// Build converts events into a VCALENDAR. Task events become all-day
// entries; a meeting whose event is its series start carries the RRULE.
func Build(name string, events []calendar.Event, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(uid(ev))
		ve.SetDtStampTime(stamp.UTC())
		ve.SetSummary(ev.EventTitle())

		span := ev.Span()
		if span.AllDay {
			ve.SetAllDayStartAt(span.Start)
			ve.SetAllDayEndAt(span.End)
		} else {
			ve.SetStartAt(span.Start.UTC())
			ve.SetEndAt(span.End.UTC())
		}

		switch e := ev.(type) {
		case calendar.TaskEvent:
			ve.SetDescription(taskDescription(e))
			ve.AddProperty(ical.ComponentPropertyCategories, "TASK")
			if e.Task.IsDone() {
				ve.SetStatus(ical.ObjectStatusCompleted)
			}
		case calendar.MeetingEvent:
			if e.Meeting.Description != "" {
				ve.SetDescription(e.Meeting.Description)
			}
			if e.Meeting.JoinLink != "" {
				ve.SetURL(e.Meeting.JoinLink)
			}
			ve.AddProperty(ical.ComponentPropertyCategories, "MEETING")
			if isSeriesStart(e) {
				ve.AddProperty(ical.ComponentPropertyRrule, strings.TrimPrefix(e.Meeting.RRule, "RRULE:"))
			}
		}
	}
	return cal
}

// Write serializes the feed to w.
func Write(w io.Writer, name string, events []calendar.Event, stamp time.Time) error {
	if _, err := io.WriteString(w, Build(name, events, stamp).Serialize()); err != nil {
		return fmt.Errorf("write ics: %w", err)
	}
	return nil
}

func uid(ev calendar.Event) string {
	id := ev.EventID()
	if m, ok := ev.(calendar.MeetingEvent); ok && isSeriesStart(m) {
		id = m.Meeting.ID
	}
	return fmt.Sprintf("%s-%s@taskcal", ev.Kind(), id)
}

func isSeriesStart(e calendar.MeetingEvent) bool {
	return e.Meeting.RRule != "" && e.Occurrence.Equal(e.Meeting.Start)
}

func taskDescription(e calendar.TaskEvent) string {
	var parts []string
	if d := strings.TrimSpace(e.Task.Description); d != "" {
		parts = append(parts, d)
	}
	parts = append(parts, fmt.Sprintf("Status: %s", e.Task.Status))
	if e.Task.Priority != "" {
		parts = append(parts, fmt.Sprintf("Priority: %s", e.Task.Priority))
	}
	if e.Task.Deadline != nil {
		parts = append(parts, "Deadline: "+e.Task.Deadline.Format("2006-01-02"))
	}
	return strings.Join(parts, "\n")
}
