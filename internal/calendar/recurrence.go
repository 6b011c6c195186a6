package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"taskcal/internal/model"
)

const maxOccurrencesPerMeeting = 5000

// ParseRRule parses an RFC 5545 RRULE value, with or without the "RRULE:"
// prefix, anchored at dtstart.
func ParseRRule(raw string, dtstart time.Time) (*rrule.RRule, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "RRULE:")
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", raw, err)
	}
	opt.Dtstart = dtstart
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule %q: %w", raw, err)
	}
	return r, nil
}

// ExpandMeeting yields the occurrences of m overlapping [from, to). Each
// occurrence keeps the meeting's duration.
func ExpandMeeting(m model.Meeting, from, to time.Time) ([]MeetingEvent, error) {
	if m.RRule == "" {
		ev := ProjectMeeting(m)
		if !overlaps(ev.Window, from, to) {
			return nil, nil
		}
		return []MeetingEvent{ev}, nil
	}

	r, err := ParseRRule(m.RRule, m.Start)
	if err != nil {
		return nil, err
	}

	dur := m.End.Sub(m.Start)
	starts := r.Between(from.Add(-dur), to, true)
	if len(starts) > maxOccurrencesPerMeeting {
		starts = starts[:maxOccurrencesPerMeeting]
	}

	out := make([]MeetingEvent, 0, len(starts))
	for _, s := range starts {
		w := Window{Start: s, End: s.Add(dur)}
		if !overlaps(w, from, to) {
			continue
		}
		out = append(out, MeetingEvent{
			Occupancy:  Occupancy{Window: w},
			Meeting:    m,
			Occurrence: s,
		})
	}
	return out, nil
}
