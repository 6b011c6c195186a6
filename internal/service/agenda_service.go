package service

import (
	"context"
	"fmt"
	"html"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"taskcal/internal/calendar"
	"taskcal/internal/model"
)

// LinkedUsers lists users reachable through a chat.
type LinkedUsers interface {
	ListLinked(ctx context.Context) ([]model.User, error)
}

// AgendaService builds human-readable agenda digests.
type AgendaService struct {
	calendar *CalendarService
	users    LinkedUsers
	days     int
}

func NewAgendaService(cal *CalendarService, users LinkedUsers, days int) *AgendaService {
	if days <= 0 {
		days = 7
	}
	return &AgendaService{calendar: cal, users: users, days: days}
}

// Summary renders the user's next days of calendar as Telegram HTML.
func (s *AgendaService) Summary(ctx context.Context, userID string, now time.Time) (string, error) {
	loc := now.Location()
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, s.days)

	user, events, err := s.calendar.Events(ctx, userID, from, to, now)
	if err != nil {
		return "", err
	}
	_, unscheduled, err := s.calendar.Unscheduled(ctx, userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>Agenda for %s</b>\n", html.EscapeString(user.Name)))
	b.WriteString(fmt.Sprintf("🗓 %s, next %s\n", now.Format("Mon 02 Jan 2006"), english.Plural(s.days, "day", "")))

	empty := true
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)
		var today []calendar.Event
		for _, ev := range events {
			span := ev.Span()
			if span.End.After(day) && span.Start.Before(next) {
				today = append(today, ev)
			}
		}
		if len(today) == 0 {
			continue
		}
		empty = false
		sort.SliceStable(today, func(i, j int) bool {
			return today[i].Span().Start.Before(today[j].Span().Start)
		})

		b.WriteString(fmt.Sprintf("\n<b>%s</b>\n", day.Format("Mon 02 Jan")))
		for _, ev := range today {
			b.WriteString(formatEvent(ev, now))
		}
	}
	if empty {
		b.WriteString("\n— nothing on the calendar\n")
	}

	if n := len(unscheduled); n > 0 {
		b.WriteString(fmt.Sprintf("\n📥 %s not on the calendar yet", english.Plural(n, "task", "")))
	}

	return strings.TrimSpace(b.String()), nil
}

func formatEvent(ev calendar.Event, now time.Time) string {
	title := html.EscapeString(strings.TrimSpace(ev.EventTitle()))
	switch e := ev.(type) {
	case calendar.MeetingEvent:
		loc := now.Location()
		line := fmt.Sprintf("📞 %s–%s %s", e.Start.In(loc).Format("15:04"), e.End.In(loc).Format("15:04"), title)
		if e.Meeting.JoinLink != "" {
			line += fmt.Sprintf("\n   🔗 %s", html.EscapeString(e.Meeting.JoinLink))
		}
		return line + "\n"
	case calendar.TaskEvent:
		icon := "📌"
		switch {
		case e.Task.IsDone():
			icon = "✅"
		case e.Task.Deadline != nil && now.After(*e.Task.Deadline):
			icon = "⚠️"
		}
		line := fmt.Sprintf("%s %s", icon, title)
		if e.Task.Deadline != nil && !e.Task.IsDone() {
			line += fmt.Sprintf("\n   ⏰ due %s", humanize.RelTime(*e.Task.Deadline, now, "ago", "from now"))
		}
		return line + "\n"
	default:
		return title + "\n"
	}
}

// SendDaily delivers the summary to every user with a linked chat. A
// failure for one user does not stop the others.
func (s *AgendaService) SendDaily(ctx context.Context, now time.Time, send func(chatID int64, text string) error) error {
	users, err := s.users.ListLinked(ctx)
	if err != nil {
		return fmt.Errorf("list linked users: %w", err)
	}
	for _, u := range users {
		if u.TelegramID == nil {
			continue
		}
		text, err := s.Summary(ctx, u.ID, now)
		if err != nil {
			log.Printf("build agenda for %s: %v", u.ID, err)
			continue
		}
		if err := send(*u.TelegramID, text); err != nil {
			log.Printf("send agenda to %s: %v", u.ID, err)
		}
	}
	return nil
}
