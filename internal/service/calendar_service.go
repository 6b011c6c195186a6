package service

import (
	"context"
	"fmt"
	"time"

	"taskcal/internal/calendar"
	"taskcal/internal/model"
)

// BoardView is a user's tasks split into calendar and unscheduled lists.
type BoardView struct {
	User        model.User       `json:"user"`
	Scheduled   []calendar.Event `json:"scheduled"`
	Unscheduled []model.Task     `json:"unscheduled"`
}

// CalendarService assembles what a calendar view renders.
type CalendarService struct {
	users    UserStore
	tasks    TaskStore
	meetings MeetingLister
}

func NewCalendarService(users UserStore, tasks TaskStore, meetings MeetingLister) *CalendarService {
	return &CalendarService{users: users, tasks: tasks, meetings: meetings}
}

// Board partitions the user's tasks and projects the scheduled ones.
func (s *CalendarService) Board(ctx context.Context, userID string, now time.Time) (*BoardView, error) {
	user, tasks, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	scheduled, unscheduled := calendar.Partition(tasks, user.Role)
	if unscheduled == nil {
		unscheduled = []model.Task{}
	}
	return &BoardView{
		User:        *user,
		Scheduled:   calendar.ProjectAll(scheduled, nil, user.Role, now),
		Unscheduled: unscheduled,
	}, nil
}

// Events returns the user's scheduled tasks and meetings overlapping
// [from, to), with recurring meetings expanded.
func (s *CalendarService) Events(ctx context.Context, userID string, from, to, now time.Time) (*model.User, []calendar.Event, error) {
	if !to.After(from) {
		return nil, nil, &calendar.InvalidDateError{Field: "to", Value: to.Format(time.RFC3339)}
	}
	user, tasks, err := s.load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	meetings, err := s.meetings.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list meetings: %w", err)
	}
	scheduled, _ := calendar.Partition(tasks, user.Role)
	return user, calendar.ProjectRange(scheduled, meetings, user.Role, now, from, to), nil
}

// Unscheduled returns tasks that are not on the user's calendar.
func (s *CalendarService) Unscheduled(ctx context.Context, userID string) (*model.User, []model.Task, error) {
	user, tasks, err := s.load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	_, unscheduled := calendar.Partition(tasks, user.Role)
	return user, unscheduled, nil
}

func (s *CalendarService) load(ctx context.Context, userID string) (*model.User, []model.Task, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.tasks.ListForUser(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("list tasks: %w", err)
	}
	return user, tasks, nil
}

// Feed returns the user's scheduled tasks and meeting series, unexpanded,
// for export as a subscribable calendar.
func (s *CalendarService) Feed(ctx context.Context, userID string, now time.Time) (*model.User, []calendar.Event, error) {
	user, tasks, err := s.load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	meetings, err := s.meetings.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list meetings: %w", err)
	}
	scheduled, _ := calendar.Partition(tasks, user.Role)
	return user, calendar.ProjectAll(scheduled, meetings, user.Role, now), nil
}
