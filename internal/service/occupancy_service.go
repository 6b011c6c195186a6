package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskcal/internal/calendar"
	"taskcal/internal/model"
)

// ErrMutationInFlight rejects a second occupancy change on a task whose
// previous change has not returned yet.
var ErrMutationInFlight = errors.New("occupancy change already in flight")

// OccupancyService persists clamp results. Managers, and anyone acting on
// a done task, write the authoritative dates; contributors write their
// calendar override.
type OccupancyService struct {
	tasks TaskStore
	users UserStore

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewOccupancyService(tasks TaskStore, users UserStore) *OccupancyService {
	return &OccupancyService{
		tasks:    tasks,
		users:    users,
		inflight: make(map[string]struct{}),
	}
}

// Target returns the dates a change by actor on task would write.
func Target(task model.Task, actor model.User) model.Target {
	if actor.IsManager() || task.IsDone() {
		return model.TargetAuthoritative
	}
	return model.TargetOverride
}

// Apply writes window to the task, or clears its occupancy when window is
// nil. The returned task is the stored state after the change.
func (s *OccupancyService) Apply(ctx context.Context, task model.Task, window *calendar.Window, actor model.User) (*model.Task, error) {
	if !s.begin(task.ID) {
		return nil, fmt.Errorf("task %s: %w", task.ID, ErrMutationInFlight)
	}
	defer s.done(task.ID)

	change := model.OccupancyChange{Target: Target(task, actor)}
	if window != nil {
		start, end := window.Start, window.End
		change.Start, change.End = &start, &end
	}

	updated, err := s.tasks.UpdateOccupancy(ctx, task.ID, change, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("update occupancy of task %s: %w", task.ID, err)
	}
	return updated, nil
}

// Unschedule removes the task from the actor's calendar.
func (s *OccupancyService) Unschedule(ctx context.Context, task model.Task, actor model.User) (*model.Task, error) {
	return s.Apply(ctx, task, nil, actor)
}

// Move runs a calendar gesture end to end: load, clamp, then persist.
func (s *OccupancyService) Move(ctx context.Context, taskID string, proposal calendar.Window, actorID string) (*model.Task, calendar.Result, error) {
	actor, task, err := s.load(ctx, taskID, actorID)
	if err != nil {
		return nil, calendar.Result{}, err
	}
	res, err := calendar.Clamp(*task, actor.Role, proposal)
	if err != nil {
		return nil, res, err
	}
	updated, err := s.Apply(ctx, *task, &res.Window, *actor)
	if err != nil {
		return nil, res, err
	}
	return updated, res, nil
}

// UnscheduleByID is Unschedule for callers holding only ids.
func (s *OccupancyService) UnscheduleByID(ctx context.Context, taskID, actorID string) (*model.Task, error) {
	actor, task, err := s.load(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	return s.Unschedule(ctx, *task, *actor)
}

// Set writes an explicit change on behalf of actorID without clamping it.
// The store rejects overrides outside the task bounds and any write to a
// done task.
func (s *OccupancyService) Set(ctx context.Context, taskID string, change model.OccupancyChange, actorID string) (*model.Task, error) {
	if !s.begin(taskID) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrMutationInFlight)
	}
	defer s.done(taskID)
	return s.tasks.UpdateOccupancy(ctx, taskID, change, actorID)
}

func (s *OccupancyService) load(ctx context.Context, taskID, actorID string) (*model.User, *model.Task, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			return nil, nil, fmt.Errorf("unknown user %s: %w", actorID, calendar.ErrUnauthorized)
		}
		return nil, nil, err
	}
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	return actor, task, nil
}

func (s *OccupancyService) begin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *OccupancyService) done(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// Session is one open calendar view: a user's board plus the service that
// persists gestures made on it.
type Session struct {
	svc   *OccupancyService
	user  model.User
	board *calendar.Board
}

// OpenSession loads the user's tasks into a fresh board.
func (s *OccupancyService) OpenSession(ctx context.Context, userID string) (*Session, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListForUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &Session{svc: s, user: *user, board: calendar.NewBoard(tasks)}, nil
}

func (s *Session) User() model.User        { return s.user }
func (s *Session) Board() *calendar.Board  { return s.board }
func (s *Session) Close()                  { s.board.Close() }
func (s *Session) Scheduled() []model.Task { return s.board.Scheduled(s.user.Role) }

func (s *Session) Unscheduled() []model.Task {
	return s.board.Unscheduled(s.user.Role)
}

// Events projects the scheduled tasks of the board.
func (s *Session) Events(now time.Time) []calendar.Event {
	return calendar.ProjectAll(s.Scheduled(), nil, s.user.Role, now)
}

// Move clamps the proposal against the board's copy of the task and
// persists the result. The board changes only when the store accepted it.
func (s *Session) Move(ctx context.Context, taskID string, proposal calendar.Window) (*model.Task, calendar.Result, error) {
	task, ok := s.board.Get(taskID)
	if !ok {
		return nil, calendar.Result{}, fmt.Errorf("task %s: %w", taskID, calendar.ErrNotFound)
	}
	res, err := calendar.Clamp(task, s.user.Role, proposal)
	if err != nil {
		return nil, res, err
	}
	updated, err := s.mutate(ctx, task, &res.Window)
	return updated, res, err
}

// Unschedule sends the task back to the unscheduled list.
func (s *Session) Unschedule(ctx context.Context, taskID string) (*model.Task, error) {
	task, ok := s.board.Get(taskID)
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, calendar.ErrNotFound)
	}
	return s.mutate(ctx, task, nil)
}

func (s *Session) mutate(ctx context.Context, task model.Task, window *calendar.Window) (*model.Task, error) {
	if !s.board.Begin(task.ID) {
		return nil, fmt.Errorf("task %s: %w", task.ID, ErrMutationInFlight)
	}
	defer s.board.Done(task.ID)

	updated, err := s.svc.Apply(ctx, task, window, s.user)
	if err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			s.board.Remove(task.ID)
		}
		return nil, err
	}
	s.board.Apply(*updated)
	return updated, nil
}
