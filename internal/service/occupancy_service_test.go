package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskcal/internal/calendar"
	"taskcal/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

type update struct {
	taskID  string
	change  model.OccupancyChange
	actorID string
}

// fakeTasks applies changes without authorization.
type fakeTasks struct {
	mu      sync.Mutex
	tasks   map[string]model.Task
	calls   []update
	err     error
	block   string
	entered chan struct{}
	release chan struct{}
}

func newFakeTasks(tasks ...model.Task) *fakeTasks {
	f := &fakeTasks{tasks: make(map[string]model.Task)}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTasks) ListForUser(_ context.Context, _ *model.User) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Task
	for _, id := range []string{"t1", "t2", "t3"} {
		if t, ok := f.tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTasks) FindByID(_ context.Context, id string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("find task %s: %w", id, calendar.ErrNotFound)
	}
	return &t, nil
}

func (f *fakeTasks) UpdateOccupancy(_ context.Context, id string, change model.OccupancyChange, actorID string) (*model.Task, error) {
	if f.block == id {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, update{taskID: id, change: change, actorID: actorID})
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("find task %s: %w", id, calendar.ErrNotFound)
	}
	switch change.Target {
	case model.TargetAuthoritative:
		t.StartDate, t.Deadline = change.Start, change.End
		t.Calendar = model.CalendarDates{}
	case model.TargetOverride:
		t.Calendar = model.CalendarDates{Start: change.Start, End: change.End}
		if !change.Clears() {
			t.Calendar.OriginalStart, t.Calendar.OriginalEnd = t.StartDate, t.Deadline
		}
	}
	f.tasks[id] = t
	return &t, nil
}

type fakeUsers map[string]model.User

func (f fakeUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("find user %s: %w", id, calendar.ErrNotFound)
	}
	return &u, nil
}

var (
	manager     = model.User{ID: "m1", Name: "Maria", Role: model.RoleManager}
	contributor = model.User{ID: "c1", Name: "Carl", Role: model.RoleContributor}
	users       = fakeUsers{manager.ID: manager, contributor.ID: contributor}
)

func boundedTask(id string) model.Task {
	return model.Task{
		ID:          id,
		Title:       "Task " + id,
		CreatedByID: manager.ID,
		Assignees:   []model.User{contributor},
		Status:      model.StatusInProgress,
		StartDate:   ptr(day(2024, 1, 10)),
		Deadline:    ptr(day(2024, 1, 15)),
	}
}

func TestTarget(t *testing.T) {
	task := boundedTask("t1")
	assert.Equal(t, model.TargetAuthoritative, Target(task, manager))
	assert.Equal(t, model.TargetOverride, Target(task, contributor))

	task.Status = model.StatusDone
	assert.Equal(t, model.TargetAuthoritative, Target(task, contributor))
}

func TestOccupancyService_Apply(t *testing.T) {
	w := calendar.Window{Start: day(2024, 1, 11), End: day(2024, 1, 13)}

	t.Run("contributor writes override", func(t *testing.T) {
		store := newFakeTasks(boundedTask("t1"))
		svc := NewOccupancyService(store, users)

		got, err := svc.Apply(context.Background(), boundedTask("t1"), &w, contributor)
		require.NoError(t, err)
		require.Len(t, store.calls, 1)
		assert.Equal(t, model.TargetOverride, store.calls[0].change.Target)
		assert.Equal(t, contributor.ID, store.calls[0].actorID)
		assert.Equal(t, day(2024, 1, 11), *got.Calendar.Start)
		assert.Equal(t, day(2024, 1, 10), *got.StartDate, "authoritative dates unchanged")
		assert.Equal(t, day(2024, 1, 10), *got.Calendar.OriginalStart)
	})

	t.Run("manager writes authoritative", func(t *testing.T) {
		task := boundedTask("t1")
		task.Calendar = model.CalendarDates{Start: ptr(day(2024, 1, 12)), End: ptr(day(2024, 1, 13))}
		store := newFakeTasks(task)
		svc := NewOccupancyService(store, users)

		got, err := svc.Apply(context.Background(), task, &w, manager)
		require.NoError(t, err)
		assert.Equal(t, model.TargetAuthoritative, store.calls[0].change.Target)
		assert.Equal(t, day(2024, 1, 11), *got.StartDate)
		assert.Equal(t, day(2024, 1, 13), *got.Deadline)
		assert.False(t, got.HasOverride())
	})

	t.Run("unschedule sends empty change", func(t *testing.T) {
		store := newFakeTasks(boundedTask("t1"))
		svc := NewOccupancyService(store, users)

		_, err := svc.Unschedule(context.Background(), boundedTask("t1"), contributor)
		require.NoError(t, err)
		assert.True(t, store.calls[0].change.Clears())
		assert.Equal(t, model.TargetOverride, store.calls[0].change.Target)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		store := newFakeTasks(boundedTask("t1"))
		store.err = fmt.Errorf("dial: %w", calendar.ErrTransient)
		svc := NewOccupancyService(store, users)

		got, err := svc.Apply(context.Background(), boundedTask("t1"), &w, contributor)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, calendar.ErrTransient)
	})
}

func TestOccupancyService_Move(t *testing.T) {
	ctx := context.Background()

	t.Run("contributor proposal is clamped", func(t *testing.T) {
		store := newFakeTasks(boundedTask("t1"))
		svc := NewOccupancyService(store, users)

		proposal := calendar.Window{Start: day(2024, 1, 8), End: day(2024, 1, 9)}
		got, res, err := svc.Move(ctx, "t1", proposal, contributor.ID)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Equal(t, day(2024, 1, 10), res.Start)
		assert.Equal(t, day(2024, 1, 11), res.End)
		assert.Equal(t, day(2024, 1, 10), *got.Calendar.Start)
	})

	t.Run("done task is rejected before the store", func(t *testing.T) {
		task := boundedTask("t1")
		task.Status = model.StatusDone
		store := newFakeTasks(task)
		svc := NewOccupancyService(store, users)

		_, _, err := svc.Move(ctx, "t1", calendar.Window{Start: day(2024, 1, 11), End: day(2024, 1, 12)}, manager.ID)
		assert.ErrorIs(t, err, calendar.ErrTaskDone)
		assert.ErrorIs(t, err, calendar.ErrUnauthorized)
		assert.Empty(t, store.calls)
	})

	t.Run("unknown actor", func(t *testing.T) {
		svc := NewOccupancyService(newFakeTasks(boundedTask("t1")), users)
		_, _, err := svc.Move(ctx, "t1", calendar.Window{Start: day(2024, 1, 11)}, "ghost")
		assert.ErrorIs(t, err, calendar.ErrUnauthorized)
	})

	t.Run("unknown task", func(t *testing.T) {
		svc := NewOccupancyService(newFakeTasks(), users)
		_, _, err := svc.Move(ctx, "t9", calendar.Window{Start: day(2024, 1, 11)}, manager.ID)
		assert.ErrorIs(t, err, calendar.ErrNotFound)
	})

	t.Run("invalid proposal", func(t *testing.T) {
		store := newFakeTasks(boundedTask("t1"))
		svc := NewOccupancyService(store, users)
		_, _, err := svc.Move(ctx, "t1", calendar.Window{}, manager.ID)
		assert.ErrorIs(t, err, calendar.ErrInvalidDate)
		assert.Empty(t, store.calls)
	})
}

func TestOccupancyService_InFlight(t *testing.T) {
	store := newFakeTasks(boundedTask("t1"), boundedTask("t2"))
	store.block = "t1"
	store.entered = make(chan struct{})
	store.release = make(chan struct{})
	svc := NewOccupancyService(store, users)
	w := calendar.Window{Start: day(2024, 1, 11), End: day(2024, 1, 12)}

	errc := make(chan error, 1)
	go func() {
		_, err := svc.Apply(context.Background(), boundedTask("t1"), &w, contributor)
		errc <- err
	}()
	<-store.entered

	_, err := svc.Apply(context.Background(), boundedTask("t1"), &w, contributor)
	assert.ErrorIs(t, err, ErrMutationInFlight)

	_, err = svc.Apply(context.Background(), boundedTask("t2"), &w, contributor)
	assert.NoError(t, err, "other tasks are not blocked")

	store.release <- struct{}{}
	require.NoError(t, <-errc)

	store.block = ""
	_, err = svc.Apply(context.Background(), boundedTask("t1"), &w, contributor)
	assert.NoError(t, err, "guard is released after completion")
	assert.Len(t, store.calls, 3)
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	unplaced := boundedTask("t1")
	placed := boundedTask("t2")
	placed.Calendar = model.CalendarDates{Start: ptr(day(2024, 1, 12)), End: ptr(day(2024, 1, 13))}
	store := newFakeTasks(unplaced, placed)
	svc := NewOccupancyService(store, users)

	sess, err := svc.OpenSession(ctx, contributor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, taskIDs(sess.Scheduled()))
	assert.Equal(t, []string{"t1"}, taskIDs(sess.Unscheduled()))

	_, res, err := sess.Move(ctx, "t1", calendar.Window{Start: day(2024, 1, 20), End: day(2024, 1, 21)})
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 15), res.Start, "pulled back inside the bounds")
	assert.Equal(t, []string{"t1", "t2"}, taskIDs(sess.Scheduled()))
	assert.Empty(t, sess.Unscheduled())

	store.err = fmt.Errorf("dial: %w", calendar.ErrTransient)
	_, err = sess.Unschedule(ctx, "t2")
	assert.ErrorIs(t, err, calendar.ErrTransient)
	assert.Equal(t, []string{"t1", "t2"}, taskIDs(sess.Scheduled()), "failed change leaves the board alone")

	store.err = nil
	_, err = sess.Unschedule(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, taskIDs(sess.Unscheduled()))
	assert.Len(t, sess.Events(day(2024, 1, 1)), 1)

	sess.Close()
	_, err = sess.Unschedule(ctx, "t1")
	require.NoError(t, err, "store still accepts the change")
	assert.Equal(t, []string{"t1"}, taskIDs(sess.Scheduled()), "closed board ignores the late result")

	_, err = sess.Unschedule(ctx, "t9")
	assert.ErrorIs(t, err, calendar.ErrNotFound)
}

func taskIDs(tasks []model.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
