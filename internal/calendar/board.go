package calendar

import (
	"sync"

	"taskcal/internal/model"
)

// HasOccupancy reports whether task belongs on the calendar, rather than
// in the unscheduled list, for a user acting with role.
func HasOccupancy(task model.Task, role model.Role) bool {
	hasBounds := present(task.StartDate) || present(task.Deadline)
	if role == model.RoleManager {
		return hasBounds
	}
	return task.HasOverride() || (task.IsDone() && hasBounds)
}

// Partition splits tasks into calendar and unscheduled views, keeping order.
func Partition(tasks []model.Task, role model.Role) (scheduled, unscheduled []model.Task) {
	for _, t := range tasks {
		if HasOccupancy(t, role) {
			scheduled = append(scheduled, t)
		} else {
			unscheduled = append(unscheduled, t)
		}
	}
	return scheduled, unscheduled
}

// Board is the single task collection behind a calendar view. The
// scheduled and unscheduled lists are always derived from it, so a task
// is never in both or neither.
type Board struct {
	mu       sync.RWMutex
	tasks    map[string]model.Task
	order    []string
	inflight map[string]struct{}
	closed   bool
}

func NewBoard(tasks []model.Task) *Board {
	b := &Board{
		tasks:    make(map[string]model.Task, len(tasks)),
		inflight: make(map[string]struct{}),
	}
	for _, t := range tasks {
		b.put(t)
	}
	return b
}

func (b *Board) put(t model.Task) {
	if _, ok := b.tasks[t.ID]; !ok {
		b.order = append(b.order, t.ID)
	}
	b.tasks[t.ID] = t
}

// Apply stores a task returned by a successful mutation. It reports false
// once the board is closed; such late results are dropped.
func (b *Board) Apply(t model.Task) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.put(t)
	return true
}

// Remove drops a task that no longer exists server-side.
func (b *Board) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	if _, ok := b.tasks[id]; !ok {
		return false
	}
	delete(b.tasks, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// Begin marks a mutation on id as in flight. It reports false while an
// earlier one has not finished.
func (b *Board) Begin(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, busy := b.inflight[id]; busy {
		return false
	}
	b.inflight[id] = struct{}{}
	return true
}

func (b *Board) Done(id string) {
	b.mu.Lock()
	delete(b.inflight, id)
	b.mu.Unlock()
}

// Close detaches the board from its view.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *Board) Get(id string) (model.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tasks[id]
	return t, ok
}

func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Tasks returns every task in insertion order.
func (b *Board) Tasks() []model.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.Task, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.tasks[id])
	}
	return out
}

func (b *Board) Scheduled(role model.Role) []model.Task {
	s, _ := Partition(b.Tasks(), role)
	return s
}

func (b *Board) Unscheduled(role model.Role) []model.Task {
	_, u := Partition(b.Tasks(), role)
	return u
}
