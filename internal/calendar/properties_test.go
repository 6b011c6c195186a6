package calendar

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskcal/internal/model"
)

const propertyRuns = 2000

type taskGen struct {
	rnd  *rand.Rand
	base time.Time
}

func newTaskGen(seed int64) *taskGen {
	return &taskGen{rnd: rand.New(rand.NewSource(seed)), base: day(2024, 1, 1)}
}

func (g *taskGen) date() time.Time {
	return g.base.AddDate(0, 0, g.rnd.Intn(90)).Add(time.Duration(g.rnd.Intn(4)) * 6 * time.Hour)
}

func (g *taskGen) window() Window {
	start := g.date()
	return Window{Start: start, End: start.AddDate(0, 0, g.rnd.Intn(20)+1)}
}

// task returns a random task with consistent bounds, an optional override,
// and any status.
func (g *taskGen) task() model.Task {
	statuses := []model.Status{model.StatusNotStarted, model.StatusInProgress, model.StatusInReview, model.StatusDone}
	task := model.Task{ID: "gen", Status: statuses[g.rnd.Intn(len(statuses))]}

	start := g.date()
	end := start.AddDate(0, 0, g.rnd.Intn(15))
	switch g.rnd.Intn(4) {
	case 0:
		task.StartDate, task.Deadline = ptr(start), ptr(end)
	case 1:
		task.StartDate = ptr(start)
	case 2:
		task.Deadline = ptr(end)
	}
	if g.rnd.Intn(2) == 0 {
		w := g.window()
		task.Calendar.Start = ptr(w.Start)
		if g.rnd.Intn(3) > 0 {
			task.Calendar.End = ptr(w.End)
		}
	}
	return task
}

func TestProperty_ClampNeverExpands(t *testing.T) {
	g := newTaskGen(1)
	for i := 0; i < propertyRuns; i++ {
		task := g.task()
		task.Status = model.StatusInProgress
		task.StartDate = ptr(g.date())
		task.Deadline = ptr(task.StartDate.AddDate(0, 0, g.rnd.Intn(15)))
		proposal := g.window()

		res, err := Clamp(task, model.RoleContributor, proposal)
		require.NoError(t, err)
		require.True(t, res.Accepted)

		lo, hi := Bounds(task)
		maxDays := daysBetween(*task.StartDate, *task.Deadline) + 1
		assert.False(t, res.Start.Before(*lo), "start %v before %v (proposal %v)", res.Start, *lo, proposal)
		assert.False(t, res.End.After(*hi), "end %v after %v (proposal %v)", res.End, *hi, proposal)
		assert.LessOrEqual(t, res.Days(), maxDays, "proposal %v", proposal)
		assert.LessOrEqual(t, res.Days(), proposal.Days(), "duration grew for proposal %v", proposal)
	}
}

func TestProperty_ManagerBypass(t *testing.T) {
	g := newTaskGen(2)
	for i := 0; i < propertyRuns; i++ {
		task := g.task()
		task.Status = model.StatusNotStarted
		proposal := g.window()

		res, err := Clamp(task, model.RoleManager, proposal)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Equal(t, proposal, res.Window)
	}
}

func TestProperty_DoneImmutable(t *testing.T) {
	g := newTaskGen(3)
	for i := 0; i < propertyRuns; i++ {
		task := g.task()
		task.Status = model.StatusDone
		for _, role := range []model.Role{model.RoleManager, model.RoleContributor} {
			res, err := Clamp(task, role, g.window())
			assert.False(t, res.Accepted)
			assert.ErrorIs(t, err, ErrTaskDone)
		}
	}
}

func TestProperty_DeriveIdempotent(t *testing.T) {
	g := newTaskGen(4)
	now := day(2024, 2, 14)
	for i := 0; i < propertyRuns; i++ {
		task := g.task()
		for _, role := range []model.Role{model.RoleManager, model.RoleContributor} {
			first := Derive(task, role, now)
			assert.Equal(t, first, Derive(task, role, now))
			assert.True(t, first.End.After(first.Start))
		}
	}
}

func TestProperty_ProjectClampRoundTrip(t *testing.T) {
	g := newTaskGen(5)
	now := day(2024, 2, 14)
	for i := 0; i < propertyRuns; i++ {
		task := g.task()
		if task.IsDone() {
			continue
		}
		for _, role := range []model.Role{model.RoleManager, model.RoleContributor} {
			ev := ProjectTask(task, role, now)

			res, err := Clamp(task, role, ev.Window)
			require.NoError(t, err)
			assert.True(t, res.Accepted)
			assert.Equal(t, ev.Window, res.Window, "role %s task %+v", role, task)
		}
	}
}
