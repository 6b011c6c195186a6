package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskcal/internal/config"
	"taskcal/internal/model"
	"taskcal/internal/repository"
	"taskcal/internal/service"
)

type fixture struct {
	srv          *httptest.Server
	maria, alice model.User
	task         *model.Task
	tasks        *repository.TaskRepository
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "taskcal.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(db)
	tasks := repository.NewTaskRepository(db)
	meetings := repository.NewMeetingRepository(db)
	svc := Services{
		Users:     users,
		Tasks:     service.NewTaskService(tasks, users, repository.NewProjectRepository(db)),
		Meetings:  service.NewMeetingService(meetings, users, "https://meet.example.com"),
		Calendar:  service.NewCalendarService(users, tasks, meetings),
		Occupancy: service.NewOccupancyService(tasks, users),
	}

	ctx := context.Background()
	f := &fixture{tasks: tasks}
	f.maria = model.User{Name: "Maria", Email: "maria@example.com", Role: model.RoleManager}
	f.alice = model.User{Name: "Alice", Email: "alice@example.com", Role: model.RoleContributor}
	require.NoError(t, users.Create(ctx, &f.maria))
	require.NoError(t, users.Create(ctx, &f.alice))

	f.task, err = svc.Tasks.CreateTask(ctx, &f.maria, service.TaskInput{
		Title:       "Write report",
		StartDate:   ptr(day(2024, 1, 10)),
		Deadline:    ptr(day(2024, 1, 15)),
		AssigneeIDs: []string{f.alice.ID},
	})
	require.NoError(t, err)

	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	s := NewServer(cfg, svc)
	s.now = func() time.Time { return time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC) }
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func errorKindOf(t *testing.T, body []byte) string {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(body, &e), string(body))
	return e.Kind
}

func TestHealth(t *testing.T) {
	f := newFixture(t, config.Config{})
	code, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", string(body))
}

func TestBasicAuth(t *testing.T) {
	f := newFixture(t, config.Config{BasicAuth: config.BasicAuth{Username: "admin", Password: "secret"}})

	code, _ := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code, "health is public")

	code, body := f.do(t, http.MethodGet, "/api/users/"+f.maria.ID, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", errorKindOf(t, body))

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/api/users/"+f.maria.ID, nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMove(t *testing.T) {
	f := newFixture(t, config.Config{})
	path := "/api/tasks/" + f.task.ID + "/move"

	code, body := f.do(t, http.MethodPost, path, MoveRequest{UserID: f.alice.ID, Start: "2024-01-08", End: "2024-01-09"})
	require.Equal(t, http.StatusOK, code, string(body))
	var res MoveResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Adjusted)
	assert.True(t, res.Window.Start.Equal(day(2024, 1, 10)))
	assert.True(t, res.Window.End.Equal(day(2024, 1, 11)))
	require.NotNil(t, res.Task.Calendar.Start)
	assert.True(t, res.Task.Calendar.Start.Equal(day(2024, 1, 10)))

	code, body = f.do(t, http.MethodPost, path, MoveRequest{UserID: f.alice.ID, Start: "someday"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_date", errorKindOf(t, body))

	code, body = f.do(t, http.MethodPost, "/api/tasks/missing/move", MoveRequest{UserID: f.alice.ID, Start: "2024-01-11"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", errorKindOf(t, body))

	code, body = f.do(t, http.MethodPost, path, map[string]string{"user": f.alice.ID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, KindInvalidInput, errorKindOf(t, body))

	_, err := f.tasks.UpdateStatus(context.Background(), f.task.ID, model.StatusDone, day(2024, 1, 12))
	require.NoError(t, err)
	code, body = f.do(t, http.MethodPost, path, MoveRequest{UserID: f.maria.ID, Start: "2024-01-11"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", errorKindOf(t, body))
}

func TestSetOccupancyAndUnschedule(t *testing.T) {
	f := newFixture(t, config.Config{})
	path := "/api/tasks/" + f.task.ID + "/occupancy"

	code, body := f.do(t, http.MethodPut, path, OccupancyRequest{
		UserID: f.maria.ID, Target: model.TargetAuthoritative, Start: "2024-02-01", End: "2024-02-03",
	})
	require.Equal(t, http.StatusOK, code, string(body))
	var task model.Task
	require.NoError(t, json.Unmarshal(body, &task))
	assert.True(t, task.StartDate.Equal(day(2024, 2, 1)))

	code, body = f.do(t, http.MethodPut, path, OccupancyRequest{
		UserID: f.alice.ID, Target: model.TargetAuthoritative, Start: "2024-02-01", End: "2024-02-03",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", errorKindOf(t, body))

	code, body = f.do(t, http.MethodPut, path, OccupancyRequest{UserID: f.alice.ID, Target: "both"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, KindInvalidInput, errorKindOf(t, body))

	code, _ = f.do(t, http.MethodPut, path, OccupancyRequest{UserID: f.alice.ID, Target: model.TargetOverride, Start: "2024-02-01"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodPut, path, OccupancyRequest{
		UserID: f.alice.ID, Target: model.TargetOverride, Start: "2024-02-02", End: "2024-02-03",
	})
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = f.do(t, http.MethodDelete, path+"?user_id="+f.alice.ID, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	task = model.Task{}
	require.NoError(t, json.Unmarshal(body, &task))
	assert.False(t, task.HasOverride())
	assert.NotNil(t, task.StartDate, "contributor unschedule keeps the manager's dates")

	code, body = f.do(t, http.MethodDelete, path+"?user_id=ghost", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", errorKindOf(t, body))
}

func TestSetOccupancy_GuardsOverride(t *testing.T) {
	f := newFixture(t, config.Config{})
	path := "/api/tasks/" + f.task.ID + "/occupancy"

	code, body := f.do(t, http.MethodPut, path, OccupancyRequest{
		UserID: f.alice.ID, Target: model.TargetOverride, Start: "2024-03-01", End: "2024-03-20",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_date", errorKindOf(t, body))

	_, err := f.tasks.UpdateStatus(context.Background(), f.task.ID, model.StatusDone, day(2024, 1, 12))
	require.NoError(t, err)

	code, body = f.do(t, http.MethodPut, path, OccupancyRequest{
		UserID: f.alice.ID, Target: model.TargetOverride, Start: "2024-01-11", End: "2024-01-12",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", errorKindOf(t, body))

	code, body = f.do(t, http.MethodPut, path, OccupancyRequest{
		UserID: f.maria.ID, Target: model.TargetAuthoritative, Start: "2024-02-01", End: "2024-02-02",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", errorKindOf(t, body))

	stored, err := f.tasks.FindByID(context.Background(), f.task.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasOverride())
	assert.True(t, stored.StartDate.Equal(day(2024, 1, 10)))
}

func TestBoardAndEvents(t *testing.T) {
	f := newFixture(t, config.Config{})

	code, body := f.do(t, http.MethodGet, "/api/users/"+f.alice.ID+"/board", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var board struct {
		Scheduled   []map[string]any `json:"scheduled"`
		Unscheduled []model.Task     `json:"unscheduled"`
	}
	require.NoError(t, json.Unmarshal(body, &board))
	assert.Empty(t, board.Scheduled)
	require.Len(t, board.Unscheduled, 1)

	code, body = f.do(t, http.MethodGet, "/api/users/"+f.maria.ID+"/board", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &board))
	require.Len(t, board.Scheduled, 1)
	assert.Equal(t, "task", board.Scheduled[0]["kind"])
	assert.Equal(t, true, board.Scheduled[0]["editable"])

	code, body = f.do(t, http.MethodPost, "/api/meetings", MeetingRequest{
		OrganizerID: f.maria.ID, Title: "Standup",
		Start: "2024-01-08T09:00:00Z", End: "2024-01-08T09:15:00Z",
		RRule: "FREQ=DAILY;COUNT=10", ParticipantIDs: []string{f.alice.ID},
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	code, body = f.do(t, http.MethodGet, "/api/users/"+f.maria.ID+"/events?from=2024-01-10&to=2024-01-13", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var events struct {
		Events []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body, &events))
	require.Len(t, events.Events, 4)
	assert.Equal(t, "task", events.Events[0]["kind"])
	assert.Equal(t, "meeting", events.Events[1]["kind"])

	code, body = f.do(t, http.MethodGet, "/api/users/"+f.maria.ID+"/events", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &events))
	assert.Len(t, events.Events, 8, "task plus standups from 01-09 to 01-15")

	code, body = f.do(t, http.MethodGet, "/api/users/"+f.maria.ID+"/events?from=2024-01-13&to=2024-01-10", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_date", errorKindOf(t, body))

	code, _ = f.do(t, http.MethodGet, "/api/users/ghost/events", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestICS(t *testing.T) {
	f := newFixture(t, config.Config{})
	resp, err := f.srv.Client().Get(f.srv.URL + "/api/users/" + f.maria.ID + "/calendar.ics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar"))
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")
	assert.Contains(t, string(body), "SUMMARY:Write report")
}

func TestMeetingsCRUD(t *testing.T) {
	f := newFixture(t, config.Config{})

	code, body := f.do(t, http.MethodPost, "/api/meetings", MeetingRequest{
		OrganizerID: f.maria.ID, Title: "Planning",
		Start: "2024-01-12T14:00:00Z", End: "2024-01-12T15:00:00Z",
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	var m model.Meeting
	require.NoError(t, json.Unmarshal(body, &m))
	assert.True(t, strings.HasPrefix(m.JoinLink, "https://meet.example.com/taskcal-"))

	code, body = f.do(t, http.MethodPut, "/api/meetings/"+m.ID, MeetingRequest{
		Title: "Planning v2", Start: "2024-01-12T14:00:00Z", End: "2024-01-12T16:00:00Z",
		ParticipantIDs: []string{f.alice.ID},
	})
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, "Planning v2", m.Title)
	require.Len(t, m.Participants, 1)

	code, body = f.do(t, http.MethodGet, "/api/meetings?user_id="+f.alice.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var list []model.Meeting
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	code, body = f.do(t, http.MethodPost, "/api/meetings", MeetingRequest{
		OrganizerID: f.maria.ID, Title: "Backwards",
		Start: "2024-01-12T15:00:00Z", End: "2024-01-12T14:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_date", errorKindOf(t, body))

	code, body = f.do(t, http.MethodPost, "/api/meetings", MeetingRequest{
		OrganizerID: f.maria.ID, Start: "2024-01-12T14:00:00Z", End: "2024-01-12T15:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, KindInvalidInput, errorKindOf(t, body))

	code, _ = f.do(t, http.MethodDelete, "/api/meetings/"+m.ID, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, body = f.do(t, http.MethodGet, "/api/meetings/"+m.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", errorKindOf(t, body))
}
