// Package client talks to a taskcal server over its JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskcal/internal/calendar"
	"taskcal/internal/model"
	"taskcal/internal/service"
	"taskcal/internal/web"
)

// Client is an HTTP client for the taskcal API.
type Client struct {
	baseURL  string
	http     *http.Client
	username string
	password string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBasicAuth(username, password string) Option {
	return func(c *Client) { c.username, c.password = username, password }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response. It unwraps to the matching calendar or
// service sentinel so callers can use errors.Is.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("taskcal api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("taskcal api: %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Kind {
	case "invalid_date":
		return calendar.ErrInvalidDate
	case "unauthorized":
		return calendar.ErrUnauthorized
	case "not_found":
		return calendar.ErrNotFound
	case "transient":
		return calendar.ErrTransient
	case web.KindConflict:
		return service.ErrMutationInFlight
	case web.KindInvalidInput:
		return service.ErrInvalidInput
	}
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return calendar.ErrUnauthorized
	case e.Status == http.StatusNotFound:
		return calendar.ErrNotFound
	case e.Status == http.StatusTooManyRequests, e.Status == http.StatusBadGateway,
		e.Status == http.StatusServiceUnavailable, e.Status == http.StatusGatewayTimeout:
		return calendar.ErrTransient
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%s %s: %w: %v", method, path, calendar.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); json.Unmarshal(data, &e) == nil {
			apiErr.Kind, apiErr.Message = e.Kind, e.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if w, ok := out.(io.Writer); ok {
		if _, err := io.Copy(w, resp.Body); err != nil {
			return fmt.Errorf("%s %s: %w: %v", method, path, calendar.ErrTransient, err)
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// User fetches a user by id.
func (c *Client) User(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FetchTasksForUser lists the tasks visible to userID.
func (c *Client) FetchTasksForUser(ctx context.Context, userID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) Task(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTaskOccupancy sends one occupancy change keyed by task id.
func (c *Client) UpdateTaskOccupancy(ctx context.Context, taskID string, change model.OccupancyChange, actorID string) (*model.Task, error) {
	req := web.OccupancyRequest{
		UserID: actorID,
		Target: change.Target,
		Start:  formatDate(change.Start),
		End:    formatDate(change.End),
	}
	var t model.Task
	if err := c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(taskID)+"/occupancy", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Move asks the server to clamp and apply a proposed window.
func (c *Client) Move(ctx context.Context, taskID string, proposal calendar.Window, actorID string) (*web.MoveResponse, error) {
	req := web.MoveRequest{UserID: actorID, Start: proposal.Start.Format(time.RFC3339Nano)}
	if !proposal.End.IsZero() {
		req.End = proposal.End.Format(time.RFC3339Nano)
	}
	var res web.MoveResponse
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/move", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Unschedule(ctx context.Context, taskID, actorID string) (*model.Task, error) {
	path := "/api/tasks/" + url.PathEscape(taskID) + "/occupancy?user_id=" + url.QueryEscape(actorID)
	var t model.Task
	if err := c.do(ctx, http.MethodDelete, path, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Event is the wire form of a projected calendar event.
type Event struct {
	ID          string              `json:"id"`
	Kind        calendar.SourceKind `json:"kind"`
	Title       string              `json:"title"`
	Start       time.Time           `json:"start"`
	End         time.Time           `json:"end"`
	AllDay      bool                `json:"all_day"`
	Editable    bool                `json:"editable,omitempty"`
	Description string              `json:"description,omitempty"`
	JoinLink    string              `json:"join_link,omitempty"`
}

// Events lists the user's events in [from, to).
func (c *Client) Events(ctx context.Context, userID string, from, to time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	var res struct {
		Events []Event `json:"events"`
	}
	path := "/api/users/" + url.PathEscape(userID) + "/events?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Events, nil
}

// WriteICS streams the user's iCalendar feed to w.
func (c *Client) WriteICS(ctx context.Context, userID string, w io.Writer) error {
	return c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/calendar.ics", nil, w)
}

// Tasks adapts the client to service.TaskStore.
func (c *Client) Tasks() *TaskStore { return &TaskStore{c: c} }

// Users adapts the client to service.UserStore.
func (c *Client) Users() *UserStore { return &UserStore{c: c} }

type TaskStore struct{ c *Client }

func (s *TaskStore) ListForUser(ctx context.Context, user *model.User) ([]model.Task, error) {
	return s.c.FetchTasksForUser(ctx, user.ID)
}

func (s *TaskStore) FindByID(ctx context.Context, taskID string) (*model.Task, error) {
	return s.c.Task(ctx, taskID)
}

func (s *TaskStore) UpdateOccupancy(ctx context.Context, taskID string, change model.OccupancyChange, actorID string) (*model.Task, error) {
	return s.c.UpdateTaskOccupancy(ctx, taskID, change, actorID)
}

type UserStore struct{ c *Client }

func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.c.User(ctx, id)
}

var (
	_ service.TaskStore = (*TaskStore)(nil)
	_ service.UserStore = (*UserStore)(nil)
)
