package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taskcal/internal/calendar"
	"taskcal/internal/ics"
	"taskcal/internal/model"
	"taskcal/internal/service"
)

// OccupancyRequest is the body of PUT /api/tasks/{id}/occupancy. Empty
// start and end clear the target.
type OccupancyRequest struct {
	UserID string       `json:"user_id"`
	Target model.Target `json:"target"`
	Start  string       `json:"start,omitempty"`
	End    string       `json:"end,omitempty"`
}

// MoveRequest is the body of POST /api/tasks/{id}/move.
type MoveRequest struct {
	UserID string `json:"user_id"`
	Start  string `json:"start"`
	End    string `json:"end,omitempty"`
}

// MoveResponse reports the stored task and the window actually applied.
type MoveResponse struct {
	Task     *model.Task     `json:"task"`
	Window   calendar.Window `json:"window"`
	Adjusted bool            `json:"adjusted"`
}

// MeetingRequest is the body of meeting create and update calls.
type MeetingRequest struct {
	OrganizerID    string   `json:"organizer_id,omitempty"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	JoinLink       string   `json:"join_link,omitempty"`
	RRule          string   `json:"rrule,omitempty"`
	ParticipantIDs []string `json:"participant_ids,omitempty"`
}

// EventsResponse is the body of GET /api/users/{id}/events.
type EventsResponse struct {
	From   time.Time        `json:"from"`
	To     time.Time        `json:"to"`
	Events []calendar.Event `json:"events"`
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", service.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) optionalDate(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := calendar.ParseDate(field, strings.TrimSpace(raw), s.loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUserTasks(w http.ResponseWriter, r *http.Request) {
	_, tasks, err := s.svc.Tasks.ListForUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.Tasks.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.svc.Calendar.Board(r.Context(), r.PathValue("id"), s.now().In(s.loc))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleEvents returns projected tasks and meetings in [from, to).
//
// GET /api/users/{id}/events?from=2024-01-01&to=2024-01-08
//   - from: defaults to the start of today
//   - to:   defaults to seven days after from
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.loc)
	q := r.URL.Query()

	from, err := s.optionalDate("from", q.Get("from"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if from == nil {
		y, m, d := now.Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
		from = &today
	}
	to, err := s.optionalDate("to", q.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if to == nil {
		end := from.AddDate(0, 0, 7)
		to = &end
	}

	_, events, err := s.svc.Calendar.Events(r.Context(), r.PathValue("id"), *from, *to, now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EventsResponse{From: *from, To: *to, Events: events})
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	user, events, err := s.svc.Calendar.Feed(r.Context(), r.PathValue("id"), now.In(s.loc))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	if err := ics.Write(w, user.Name, events, now); err != nil {
		writeError(w, r, err)
	}
}

func (s *Server) handleSetOccupancy(w http.ResponseWriter, r *http.Request) {
	var req OccupancyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Target.IsValid() {
		writeError(w, r, fmt.Errorf("%w: unknown target %q", service.ErrInvalidInput, req.Target))
		return
	}
	start, err := s.optionalDate("start", req.Start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := s.optionalDate("end", req.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if (start == nil) != (end == nil) {
		writeError(w, r, fmt.Errorf("%w: start and end must be set together", service.ErrInvalidInput))
		return
	}

	change := model.OccupancyChange{Target: req.Target, Start: start, End: end}
	task, err := s.svc.Occupancy.Set(r.Context(), r.PathValue("id"), change, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUnschedule(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	task, err := s.svc.Occupancy.UnscheduleByID(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := calendar.ParseDate("start", strings.TrimSpace(req.Start), s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := s.optionalDate("end", req.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	proposal := calendar.Window{Start: start}
	if end != nil {
		proposal.End = *end
	}

	task, res, err := s.svc.Occupancy.Move(r.Context(), r.PathValue("id"), proposal, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Task: task, Window: res.Window, Adjusted: res.Adjusted})
}

func (s *Server) meetingInput(req MeetingRequest) (service.MeetingInput, error) {
	in := service.MeetingInput{
		Title:          req.Title,
		Description:    req.Description,
		JoinLink:       req.JoinLink,
		RRule:          req.RRule,
		ParticipantIDs: req.ParticipantIDs,
	}
	start, err := calendar.ParseDate("start", strings.TrimSpace(req.Start), s.loc)
	if err != nil {
		return in, err
	}
	end, err := calendar.ParseDate("end", strings.TrimSpace(req.End), s.loc)
	if err != nil {
		return in, err
	}
	in.Start, in.End = start, end
	return in, nil
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	var (
		meetings []model.Meeting
		err      error
	)
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		meetings, err = s.svc.Meetings.ListForUser(r.Context(), userID)
	} else {
		meetings, err = s.svc.Meetings.List(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if meetings == nil {
		meetings = []model.Meeting{}
	}
	writeJSON(w, http.StatusOK, meetings)
}

func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req MeetingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.meetingInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	meeting, err := s.svc.Meetings.Create(r.Context(), req.OrganizerID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meeting)
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := s.svc.Meetings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (s *Server) handleUpdateMeeting(w http.ResponseWriter, r *http.Request) {
	var req MeetingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.meetingInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	meeting, err := s.svc.Meetings.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (s *Server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Meetings.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
