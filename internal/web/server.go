// Package web exposes the calendar over a JSON HTTP API.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"taskcal/internal/calendar"
	"taskcal/internal/config"
	"taskcal/internal/repository"
	"taskcal/internal/service"
)

// Services are the collaborators the handlers call into.
type Services struct {
	Users     *repository.UserRepository
	Tasks     *service.TaskService
	Meetings  *service.MeetingService
	Calendar  *service.CalendarService
	Occupancy *service.OccupancyService
}

// Server provides the HTTP API.
type Server struct {
	cfg config.Config
	svc Services
	loc *time.Location
	mux *http.ServeMux
	now func() time.Time
}

func NewServer(cfg config.Config, svc Services) *Server {
	s := &Server{
		cfg: cfg,
		svc: svc,
		loc: cfg.Location(),
		mux: http.NewServeMux(),
		now: time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.cfg.BasicAuth.Enabled() {
		log.Printf("[info] HTTP basic auth enabled")
		h = s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("[info] HTTP server listening on http://%s", s.cfg.Listen)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/users/{id}", s.handleUser)
	s.mux.HandleFunc("GET /api/users/{id}/tasks", s.handleUserTasks)
	s.mux.HandleFunc("GET /api/users/{id}/board", s.handleBoard)
	s.mux.HandleFunc("GET /api/users/{id}/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/users/{id}/calendar.ics", s.handleICS)

	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTask)
	s.mux.HandleFunc("PUT /api/tasks/{id}/occupancy", s.handleSetOccupancy)
	s.mux.HandleFunc("DELETE /api/tasks/{id}/occupancy", s.handleUnschedule)
	s.mux.HandleFunc("POST /api/tasks/{id}/move", s.handleMove)

	s.mux.HandleFunc("GET /api/meetings", s.handleListMeetings)
	s.mux.HandleFunc("POST /api/meetings", s.handleCreateMeeting)
	s.mux.HandleFunc("GET /api/meetings/{id}", s.handleGetMeeting)
	s.mux.HandleFunc("PUT /api/meetings/{id}", s.handleUpdateMeeting)
	s.mux.HandleFunc("DELETE /api/meetings/{id}", s.handleDeleteMeeting)
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="taskcal", charset="UTF-8"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required", Kind: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// KindConflict and KindInvalidInput extend the calendar error kinds on the wire.
const (
	KindConflict     = "conflict"
	KindInvalidInput = "invalid_input"
)

// errorKind maps err onto its wire kind and HTTP status.
func errorKind(err error) (string, int) {
	switch {
	case errors.Is(err, service.ErrMutationInFlight):
		return KindConflict, http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput):
		return KindInvalidInput, http.StatusBadRequest
	}
	kind := calendar.Kind(err)
	switch kind {
	case "invalid_date":
		return kind, http.StatusBadRequest
	case "unauthorized":
		return kind, http.StatusForbidden
	case "not_found":
		return kind, http.StatusNotFound
	case "transient":
		return kind, http.StatusServiceUnavailable
	default:
		return "internal", http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := errorKind(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}
