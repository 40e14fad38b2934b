// Package http exposes the queue, registry, skills inventory and pacer over
// a small REST surface for local dashboards and scripts.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cwygoda/appcron/internal/domain"
)

// Saver commits the combined state after each mutation.
type Saver interface {
	Save(*domain.Profile, *domain.SkillsInventory, *domain.Queue, *domain.Registry) error
}

// Recorder appends events to the attempt journal. Optional.
type Recorder interface {
	Record(ctx context.Context, jobID, event, detail string) error
}

// State is the in-memory state the server operates on.
type State struct {
	Profile   *domain.Profile
	Inventory *domain.SkillsInventory
	Queue     *domain.Queue
	Registry  *domain.Registry
}

// Server is the HTTP adapter. The core data structures expect a single
// writer, so the server serializes all access with one mutex rather than
// pushing locking into the domain. State is held by pointer so that the
// serve-mode worker and the handlers always see the same fields.
type Server struct {
	mu       sync.Mutex
	state    *State
	screener *domain.Screener
	store    Saver
	journal  Recorder
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates an HTTP server over the given state.
func NewServer(state *State, store Saver, journal Recorder, addr string) *Server {
	if state == nil {
		state = &State{}
	}
	if state.Inventory == nil {
		state.Inventory = domain.NewSkillsInventory()
	}
	if state.Queue == nil {
		state.Queue = domain.NewQueue()
	}
	if state.Registry == nil {
		state.Registry = domain.NewRegistry()
	}
	s := &Server{
		state:    state,
		screener: domain.NewScreener(state.Queue, state.Registry),
		store:    store,
		journal:  journal,
		mux:      http.NewServeMux(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /applications", s.handleEnqueue)
	s.mux.HandleFunc("GET /applications/due", s.handleDue)
	s.mux.HandleFunc("GET /applications/pending", s.handlePending)
	s.mux.HandleFunc("POST /applications/{id}/outcome", s.handleOutcome)
	s.mux.HandleFunc("DELETE /applications/{id}", s.handleRemove)
	s.mux.HandleFunc("GET /skills/opportunities", s.handleSkills)
	s.mux.HandleFunc("POST /schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Exclusive runs fn while holding the state lock. The background worker wraps
// each queue pass in it so passes and request handlers never interleave.
func (s *Server) Exclusive(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// enqueueRequest is the request body for POST /applications.
type enqueueRequest struct {
	domain.JobPosting
	ApplyAt *time.Time `json:"apply_at,omitempty"`
	Force   bool       `json:"force,omitempty"`
}

// taskResponse is the JSON representation of a queued task.
type taskResponse struct {
	JobID     string            `json:"job_id"`
	Posting   domain.JobPosting `json:"posting"`
	ApplyAt   time.Time         `json:"apply_at"`
	Status    string            `json:"status"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"last_error,omitempty"`
	Outcome   string            `json:"outcome,omitempty"`
	Notes     []string          `json:"notes,omitempty"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func taskToResponse(app *domain.Application) taskResponse {
	return taskResponse{
		JobID:     app.JobID(),
		Posting:   app.Posting,
		ApplyAt:   app.ApplyAt,
		Status:    app.Status,
		Attempts:  app.Attempts,
		LastError: app.LastError,
		Outcome:   app.Outcome,
		Notes:     app.Notes,
	}
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	applyAt := time.Now()
	if req.ApplyAt != nil {
		applyAt = *req.ApplyAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	app, err := s.screener.Enqueue(req.JobPosting, applyAt, req.Force)
	switch {
	case errors.Is(err, domain.ErrInvalidPosting):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrDuplicate), errors.Is(err, domain.ErrAlreadyApplied):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		log.Printf("enqueue error: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.record(r.Context(), app.JobID(), "enqueued", "")
	if !s.save(w) {
		return
	}
	s.writeJSON(w, http.StatusCreated, taskToResponse(app))
}

func (s *Server) handleDue(w http.ResponseWriter, r *http.Request) {
	when := time.Now()
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid at timestamp")
			return
		}
		when = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	due := s.state.Queue.Due(when)
	out := make([]taskResponse, 0, len(due))
	for _, app := range due {
		out = append(out, taskToResponse(app))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.state.Queue.Pending()
	out := make([]taskResponse, 0, len(pending))
	for _, app := range pending {
		out = append(out, taskToResponse(app))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// outcomeRequest is the request body for POST /applications/{id}/outcome.
type outcomeRequest struct {
	Outcome string `json:"outcome"`
	Note    string `json:"note,omitempty"`
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Outcome == "" {
		s.writeError(w, http.StatusBadRequest, "outcome is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	app, err := s.screener.RecordOutcome(jobID, req.Outcome, req.Note)
	if errors.Is(err, domain.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "unknown job id")
		return
	}
	if err != nil {
		log.Printf("outcome error: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.record(r.Context(), jobID, "outcome", app.Outcome)
	if !s.save(w) {
		return
	}
	s.writeJSON(w, http.StatusOK, taskToResponse(app))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Queue.Remove(jobID) {
		s.writeError(w, http.StatusNotFound, "unknown job id")
		return
	}

	s.record(r.Context(), jobID, "removed", "")
	if !s.save(w) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, s.state.Inventory.SortedByOpportunity())
}

// scheduleRequest is the request body for POST /schedule.
type scheduleRequest struct {
	Jobs                 []domain.JobRef `json:"jobs"`
	Start                *time.Time      `json:"start,omitempty"`
	MinIntervalMinutes   int             `json:"min_interval_minutes"`
	BreakEvery           int             `json:"break_every"`
	BreakDurationMinutes int             `json:"break_duration_minutes"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	start := time.Now()
	if req.Start != nil {
		start = *req.Start
	}

	schedule, err := domain.PlanSchedule(req.Jobs, domain.ScheduleOptions{
		Start:              start,
		MinIntervalMinutes: req.MinIntervalMinutes,
		BreakEvery:         req.BreakEvery,
		BreakDuration:      time.Duration(req.BreakDurationMinutes) * time.Minute,
	})
	if errors.Is(err, domain.ErrInvalidSchedule) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("schedule error: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// save commits the state; callers hold the mutex. Returns false after
// writing an error response.
func (s *Server) save(w http.ResponseWriter) bool {
	if s.store == nil {
		return true
	}
	if err := s.store.Save(s.state.Profile, s.state.Inventory, s.state.Queue, s.state.Registry); err != nil {
		log.Printf("save error: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to persist state")
		return false
	}
	return true
}

func (s *Server) record(ctx context.Context, jobID, event, detail string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, jobID, event, detail); err != nil {
		log.Printf("journal write failed: %v", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
