package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"stockwatch/internal/logger"
	"stockwatch/internal/monitor"
	"stockwatch/internal/store"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// RunSummary is the JSON view of one monitoring pass
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Phase       string    `json:"phase"`
	Purchasable bool      `json:"purchasable"`
	Target      string    `json:"target,omitempty"`
	URL         string    `json:"url,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Delivered   bool      `json:"delivered"`
	StateSaved  bool      `json:"state_saved"`
	DryRun      bool      `json:"dry_run,omitempty"`
	FetchErrors []string  `json:"fetch_errors,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	DurationMS  int64     `json:"duration_ms"`
}

// StatusResponse represents the /api/status response
type StatusResponse struct {
	Uptime    string      `json:"uptime"`
	Runs      int         `json:"runs"`
	Alerts    int         `json:"alerts"`
	LastRun   *RunSummary `json:"last_run,omitempty"`
	LastAlert *RunSummary `json:"last_alert,omitempty"`
}

// StateResponse represents the /api/state response
type StateResponse struct {
	LastHash  string     `json:"last_hash,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Corrupt   bool       `json:"corrupt,omitempty"`
}

// Tracker accumulates pass outcomes for the status endpoint
type Tracker struct {
	mu        sync.RWMutex
	started   time.Time
	runs      int
	alerts    int
	lastRun   *RunSummary
	lastAlert *RunSummary
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{started: time.Now()}
}

// Record stores the summary of one pass
func (t *Tracker) Record(out monitor.Outcome) {
	summary := summarize(out)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.runs++
	t.lastRun = &summary
	if out.Phase == monitor.PhaseNotified {
		t.alerts++
		t.lastAlert = &summary
	}
}

// Snapshot returns a copy of the current status
func (t *Tracker) Snapshot() StatusResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	resp := StatusResponse{
		Uptime: time.Since(t.started).Round(time.Second).String(),
		Runs:   t.runs,
		Alerts: t.alerts,
	}
	if t.lastRun != nil {
		last := *t.lastRun
		resp.LastRun = &last
	}
	if t.lastAlert != nil {
		alert := *t.lastAlert
		resp.LastAlert = &alert
	}
	return resp
}

func summarize(out monitor.Outcome) RunSummary {
	s := RunSummary{
		RunID:       out.RunID,
		Phase:       string(out.Phase),
		Purchasable: out.Positive(),
		Fingerprint: out.Fingerprint,
		Delivered:   out.Delivered,
		StateSaved:  out.StateSaved,
		DryRun:      out.DryRun,
		StartedAt:   out.StartedAt,
		DurationMS:  out.Duration.Milliseconds(),
	}
	if out.Positive() {
		s.Target = out.Verdict.Target
		s.URL = out.Verdict.URL
	}
	for _, f := range out.FetchErrors {
		s.FetchErrors = append(s.FetchErrors, f.URL+": "+f.Err.Error())
	}
	switch {
	case out.DeliveryErr != nil:
		s.Error = out.DeliveryErr.Error()
	case out.StateErr != nil:
		s.Error = out.StateErr.Error()
	case out.Err != nil:
		s.Error = out.Err.Error()
	}
	return s
}

// handleHealth handles the /health endpoint. A corrupt state record is
// reported as degraded since the next pass recovers from it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if s.state == nil {
		checks["state"] = "not configured"
		s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
		return
	}

	_, err := s.state.Load(r.Context())
	switch {
	case errors.Is(err, store.ErrCorruptState):
		checks["state"] = "corrupt"
		s.respondJSON(w, http.StatusOK, HealthResponse{Status: "degraded", Checks: checks})
	case err != nil:
		checks["state"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
	default:
		checks["state"] = "ok"
		s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
	}
}

// handleStatus handles the /api/status endpoint
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.tracker.Snapshot())
}

// handleState handles the /api/state endpoint
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		s.respondError(w, http.StatusNotFound, "state store not configured")
		return
	}

	state, err := s.state.Load(r.Context())
	switch {
	case errors.Is(err, store.ErrCorruptState):
		s.respondJSON(w, http.StatusOK, StateResponse{Corrupt: true})
		return
	case err != nil:
		s.respondError(w, http.StatusServiceUnavailable, "failed to read state")
		return
	}

	resp := StateResponse{LastHash: state.LastHash}
	if !state.UpdatedAt.IsZero() {
		at := state.UpdatedAt
		resp.UpdatedAt = &at
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"status":  status,
			"message": message,
		},
	})
}
