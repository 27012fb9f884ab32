// Package api exposes the session orchestrator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"interviewer/pkg/foundry"
	"interviewer/pkg/interview"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
	"interviewer/pkg/orchestrator"
	"interviewer/pkg/persistence"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// SessionRunner is the orchestrator surface the API drives.
type SessionRunner interface {
	CreateStandardSession(params orchestrator.StandardSessionParams) interview.SessionConfig
	StartSession(ctx context.Context, cfg interview.SessionConfig) (*interview.SessionResult, error)
	StartSessionAsync(ctx context.Context, cfg interview.SessionConfig) (<-chan *interview.SessionResult, error)
	GetSessionState(sessionID string) (interview.SessionState, bool)
	GetActiveSessions() []string
	CancelSession(sessionID string) bool
}

// HealthChecker probes the upstream foundry service.
type HealthChecker interface {
	ValidateConnection(ctx context.Context) foundry.HealthStatus
}

// ResultReader serves stored session results.
type ResultReader interface {
	GetResult(ctx context.Context, sessionID string) (*interview.SessionResult, error)
	ListResults(ctx context.Context, limit int) ([]persistence.ResultSummary, error)
	DeleteResult(ctx context.Context, sessionID string) error
}

// UsageReporter serves in-process usage aggregates.
type UsageReporter interface {
	AllSessionUsage() map[string]*metrics.SessionUsage
	Requests() metrics.RequestTotals
}

// StartRequest is the body of POST /sessions. Exactly one of Standard and
// Session is set.
type StartRequest struct {
	Standard *orchestrator.StandardSessionParams `json:"standard,omitempty"`
	Session  *interview.SessionConfig            `json:"session,omitempty"`
	Async    bool                                `json:"async,omitempty"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithHealthChecker enables GET /health against the foundry.
func WithHealthChecker(hc HealthChecker) Option {
	return func(h *Handler) { h.health = hc }
}

// WithResults enables the /results routes.
func WithResults(r ResultReader) Option {
	return func(h *Handler) { h.results = r }
}

// WithUsage enables GET /usage.
func WithUsage(u UsageReporter) Option {
	return func(h *Handler) { h.usage = u }
}

// WithPersistence sends every finished session to the persistence worker.
func WithPersistence(ch chan<- *persistence.Request) Option {
	return func(h *Handler) { h.persist = ch }
}

// WithBaseContext sets the parent context of asynchronous sessions.
func WithBaseContext(ctx context.Context) Option {
	return func(h *Handler) { h.baseCtx = ctx }
}

// Handler serves the session API.
type Handler struct {
	sessions SessionRunner
	health   HealthChecker
	results  ResultReader
	usage    UsageReporter
	persist  chan<- *persistence.Request
	baseCtx  context.Context //nolint:containedctx // parent of background sessions
	logger   *logx.Logger
	wg       sync.WaitGroup
}

// NewHandler creates a handler over sessions.
func NewHandler(sessions SessionRunner, opts ...Option) *Handler {
	h := &Handler{
		sessions: sessions,
		baseCtx:  context.Background(),
		logger:   logx.NewLogger("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.StartSession)
		r.Get("/", h.ListActive)
		r.Get("/{id}", h.GetSession)
		r.Delete("/{id}", h.CancelSession)
	})
	if h.usage != nil {
		r.Get("/usage", h.Usage)
	}
	if h.results != nil {
		r.Route("/results", func(r chi.Router) {
			r.Get("/", h.ListResults)
			r.Get("/{id}", h.GetResult)
			r.Delete("/{id}", h.DeleteResult)
		})
	}
}

// Wait blocks until every asynchronous session has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// StartSession runs a standard or explicit session. Synchronous requests
// return the result; asynchronous ones return 202 with the session id.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var cfg interview.SessionConfig
	switch {
	case req.Standard != nil && req.Session != nil:
		Error(w, http.StatusBadRequest, "set either standard or session, not both")
		return
	case req.Standard != nil:
		cfg = h.sessions.CreateStandardSession(*req.Standard)
	case req.Session != nil:
		cfg = *req.Session
		if strings.TrimSpace(cfg.SessionID) == "" {
			cfg.SessionID = uuid.NewString()
		}
	default:
		Error(w, http.StatusBadRequest, "standard or session is required")
		return
	}

	if err := cfg.Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Async {
		// The session is registered before 202 is sent, so a duplicate id
		// is rejected here rather than in the background.
		done, err := h.sessions.StartSessionAsync(h.baseCtx, cfg)
		if err != nil {
			Error(w, statusFor(err), err.Error())
			return
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			persistence.PersistResult(<-done, h.persist)
		}()
		JSON(w, http.StatusAccepted, map[string]string{"session_id": cfg.SessionID})
		return
	}

	result, err := h.sessions.StartSession(r.Context(), cfg)
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}
	persistence.PersistResult(result, h.persist)
	JSON(w, http.StatusOK, result)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, interview.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrSessionActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ListActive returns the ids of running sessions.
func (h *Handler) ListActive(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string][]string{"sessions": h.sessions.GetActiveSessions()})
}

// GetSession returns the live state of a running session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, ok := h.sessions.GetSessionState(id)
	if !ok {
		Error(w, http.StatusNotFound, "session not active: "+id)
		return
	}
	JSON(w, http.StatusOK, state)
}

// CancelSession requests cancellation of a running session.
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.sessions.CancelSession(id) {
		Error(w, http.StatusNotFound, "session not active: "+id)
		return
	}
	JSON(w, http.StatusAccepted, map[string]any{"session_id": id, "cancelled": true})
}

// Health reports foundry connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		JSON(w, http.StatusOK, foundry.HealthStatus{OK: true})
		return
	}
	status := h.health.ValidateConnection(r.Context())
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	JSON(w, code, status)
}

// Usage returns per-session phase usage and foundry request totals since start.
func (h *Handler) Usage(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"sessions": h.usage.AllSessionUsage(),
		"requests": h.usage.Requests(),
	})
}

// ListResults returns stored session summaries.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	list, err := h.results.ListResults(r.Context(), 0)
	if err != nil {
		h.logger.Error("Failed to list results: %v", err)
		Error(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"results": list})
}

// GetResult returns one stored session result.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.results.GetResult(r.Context(), id)
	switch {
	case errors.Is(err, persistence.ErrResultNotFound):
		Error(w, http.StatusNotFound, "no stored result: "+id)
	case err != nil:
		h.logger.Error("Failed to load result %s: %v", id, err)
		Error(w, http.StatusInternalServerError, "failed to load result")
	default:
		JSON(w, http.StatusOK, result)
	}
}

// DeleteResult removes one stored session result.
func (h *Handler) DeleteResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.results.DeleteResult(r.Context(), id)
	switch {
	case errors.Is(err, persistence.ErrResultNotFound):
		Error(w, http.StatusNotFound, "no stored result: "+id)
	case err != nil:
		h.logger.Error("Failed to delete result %s: %v", id, err)
		Error(w, http.StatusInternalServerError, "failed to delete result")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// JSON writes a JSON response.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
