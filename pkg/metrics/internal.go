package metrics

import (
	"sync"
	"time"
)

// InternalRecorder aggregates observations in memory, keyed by session.
// Useful where no Prometheus server is available and in tests.
type InternalRecorder struct {
	sessions map[string]*SessionUsage
	requests RequestTotals
	mu       sync.RWMutex
}

// SessionUsage is the aggregated phase usage of one session.
//
//nolint:govet
type SessionUsage struct {
	SessionID       string    `json:"session_id"`
	PhasesCompleted int       `json:"phases_completed"`
	PhasesFailed    int       `json:"phases_failed"`
	PhasesSkipped   int       `json:"phases_skipped"`
	Questions       int       `json:"questions"`
	Tokens          int64     `json:"tokens"`
	Cost            float64   `json:"cost"`
	LastUpdated     time.Time `json:"last_updated"`
}

// RequestTotals counts foundry requests.
type RequestTotals struct {
	Requests int64 `json:"requests"`
	Failures int64 `json:"failures"`
	Attempts int64 `json:"attempts"`
	Retries  int64 `json:"retries"`
}

// NewInternalRecorder returns an empty recorder.
func NewInternalRecorder() *InternalRecorder {
	return &InternalRecorder{sessions: make(map[string]*SessionUsage)}
}

// ObserveRequest counts the request and its attempts.
func (r *InternalRecorder) ObserveRequest(obs RequestObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests.Requests++
	r.requests.Attempts += int64(obs.Attempts)
	if obs.ErrorKind != "" {
		r.requests.Failures++
	}
}

// ObserveRetry counts the retry.
func (r *InternalRecorder) ObserveRetry(_, _ string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests.Retries++
}

// ObservePhase folds a phase into its session's usage.
func (r *InternalRecorder) ObservePhase(obs PhaseObservation) {
	if obs.SessionID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	usage, exists := r.sessions[obs.SessionID]
	if !exists {
		usage = &SessionUsage{SessionID: obs.SessionID}
		r.sessions[obs.SessionID] = usage
	}

	switch obs.Outcome {
	case OutcomeCompleted:
		usage.PhasesCompleted++
		usage.Questions += obs.Questions
		usage.Tokens += int64(obs.Tokens)
		usage.Cost += obs.Cost
	case OutcomeFailed:
		usage.PhasesFailed++
	case OutcomeSkipped:
		usage.PhasesSkipped++
	}
	usage.LastUpdated = time.Now()
}

// SessionUsage returns a copy of the usage for sessionID, or nil.
func (r *InternalRecorder) SessionUsage(sessionID string) *SessionUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if usage, exists := r.sessions[sessionID]; exists {
		copied := *usage
		return &copied
	}
	return nil
}

// AllSessionUsage returns copies of every session's usage.
func (r *InternalRecorder) AllSessionUsage() map[string]*SessionUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*SessionUsage, len(r.sessions))
	for id, usage := range r.sessions {
		copied := *usage
		result[id] = &copied
	}
	return result
}

// Requests returns the request counters.
func (r *InternalRecorder) Requests() RequestTotals {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.requests
}

// Reset clears everything.
func (r *InternalRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*SessionUsage)
	r.requests = RequestTotals{}
}
