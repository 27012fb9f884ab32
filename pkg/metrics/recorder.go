// Package metrics records foundry request and interview phase observations.
package metrics

import "time"

// Phase outcomes used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// RequestObservation describes one logical foundry request, retries included.
type RequestObservation struct {
	Method    string
	Path      string
	Status    int    // Final HTTP status, 0 when no response was received
	ErrorKind string // Empty on success
	Attempts  int
	Duration  time.Duration
}

// PhaseObservation describes one interview phase.
type PhaseObservation struct {
	SessionID string
	PhaseID   string
	AgentType string
	Outcome   string
	Questions int
	Tokens    int
	Cost      float64
	Duration  time.Duration
}

// Recorder receives request and phase observations.
type Recorder interface {
	// ObserveRequest records a finished logical request.
	ObserveRequest(obs RequestObservation)

	// ObserveRetry records a retry decision and its cause.
	ObserveRetry(path, reason string, delay time.Duration)

	// ObservePhase records a finished, failed or skipped phase.
	ObservePhase(obs PhaseObservation)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

// Nop returns a Recorder that discards everything.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing.
func (n *NoopRecorder) ObserveRequest(_ RequestObservation) {}

// ObserveRetry does nothing.
func (n *NoopRecorder) ObserveRetry(_, _ string, _ time.Duration) {}

// ObservePhase does nothing.
func (n *NoopRecorder) ObservePhase(_ PhaseObservation) {}

// Multi fans observations out to several recorders.
type Multi []Recorder

// ObserveRequest forwards to every recorder.
func (m Multi) ObserveRequest(obs RequestObservation) {
	for _, r := range m {
		r.ObserveRequest(obs)
	}
}

// ObserveRetry forwards to every recorder.
func (m Multi) ObserveRetry(path, reason string, delay time.Duration) {
	for _, r := range m {
		r.ObserveRetry(path, reason, delay)
	}
}

// ObservePhase forwards to every recorder.
func (m Multi) ObservePhase(obs PhaseObservation) {
	for _, r := range m {
		r.ObservePhase(obs)
	}
}
