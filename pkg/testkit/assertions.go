package testkit

import (
	"reflect"
	"testing"

	"interviewer/pkg/interview"
)

// AssertPhaseOrder verifies phase results appear in the given id order.
func AssertPhaseOrder(t *testing.T, result *interview.SessionResult, expected ...string) {
	t.Helper()
	actual := make([]string, 0, len(result.PhaseResults))
	for i := range result.PhaseResults {
		actual = append(actual, result.PhaseResults[i].Phase.ID)
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("Expected phase order %v, got %v", expected, actual)
	}
}

// AssertPhaseSucceeded verifies phase i succeeded with want questions.
func AssertPhaseSucceeded(t *testing.T, result *interview.SessionResult, i, want int) {
	t.Helper()
	pr := phaseAt(t, result, i)
	if pr == nil {
		return
	}
	if !pr.Success || pr.Skipped {
		t.Errorf("Expected phase %s to succeed, got success=%v skipped=%v error=%q", pr.Phase.ID, pr.Success, pr.Skipped, pr.Error)
	}
	if len(pr.Questions) != want {
		t.Errorf("Expected phase %s to produce %d questions, got %d", pr.Phase.ID, want, len(pr.Questions))
	}
}

// AssertPhaseFailed verifies phase i failed with an error message.
func AssertPhaseFailed(t *testing.T, result *interview.SessionResult, i int) {
	t.Helper()
	pr := phaseAt(t, result, i)
	if pr == nil {
		return
	}
	if pr.Success || pr.Skipped {
		t.Errorf("Expected phase %s to fail, got success=%v skipped=%v", pr.Phase.ID, pr.Success, pr.Skipped)
	}
	if pr.Error == "" {
		t.Errorf("Expected phase %s to carry an error message", pr.Phase.ID)
	}
}

// AssertPhaseSkipped verifies phase i was skipped.
func AssertPhaseSkipped(t *testing.T, result *interview.SessionResult, i int) {
	t.Helper()
	pr := phaseAt(t, result, i)
	if pr == nil {
		return
	}
	if !pr.Skipped {
		t.Errorf("Expected phase %s to be skipped", pr.Phase.ID)
	}
	if len(pr.Questions) != 0 {
		t.Errorf("Expected skipped phase %s to produce no questions, got %d", pr.Phase.ID, len(pr.Questions))
	}
}

// AssertCounts verifies completed/skipped/failed phase counters.
func AssertCounts(t *testing.T, result *interview.SessionResult, completed, skipped, failed int) {
	t.Helper()
	m := result.Metrics
	if m.PhasesCompleted != completed || m.PhasesSkipped != skipped || m.PhasesFailed != failed {
		t.Errorf("Expected completed/skipped/failed %d/%d/%d, got %d/%d/%d",
			completed, skipped, failed, m.PhasesCompleted, m.PhasesSkipped, m.PhasesFailed)
	}
}

// SessionRegistry is the part of the orchestrator AssertNoActiveSessions needs.
type SessionRegistry interface {
	GetActiveSessions() []string
}

// AssertNoActiveSessions verifies the registry is empty.
func AssertNoActiveSessions(t *testing.T, registry SessionRegistry) {
	t.Helper()
	if active := registry.GetActiveSessions(); len(active) != 0 {
		t.Errorf("Expected no active sessions, got %v", active)
	}
}

func phaseAt(t *testing.T, result *interview.SessionResult, i int) *interview.PhaseResult {
	t.Helper()
	if i < 0 || i >= len(result.PhaseResults) {
		t.Errorf("Expected phase result %d, have %d results", i, len(result.PhaseResults))
		return nil
	}
	return &result.PhaseResults[i]
}
