package testkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/interview"
)

func TestFoundryServerReplaysScript(t *testing.T) {
	server := NewFoundryServer(Status(http.StatusServiceUnavailable), JSON(http.StatusOK, map[string]string{"ok": "yes"}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/ping")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Post(server.URL+"/v1/ping", "application/json", bytes.NewBufferString(`{"a":1}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":"yes"}`, string(body))

	// Script exhausted: fallback is 200.
	resp, err = http.Get(server.URL + "/again")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	reqs := server.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, server.Calls(), 3)
	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.Equal(t, `{"a":1}`, string(reqs[1].Body))
}

func TestFoundryServerHangup(t *testing.T) {
	server := NewFoundryServer(Step{Hangup: true})
	defer server.Close()

	_, err := http.Get(server.URL)
	assert.Error(t, err)
}

func TestMockQuestionServer(t *testing.T) {
	server := MockQuestionServer(2, "industry")
	defer server.Close()

	payload, _ := json.Marshal(QuestionRequest{SessionID: "s", QuestionCount: 3})
	resp, err := http.Post(server.URL+"/v1/agents/technical/questions", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Questions []interview.Question `json:"questions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Questions, 5)

	resp, err = http.Post(server.URL+"/v1/agents/industry/questions", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = http.Get(server.URL + "/v1/unknown")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionBuilder(t *testing.T) {
	cfg := NewSession("s1").
		WithLevel(interview.LevelSenior).
		WithPhase("a", interview.AgentTechnical, 2).
		WithOptionalPhase("b", interview.AgentIndustry, 1, interview.SkipConditions{MinExperienceLevel: interview.LevelMid}).
		WithMetadata("source", "test").
		Build()

	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Phases, 2)
	assert.True(t, cfg.Phases[1].Optional)
	assert.Equal(t, "test", cfg.Metadata["source"])
}

func TestScriptedFactory(t *testing.T) {
	boom := errors.New("boom")
	factory := NewScriptedFactory().
		FailWith(interview.AgentBehavioral, boom).
		FailCreate(interview.AgentIndustry, boom)

	agent, err := factory.CreateAgent(interview.AgentTechnical, nil)
	require.NoError(t, err)
	qs, err := agent.GenerateQuestions(context.Background(), interview.InterviewContext{TargetQuestionCount: 3})
	require.NoError(t, err)
	assert.Len(t, qs, 3)

	agent, err = factory.CreateAgent(interview.AgentBehavioral, nil)
	require.NoError(t, err)
	_, err = agent.GenerateQuestions(context.Background(), interview.InterviewContext{})
	assert.ErrorIs(t, err, boom)

	_, err = factory.CreateAgent(interview.AgentIndustry, nil)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 3, factory.CreateCount())
	assert.Len(t, factory.Calls(), 2)
}

func TestAssertions(t *testing.T) {
	result := &interview.SessionResult{
		PhaseResults: []interview.PhaseResult{
			{Phase: interview.Phase{ID: "a"}, Success: true, Questions: MakeQuestions("a", 2)},
			{Phase: interview.Phase{ID: "b"}, Error: "failed"},
			{Phase: interview.Phase{ID: "c"}, Skipped: true},
		},
		Metrics: interview.SessionMetrics{PhasesCompleted: 1, PhasesFailed: 1, PhasesSkipped: 1},
	}

	AssertPhaseOrder(t, result, "a", "b", "c")
	AssertPhaseSucceeded(t, result, 0, 2)
	AssertPhaseFailed(t, result, 1)
	AssertPhaseSkipped(t, result, 2)
	AssertCounts(t, result, 1, 1, 1)
}
