package testkit

import (
	"context"
	"fmt"
	"sync"

	"interviewer/pkg/interview"
)

// SessionBuilder assembles SessionConfig fixtures.
type SessionBuilder struct {
	cfg interview.SessionConfig
}

// NewSession starts a builder for a session with the given id.
func NewSession(sessionID string) *SessionBuilder {
	return &SessionBuilder{cfg: interview.SessionConfig{
		SessionID: sessionID,
		Candidate: interview.CandidateProfile{Name: "Test Candidate", ExperienceLevel: interview.LevelMid},
		Role:      interview.TargetRole{Title: "Software Engineer", Category: "engineering"},
		Company:   interview.CompanyInfo{Name: "Acme", Industry: "Technology"},
	}}
}

// WithLevel sets the candidate experience level.
func (b *SessionBuilder) WithLevel(level interview.ExperienceLevel) *SessionBuilder {
	b.cfg.Candidate.ExperienceLevel = level
	return b
}

// WithIndustry sets the company industry.
func (b *SessionBuilder) WithIndustry(industry string) *SessionBuilder {
	b.cfg.Company.Industry = industry
	return b
}

// WithRoleCategory sets the target role category.
func (b *SessionBuilder) WithRoleCategory(category string) *SessionBuilder {
	b.cfg.Role.Category = category
	return b
}

// WithPhase appends a required phase.
func (b *SessionBuilder) WithPhase(id string, agentType interview.AgentType, questions int) *SessionBuilder {
	b.cfg.Phases = append(b.cfg.Phases, interview.Phase{ID: id, Name: id, AgentType: agentType, QuestionCount: questions})
	return b
}

// WithOptionalPhase appends an optional phase gated by cond.
func (b *SessionBuilder) WithOptionalPhase(id string, agentType interview.AgentType, questions int, cond interview.SkipConditions) *SessionBuilder {
	b.cfg.Phases = append(b.cfg.Phases, interview.Phase{
		ID: id, Name: id, AgentType: agentType, QuestionCount: questions, Optional: true, SkipConditions: &cond,
	})
	return b
}

// WithMetadata sets a metadata entry.
func (b *SessionBuilder) WithMetadata(key, value string) *SessionBuilder {
	if b.cfg.Metadata == nil {
		b.cfg.Metadata = map[string]string{}
	}
	b.cfg.Metadata[key] = value
	return b
}

// Build returns the config.
func (b *SessionBuilder) Build() interview.SessionConfig {
	return b.cfg
}

// MakeQuestions returns n questions with ids prefix-1..prefix-n.
func MakeQuestions(prefix string, n int) []interview.Question {
	out := make([]interview.Question, n)
	for i := range out {
		out[i] = interview.Question{
			ID:   fmt.Sprintf("%s-%d", prefix, i+1),
			Text: fmt.Sprintf("%s question %d", prefix, i+1),
		}
	}
	return out
}

// AgentCall records one GenerateQuestions invocation.
type AgentCall struct {
	AgentType interview.AgentType
	Config    *interview.AgentConfig
	Context   interview.InterviewContext
}

// ScriptedFactory is an AgentFactory whose agents answer from per-type
// handlers. Types without a handler produce TargetQuestionCount questions.
type ScriptedFactory struct {
	mu          sync.Mutex
	handlers    map[interview.AgentType]interview.AgentFunc
	createErrs  map[interview.AgentType]error
	calls       []AgentCall
	createCount int
}

// NewScriptedFactory creates an empty factory.
func NewScriptedFactory() *ScriptedFactory {
	return &ScriptedFactory{
		handlers:   map[interview.AgentType]interview.AgentFunc{},
		createErrs: map[interview.AgentType]error{},
	}
}

// On sets the handler for agentType.
func (f *ScriptedFactory) On(agentType interview.AgentType, fn interview.AgentFunc) *ScriptedFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[agentType] = fn
	return f
}

// FailWith makes agents of agentType return err.
func (f *ScriptedFactory) FailWith(agentType interview.AgentType, err error) *ScriptedFactory {
	return f.On(agentType, func(context.Context, interview.InterviewContext) ([]interview.Question, error) {
		return nil, err
	})
}

// FailCreate makes CreateAgent fail for agentType.
func (f *ScriptedFactory) FailCreate(agentType interview.AgentType, err error) *ScriptedFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErrs[agentType] = err
	return f
}

// CreateAgent implements interview.AgentFactory.
func (f *ScriptedFactory) CreateAgent(agentType interview.AgentType, cfg *interview.AgentConfig) (interview.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCount++
	if err := f.createErrs[agentType]; err != nil {
		return nil, err
	}
	handler := f.handlers[agentType]

	return interview.AgentFunc(func(ctx context.Context, ictx interview.InterviewContext) ([]interview.Question, error) {
		f.mu.Lock()
		f.calls = append(f.calls, AgentCall{AgentType: agentType, Config: cfg, Context: ictx})
		f.mu.Unlock()

		if handler != nil {
			return handler(ctx, ictx)
		}
		return MakeQuestions(string(agentType), ictx.TargetQuestionCount), nil
	}), nil
}

// Calls returns the recorded agent calls in order.
func (f *ScriptedFactory) Calls() []AgentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AgentCall(nil), f.calls...)
}

// CreateCount returns how many agents were requested.
func (f *ScriptedFactory) CreateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCount
}
