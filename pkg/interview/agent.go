package interview

import (
	"context"
	"fmt"
	"strings"
)

// AgentType selects the kind of agent a phase uses.
type AgentType string

// Supported agent types.
const (
	AgentTechnical  AgentType = "technical"
	AgentBehavioral AgentType = "behavioral"
	AgentIndustry   AgentType = "industry"
)

// AllAgentTypes lists every AgentType. Lookup tables keyed by AgentType must
// cover all of them.
func AllAgentTypes() []AgentType {
	return []AgentType{AgentTechnical, AgentBehavioral, AgentIndustry}
}

// Valid reports whether t is a known agent type.
func (t AgentType) Valid() bool {
	switch t {
	case AgentTechnical, AgentBehavioral, AgentIndustry:
		return true
	default:
		return false
	}
}

// ParseAgentType parses a case-insensitive agent type name.
func ParseAgentType(s string) (AgentType, error) {
	t := AgentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown agent type %q", s)
	}
	return t, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *AgentType) UnmarshalText(text []byte) error {
	parsed, err := ParseAgentType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ExperienceLevel is an ordered seniority band.
type ExperienceLevel string

// Experience levels, lowest first.
const (
	LevelEntry     ExperienceLevel = "entry"
	LevelMid       ExperienceLevel = "mid"
	LevelSenior    ExperienceLevel = "senior"
	LevelExecutive ExperienceLevel = "executive"
)

// Rank returns the level's ordinal (entry=0 … executive=3), or -1 if unknown.
func (l ExperienceLevel) Rank() int {
	switch ExperienceLevel(strings.ToLower(string(l))) {
	case LevelEntry:
		return 0
	case LevelMid:
		return 1
	case LevelSenior:
		return 2
	case LevelExecutive:
		return 3
	default:
		return -1
	}
}

// Valid reports whether l is a known level.
func (l ExperienceLevel) Valid() bool {
	return l.Rank() >= 0
}

// AgentConfig overrides how an agent generates for one phase. The
// orchestrator passes it through without interpreting it.
type AgentConfig struct {
	Model       string         `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature *float64       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Agent produces questions for one phase.
type Agent interface {
	GenerateQuestions(ctx context.Context, ictx InterviewContext) ([]Question, error)
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(ctx context.Context, ictx InterviewContext) ([]Question, error)

// GenerateQuestions implements Agent.
func (f AgentFunc) GenerateQuestions(ctx context.Context, ictx InterviewContext) ([]Question, error) {
	return f(ctx, ictx)
}

// AgentFactory builds an agent for a phase. cfg is the phase override, or nil.
type AgentFactory interface {
	CreateAgent(agentType AgentType, cfg *AgentConfig) (Agent, error)
}

// FactoryFunc adapts a function to AgentFactory.
type FactoryFunc func(agentType AgentType, cfg *AgentConfig) (Agent, error)

// CreateAgent implements AgentFactory.
func (f FactoryFunc) CreateAgent(agentType AgentType, cfg *AgentConfig) (Agent, error) {
	return f(agentType, cfg)
}

// Float64 returns a pointer to v, for AgentConfig.Temperature literals.
func Float64(v float64) *float64 {
	return &v
}
