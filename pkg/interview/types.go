// Package interview defines the shared interview session model: candidate
// context, phases and their skip conditions, session state and results, the
// agent capability consumed by the orchestrator, and cost estimation.
package interview

import (
	"maps"
	"slices"
	"time"
)

// CandidateProfile describes the person being interviewed.
type CandidateProfile struct {
	Name            string          `json:"name" yaml:"name"`
	ExperienceLevel ExperienceLevel `json:"experience_level" yaml:"experience_level"`
	YearsExperience int             `json:"years_experience,omitempty" yaml:"years_experience,omitempty"`
	Skills          []string        `json:"skills,omitempty" yaml:"skills,omitempty"`
	Background      string          `json:"background,omitempty" yaml:"background,omitempty"`
}

// TargetRole is the position being interviewed for.
type TargetRole struct {
	Title        string   `json:"title" yaml:"title"`
	Category     string   `json:"category,omitempty" yaml:"category,omitempty"`
	Requirements []string `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

// CompanyInfo describes the hiring company.
type CompanyInfo struct {
	Name     string `json:"name" yaml:"name"`
	Industry string `json:"industry,omitempty" yaml:"industry,omitempty"`
	Size     string `json:"size,omitempty" yaml:"size,omitempty"`
	Culture  string `json:"culture,omitempty" yaml:"culture,omitempty"`
}

// Question is one generated interview question.
type Question struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Category   string            `json:"category,omitempty"`
	Difficulty string            `json:"difficulty,omitempty"`
	FollowUps  []string          `json:"follow_ups,omitempty"`
	AgentType  AgentType         `json:"agent_type,omitempty"`
	PhaseID    string            `json:"phase_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AgentResponse is the untruncated output of one successful agent call.
type AgentResponse struct {
	PhaseID    string     `json:"phase_id"`
	AgentType  AgentType  `json:"agent_type"`
	Questions  []Question `json:"questions"`
	ReceivedAt time.Time  `json:"received_at"`
}

// SessionHistory is the read-only view of earlier phases handed to agents.
type SessionHistory struct {
	PreviousQuestions []Question      `json:"previous_questions"`
	PreviousResponses []AgentResponse `json:"previous_responses"`
	CurrentPhase      int             `json:"current_phase"`
	TotalPhases       int             `json:"total_phases"`
}

// InterviewContext is the per-phase snapshot an agent receives.
type InterviewContext struct {
	SessionID           string           `json:"session_id"`
	Candidate           CandidateProfile `json:"candidate"`
	Role                TargetRole       `json:"role"`
	Company             CompanyInfo      `json:"company"`
	TargetQuestionCount int              `json:"target_question_count"`
	History             SessionHistory   `json:"history"`
}

// SkipConditions gate an optional phase. Every set condition must hold for the
// phase to run.
type SkipConditions struct {
	MinExperienceLevel ExperienceLevel `json:"min_experience_level,omitempty" yaml:"min_experience_level,omitempty"`
	RequiredIndustries []string        `json:"required_industries,omitempty" yaml:"required_industries,omitempty"`
	RoleCategories     []string        `json:"role_categories,omitempty" yaml:"role_categories,omitempty"`
}

// Phase is one step of a session, bound to one agent type.
type Phase struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	AgentType      AgentType       `json:"agent_type" yaml:"agent_type"`
	AgentConfig    *AgentConfig    `json:"agent_config,omitempty" yaml:"agent_config,omitempty"`
	QuestionCount  int             `json:"question_count" yaml:"question_count"`
	Optional       bool            `json:"optional,omitempty" yaml:"optional,omitempty"`
	SkipConditions *SkipConditions `json:"skip_conditions,omitempty" yaml:"skip_conditions,omitempty"`
}

// SessionConfig is everything needed to run one session.
type SessionConfig struct {
	SessionID string            `json:"session_id" yaml:"session_id"`
	Candidate CandidateProfile  `json:"candidate" yaml:"candidate"`
	Role      TargetRole        `json:"role" yaml:"role"`
	Company   CompanyInfo       `json:"company" yaml:"company"`
	Phases    []Phase           `json:"phases" yaml:"phases"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// SessionState is the live progress of a running session.
type SessionState struct {
	SessionID      string            `json:"session_id"`
	CurrentPhase   int               `json:"current_phase"`
	TotalPhases    int               `json:"total_phases"`
	Questions      []Question        `json:"questions"`
	AgentResponses []AgentResponse   `json:"agent_responses"`
	StartTime      time.Time         `json:"start_time"`
	LastUpdateTime time.Time         `json:"last_update_time"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy safe to hand out of the registry.
func (s *SessionState) Clone() SessionState {
	out := *s
	out.Questions = slices.Clone(s.Questions)
	out.AgentResponses = slices.Clone(s.AgentResponses)
	out.Metadata = maps.Clone(s.Metadata)
	return out
}

// PhaseResult records the outcome of one declared phase.
type PhaseResult struct {
	Phase         Phase         `json:"phase"`
	Questions     []Question    `json:"questions"`
	ExecutionTime time.Duration `json:"execution_time"`
	Success       bool          `json:"success"`
	Skipped       bool          `json:"skipped,omitempty"`
	SkipReason    string        `json:"skip_reason,omitempty"`
	Error         string        `json:"error,omitempty"`
	Tokens        int           `json:"tokens,omitempty"`
	Cost          float64       `json:"cost,omitempty"`
}

// SessionMetrics aggregates a finished session.
type SessionMetrics struct {
	TotalExecutionTime time.Duration `json:"total_execution_time"`
	EstimatedCost      float64       `json:"estimated_cost"`
	EstimatedTokens    int           `json:"estimated_tokens"`
	PhasesCompleted    int           `json:"phases_completed"`
	PhasesSkipped      int           `json:"phases_skipped"`
	PhasesFailed       int           `json:"phases_failed"`
	SuccessRate        float64       `json:"success_rate"`
}

// SessionResult is the immutable outcome of StartSession.
type SessionResult struct {
	SessionID    string         `json:"session_id"`
	Questions    []Question     `json:"questions"`
	PhaseResults []PhaseResult  `json:"phase_results"`
	Metrics      SessionMetrics `json:"metrics"`
	Cancelled    bool           `json:"cancelled,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}
