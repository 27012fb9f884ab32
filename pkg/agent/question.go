// Package agent provides foundry-backed interview agents and the factory that
// builds them per agent type.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"interviewer/pkg/foundry"
	"interviewer/pkg/interview"
	"interviewer/pkg/logx"
)

// Requester is the part of foundry.Client an agent needs.
type Requester interface {
	Request(ctx context.Context, path string, opts foundry.RequestOptions) (*foundry.Response, error)
}

// questionRequest is the body posted to the question endpoint.
type questionRequest struct {
	SessionID     string          `json:"session_id"`
	PhaseIndex    int             `json:"phase_index"`
	TotalPhases   int             `json:"total_phases"`
	QuestionCount int             `json:"question_count"`
	Model         string          `json:"model,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Parameters    map[string]any  `json:"parameters,omitempty"`
	Context       questionContext `json:"context"`
}

type questionContext struct {
	Candidate         interview.CandidateProfile `json:"candidate"`
	Role              interview.TargetRole       `json:"role"`
	Company           interview.CompanyInfo      `json:"company"`
	PreviousQuestions []string                   `json:"previous_questions,omitempty"`
}

type questionResponse struct {
	Questions []interview.Question `json:"questions"`
}

// QuestionAgent asks the foundry question endpoint of one agent type.
type QuestionAgent struct {
	client    Requester
	agentType interview.AgentType
	config    interview.AgentConfig
	logger    *logx.Logger
}

// NewQuestionAgent creates an agent for agentType with the effective config.
func NewQuestionAgent(client Requester, agentType interview.AgentType, cfg interview.AgentConfig) *QuestionAgent {
	return &QuestionAgent{
		client:    client,
		agentType: agentType,
		config:    cfg,
		logger:    logx.NewLogger("agent-" + string(agentType)),
	}
}

// Type returns the agent type.
func (a *QuestionAgent) Type() interview.AgentType {
	return a.agentType
}

// Config returns the effective agent config.
func (a *QuestionAgent) Config() interview.AgentConfig {
	return a.config
}

// Path returns the endpoint this agent posts to.
func (a *QuestionAgent) Path() string {
	return "/v1/agents/" + string(a.agentType) + "/questions"
}

// GenerateQuestions implements interview.Agent.
func (a *QuestionAgent) GenerateQuestions(ctx context.Context, ictx interview.InterviewContext) ([]interview.Question, error) {
	previous := make([]string, 0, len(ictx.History.PreviousQuestions))
	for i := range ictx.History.PreviousQuestions {
		previous = append(previous, ictx.History.PreviousQuestions[i].Text)
	}

	body := questionRequest{
		SessionID:     ictx.SessionID,
		PhaseIndex:    ictx.History.CurrentPhase,
		TotalPhases:   ictx.History.TotalPhases,
		QuestionCount: ictx.TargetQuestionCount,
		Model:         a.config.Model,
		Temperature:   a.config.Temperature,
		MaxTokens:     a.config.MaxTokens,
		Parameters:    a.config.Parameters,
		Context: questionContext{
			Candidate:         ictx.Candidate,
			Role:              ictx.Role,
			Company:           ictx.Company,
			PreviousQuestions: previous,
		},
	}

	resp, err := a.client.Request(ctx, a.Path(), foundry.RequestOptions{Method: http.MethodPost, Body: body})
	if err != nil {
		return nil, fmt.Errorf("question request failed: %w", err)
	}

	var out questionResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("malformed %s agent response: %w", a.agentType, err)
	}

	questions := make([]interview.Question, 0, len(out.Questions))
	for _, q := range out.Questions {
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.AgentType == "" {
			q.AgentType = a.agentType
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%s agent returned no questions", a.agentType)
	}

	logx.Debug(ctx, "agent", "%s agent returned %d questions (asked for %d)",
		a.agentType, len(questions), ictx.TargetQuestionCount)
	return questions, nil
}
