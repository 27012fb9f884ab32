package orchestrator

import (
	"strings"

	"github.com/google/uuid"

	"interviewer/pkg/interview"
)

// Standard phase ids.
const (
	PhaseTechnical  = "technical"
	PhaseBehavioral = "behavioral"
	PhaseIndustry   = "industry"
)

// StandardSessionParams parameterizes CreateStandardSession.
type StandardSessionParams struct {
	SessionID       string                     `json:"session_id,omitempty"`
	Candidate       interview.CandidateProfile `json:"candidate"`
	Role            interview.TargetRole       `json:"role"`
	Company         interview.CompanyInfo      `json:"company"`
	ExcludeIndustry bool                       `json:"exclude_industry,omitempty"`
	Metadata        map[string]string          `json:"metadata,omitempty"`
}

// CreateStandardSession builds the conventional technical, behavioral and
// optional industry session. Entry-level candidates get fewer technical
// questions at a lower temperature, and the industry phase requires at least
// mid-level experience.
func (o *AgentOrchestrator) CreateStandardSession(params StandardSessionParams) interview.SessionConfig {
	sessionID := strings.TrimSpace(params.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	entry := strings.EqualFold(string(params.Candidate.ExperienceLevel), string(interview.LevelEntry))
	technicalCount, temperature := 6, 0.7
	if entry {
		technicalCount, temperature = 4, 0.3
	}

	phases := []interview.Phase{
		{
			ID:            PhaseTechnical,
			Name:          "Technical Assessment",
			AgentType:     interview.AgentTechnical,
			AgentConfig:   &interview.AgentConfig{Temperature: interview.Float64(temperature)},
			QuestionCount: technicalCount,
		},
		{
			ID:            PhaseBehavioral,
			Name:          "Behavioral Assessment",
			AgentType:     interview.AgentBehavioral,
			QuestionCount: 4,
		},
	}

	if !params.ExcludeIndustry {
		cond := &interview.SkipConditions{MinExperienceLevel: interview.LevelMid}
		if industry := strings.TrimSpace(params.Company.Industry); industry != "" {
			cond.RequiredIndustries = []string{industry}
		}
		phases = append(phases, interview.Phase{
			ID:             PhaseIndustry,
			Name:           "Industry Knowledge",
			AgentType:      interview.AgentIndustry,
			QuestionCount:  3,
			Optional:       true,
			SkipConditions: cond,
		})
	}

	return interview.SessionConfig{
		SessionID: sessionID,
		Candidate: params.Candidate,
		Role:      params.Role,
		Company:   params.Company,
		Phases:    phases,
		Metadata:  cloneMetadata(params.Metadata),
	}
}
