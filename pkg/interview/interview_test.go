package interview

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExperienceLevelOrdering(t *testing.T) {
	levels := []ExperienceLevel{LevelEntry, LevelMid, LevelSenior, LevelExecutive}
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i-1].Rank(), levels[i].Rank(), "%s should rank below %s", levels[i-1], levels[i])
	}
	assert.Equal(t, 2, ExperienceLevel("SENIOR").Rank())
	assert.Equal(t, -1, ExperienceLevel("intern").Rank())
	assert.False(t, ExperienceLevel("").Valid())
}

func TestParseAgentType(t *testing.T) {
	for _, at := range AllAgentTypes() {
		parsed, err := ParseAgentType(" " + string(at) + " ")
		require.NoError(t, err)
		assert.Equal(t, at, parsed)
	}

	parsed, err := ParseAgentType("Behavioral")
	require.NoError(t, err)
	assert.Equal(t, AgentBehavioral, parsed)

	_, err = ParseAgentType("psychometric")
	assert.Error(t, err)
}

func TestSkipReason(t *testing.T) {
	gated := func(cond SkipConditions) *Phase {
		return &Phase{ID: "p", AgentType: AgentIndustry, QuestionCount: 3, Optional: true, SkipConditions: &cond}
	}

	tests := []struct {
		name     string
		phase    *Phase
		level    ExperienceLevel
		industry string
		category string
		skip     bool
	}{
		{"required phase never skips", &Phase{ID: "p", SkipConditions: &SkipConditions{MinExperienceLevel: LevelExecutive}}, LevelEntry, "", "", false},
		{"optional without conditions runs", &Phase{ID: "p", Optional: true}, LevelEntry, "", "", false},
		{"below minimum level", gated(SkipConditions{MinExperienceLevel: LevelMid}), LevelEntry, "", "", true},
		{"at minimum level", gated(SkipConditions{MinExperienceLevel: LevelMid}), LevelMid, "", "", false},
		{"above minimum level", gated(SkipConditions{MinExperienceLevel: LevelMid}), LevelExecutive, "", "", false},
		{"unknown candidate level", gated(SkipConditions{MinExperienceLevel: LevelEntry}), "", "", "", true},
		{"industry substring match", gated(SkipConditions{RequiredIndustries: []string{"fintech"}}), LevelMid, "Global FinTech Services", "", false},
		{"industry any of set", gated(SkipConditions{RequiredIndustries: []string{"health", "bank"}}), LevelMid, "Retail Banking", "", false},
		{"industry mismatch", gated(SkipConditions{RequiredIndustries: []string{"healthcare"}}), LevelMid, "Gaming", "", true},
		{"industry missing", gated(SkipConditions{RequiredIndustries: []string{"healthcare"}}), LevelMid, "", "", true},
		{"role category equal fold", gated(SkipConditions{RoleCategories: []string{"Engineering"}}), LevelMid, "", "engineering", false},
		{"role category mismatch", gated(SkipConditions{RoleCategories: []string{"engineering"}}), LevelMid, "", "engineering management", true},
		{"all conditions must hold", gated(SkipConditions{MinExperienceLevel: LevelMid, RoleCategories: []string{"sales"}}), LevelSenior, "", "engineering", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := SkipReason(tt.phase,
				&CandidateProfile{ExperienceLevel: tt.level},
				&TargetRole{Category: tt.category},
				&CompanyInfo{Industry: tt.industry})
			if tt.skip {
				assert.NotEmpty(t, reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

func TestSessionConfigValidate(t *testing.T) {
	valid := func() SessionConfig {
		return SessionConfig{
			SessionID: "s1",
			Candidate: CandidateProfile{ExperienceLevel: LevelMid},
			Phases: []Phase{
				{ID: "tech", AgentType: AgentTechnical, QuestionCount: 3},
				{ID: "beh", AgentType: AgentBehavioral, QuestionCount: 2},
			},
		}
	}
	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	tests := []struct {
		name   string
		mutate func(*SessionConfig)
	}{
		{"empty id", func(c *SessionConfig) { c.SessionID = " " }},
		{"no phases", func(c *SessionConfig) { c.Phases = nil }},
		{"unknown level", func(c *SessionConfig) { c.Candidate.ExperienceLevel = "guru" }},
		{"phase without id", func(c *SessionConfig) { c.Phases[0].ID = "" }},
		{"duplicate phase", func(c *SessionConfig) { c.Phases[1].ID = "tech" }},
		{"unknown agent", func(c *SessionConfig) { c.Phases[0].AgentType = "oracle" }},
		{"zero questions", func(c *SessionConfig) { c.Phases[1].QuestionCount = 0 }},
		{"bad min level", func(c *SessionConfig) {
			c.Phases[1].SkipConditions = &SkipConditions{MinExperienceLevel: "principal"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSession), "expected ErrInvalidSession, got %v", err)
		})
	}
}

func TestParseSessionYAML(t *testing.T) {
	data := []byte(`
candidate:
  name: Ada
  experience_level: senior
  skills: [go, postgres]
role:
  title: Staff Engineer
  category: engineering
company:
  name: Acme
  industry: Logistics
phases:
  - id: technical
    agent_type: Technical
    question_count: 5
    agent_config:
      temperature: 0.4
  - id: industry
    name: Industry Knowledge
    agent_type: industry
    question_count: 2
    optional: true
    skip_conditions:
      min_experience_level: mid
      required_industries: [logistics]
`)

	cfg, err := ParseSessionYAML(data)
	require.NoError(t, err)
	assert.Empty(t, cfg.SessionID)
	assert.Equal(t, LevelSenior, cfg.Candidate.ExperienceLevel)
	require.Len(t, cfg.Phases, 2)
	assert.Equal(t, AgentTechnical, cfg.Phases[0].AgentType)
	assert.Equal(t, "technical", cfg.Phases[0].Name)
	require.NotNil(t, cfg.Phases[0].AgentConfig)
	require.NotNil(t, cfg.Phases[0].AgentConfig.Temperature)
	assert.InDelta(t, 0.4, *cfg.Phases[0].AgentConfig.Temperature, 1e-9)
	assert.Equal(t, "Industry Knowledge", cfg.Phases[1].Name)
	require.NotNil(t, cfg.Phases[1].SkipConditions)
	assert.Equal(t, LevelMid, cfg.Phases[1].SkipConditions.MinExperienceLevel)
}

func TestParseSessionYAMLErrors(t *testing.T) {
	_, err := ParseSessionYAML([]byte("  \n"))
	assert.Error(t, err)

	_, err = ParseSessionYAML([]byte("phases:\n  - id: x\n    agent_type: oracle\n    question_count: 1\n"))
	assert.Error(t, err)

	_, err = ParseSessionYAML([]byte("phases: []\n"))
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestLoadSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_id: from-file\nphases:\n  - id: b\n    agent_type: behavioral\n    question_count: 2\n"), 0o600))

	cfg, err := LoadSessionFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.SessionID)
	require.NoError(t, cfg.Validate())

	_, err = LoadSessionFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSessionStateCloneIsDeep(t *testing.T) {
	state := SessionState{
		SessionID: "s",
		Questions: []Question{{ID: "q1"}},
		Metadata:  map[string]string{"k": "v"},
	}
	clone := state.Clone()
	clone.Questions[0].ID = "changed"
	clone.Metadata["k"] = "changed"

	assert.Equal(t, "q1", state.Questions[0].ID)
	assert.Equal(t, "v", state.Metadata["k"])
}
