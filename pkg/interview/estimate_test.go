package interview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRatesCoverEveryAgentType(t *testing.T) {
	rates := DefaultRates()
	for _, at := range AllAgentTypes() {
		rate, ok := rates[at]
		require.True(t, ok, "missing rate for %s", at)
		assert.Positive(t, rate.TokensPerQuestion)
		assert.Positive(t, rate.CostPer1KTokens)
	}
	assert.Len(t, rates, len(AllAgentTypes()))
}

func TestRateTableEstimate(t *testing.T) {
	table := RateTable{AgentTechnical: {TokensPerQuestion: 1000, CostPer1KTokens: 0.5}}

	usage := table.Estimate(AgentTechnical, make([]Question, 3))
	assert.Equal(t, 3000, usage.Tokens)
	assert.InDelta(t, 1.5, usage.Cost, 1e-9)

	assert.Equal(t, Usage{}, table.Estimate(AgentBehavioral, make([]Question, 3)))
	assert.Equal(t, Usage{}, table.Estimate(AgentTechnical, nil))
}

func TestTokenEstimator(t *testing.T) {
	est, err := NewTokenEstimator("gpt-4", nil)
	require.NoError(t, err)

	short := est.Estimate(AgentTechnical, []Question{{Text: "What is a goroutine?"}})
	long := est.Estimate(AgentTechnical, []Question{
		{Text: "What is a goroutine?"},
		{Text: "Explain how the Go scheduler multiplexes goroutines onto OS threads.", FollowUps: []string{"What is GOMAXPROCS?"}},
	})

	assert.Greater(t, short.Tokens, est.PromptOverhead)
	assert.Greater(t, long.Tokens, short.Tokens)
	assert.Greater(t, long.Cost, short.Cost)
	assert.Equal(t, Usage{}, est.Estimate(AgentIndustry, nil))
}
