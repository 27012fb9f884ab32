package interview

import (
	"interviewer/pkg/utils"
)

// Usage is an approximate token and cost figure for one phase.
type Usage struct {
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// Estimator approximates the usage of a completed phase. Estimates feed
// billing previews only; they are not metered values.
type Estimator interface {
	Estimate(agentType AgentType, questions []Question) Usage
}

// Rate is the per-agent-type pricing used by RateTable.
type Rate struct {
	TokensPerQuestion int
	CostPer1KTokens   float64
}

// RateTable estimates usage as a fixed token count per accepted question.
type RateTable map[AgentType]Rate

// DefaultRates are placeholder rates, not measured costs.
func DefaultRates() RateTable {
	return RateTable{
		AgentTechnical:  {TokensPerQuestion: 500, CostPer1KTokens: 0.002},
		AgentBehavioral: {TokensPerQuestion: 300, CostPer1KTokens: 0.002},
		AgentIndustry:   {TokensPerQuestion: 400, CostPer1KTokens: 0.002},
	}
}

// Estimate implements Estimator. Unknown agent types cost nothing.
func (t RateTable) Estimate(agentType AgentType, questions []Question) Usage {
	rate, ok := t[agentType]
	if !ok {
		return Usage{}
	}
	tokens := rate.TokensPerQuestion * len(questions)
	return Usage{Tokens: tokens, Cost: float64(tokens) / 1000 * rate.CostPer1KTokens}
}

// TokenEstimator counts the tokens of the generated text plus a fixed prompt
// overhead per question, priced from Rates.
type TokenEstimator struct {
	Counter        *utils.TokenCounter
	Rates          RateTable
	PromptOverhead int // Tokens charged per question for the request side
}

// NewTokenEstimator creates a tokenizer-backed estimator for model.
func NewTokenEstimator(model string, rates RateTable) (*TokenEstimator, error) {
	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		return nil, err
	}
	if rates == nil {
		rates = DefaultRates()
	}
	return &TokenEstimator{Counter: counter, Rates: rates, PromptOverhead: 150}, nil
}

// Estimate implements Estimator.
func (e *TokenEstimator) Estimate(agentType AgentType, questions []Question) Usage {
	tokens := 0
	for i := range questions {
		tokens += e.PromptOverhead
		tokens += e.Counter.CountTokens(questions[i].Text)
		tokens += e.Counter.CountAll(questions[i].FollowUps...)
	}
	rate := e.Rates[agentType]
	return Usage{Tokens: tokens, Cost: float64(tokens) / 1000 * rate.CostPer1KTokens}
}
