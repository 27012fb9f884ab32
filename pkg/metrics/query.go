package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// SessionCost is the Prometheus-side view of a session's estimated usage.
type SessionCost struct {
	SessionID string             `json:"session_id"`
	Tokens    int64              `json:"tokens"`
	Cost      float64            `json:"cost"`
	ByAgent   map[string]float64 `json:"cost_by_agent,omitempty"`
}

// QueryService reads aggregated interview metrics back from Prometheus.
type QueryService struct {
	queryAPI v1.API
}

// NewQueryService creates a query service for the Prometheus server at prometheusURL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client)}, nil
}

// GetSessionCost sums cost and tokens recorded for sessionID across all agent types.
func (q *QueryService) GetSessionCost(ctx context.Context, sessionID string) (*SessionCost, error) {
	result := &SessionCost{SessionID: sessionID, ByAgent: make(map[string]float64)}

	tokens, err := q.scalar(ctx, fmt.Sprintf(`sum(%s{session_id=%q})`, metricPhaseTokens, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query session tokens: %w", err)
	}
	result.Tokens = int64(tokens)

	byAgent, err := q.query(ctx, fmt.Sprintf(`sum by (agent_type) (%s{session_id=%q})`, metricPhaseCost, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query session cost: %w", err)
	}
	if vector, ok := byAgent.(model.Vector); ok {
		for _, sample := range vector {
			agentType := string(sample.Metric["agent_type"])
			result.ByAgent[agentType] = float64(sample.Value)
			result.Cost += float64(sample.Value)
		}
	}

	return result, nil
}

func (q *QueryService) query(ctx context.Context, promQL string) (model.Value, error) {
	value, _, err := q.queryAPI.Query(ctx, promQL, time.Now())
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by callers
	}
	return value, nil
}

func (q *QueryService) scalar(ctx context.Context, promQL string) (float64, error) {
	value, err := q.query(ctx, promQL)
	if err != nil {
		return 0, err
	}
	if vector, ok := value.(model.Vector); ok && len(vector) > 0 {
		return float64(vector[0].Value), nil
	}
	return 0, nil
}
