package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"interviewer/pkg/interview"
	"interviewer/pkg/metrics"
)

// ErrResultNotFound is returned when no result is stored for a session id.
var ErrResultNotFound = errors.New("session result not found")

// ResultSummary is one row of ListResults.
//
//nolint:govet // struct alignment optimization not critical for this type.
type ResultSummary struct {
	SessionID       string    `json:"session_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Cancelled       bool      `json:"cancelled"`
	PhasesCompleted int       `json:"phases_completed"`
	PhasesSkipped   int       `json:"phases_skipped"`
	PhasesFailed    int       `json:"phases_failed"`
	SuccessRate     float64   `json:"success_rate"`
	EstimatedTokens int       `json:"estimated_tokens"`
	EstimatedCost   float64   `json:"estimated_cost"`
	Questions       int       `json:"questions"`
}

// PhaseRecord is the stored outcome of one phase.
//
//nolint:govet // struct alignment optimization not critical for this type.
type PhaseRecord struct {
	SessionID string        `json:"session_id"`
	Index     int           `json:"index"`
	PhaseID   string        `json:"phase_id"`
	AgentType string        `json:"agent_type"`
	Outcome   string        `json:"outcome"`
	Questions int           `json:"questions"`
	Tokens    int           `json:"tokens"`
	Cost      float64       `json:"cost"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// SaveResult inserts or replaces the result of a session.
func (s *Store) SaveResult(ctx context.Context, result *interview.SessionResult) error {
	if result == nil || result.SessionID == "" {
		return fmt.Errorf("cannot save result without a session id")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result %s: %w", result.SessionID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m := result.Metrics
	_, err = tx.ExecContext(ctx, `
		INSERT INTO session_results (
			session_id, started_at, finished_at, cancelled,
			phases_completed, phases_skipped, phases_failed, success_rate,
			estimated_tokens, estimated_cost, question_count, result_json, saved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			cancelled = excluded.cancelled,
			phases_completed = excluded.phases_completed,
			phases_skipped = excluded.phases_skipped,
			phases_failed = excluded.phases_failed,
			success_rate = excluded.success_rate,
			estimated_tokens = excluded.estimated_tokens,
			estimated_cost = excluded.estimated_cost,
			question_count = excluded.question_count,
			result_json = excluded.result_json,
			saved_at = excluded.saved_at
	`, result.SessionID, result.StartedAt.UnixMilli(), result.FinishedAt.UnixMilli(), result.Cancelled,
		m.PhasesCompleted, m.PhasesSkipped, m.PhasesFailed, m.SuccessRate,
		m.EstimatedTokens, m.EstimatedCost, len(result.Questions), string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert result %s: %w", result.SessionID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM phase_results WHERE session_id = ?`, result.SessionID); err != nil {
		return fmt.Errorf("failed to clear phases of %s: %w", result.SessionID, err)
	}

	for i := range result.PhaseResults {
		pr := &result.PhaseResults[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO phase_results (
				session_id, phase_index, phase_id, agent_type, outcome,
				question_count, tokens, cost, duration_ms, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, result.SessionID, i, pr.Phase.ID, string(pr.Phase.AgentType), phaseOutcome(pr),
			len(pr.Questions), pr.Tokens, pr.Cost, pr.ExecutionTime.Milliseconds(), pr.Error)
		if err != nil {
			return fmt.Errorf("failed to insert phase %s of %s: %w", pr.Phase.ID, result.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result %s: %w", result.SessionID, err)
	}
	s.logger.Debug("Saved result %s (%d phases)", result.SessionID, len(result.PhaseResults))
	return nil
}

func phaseOutcome(pr *interview.PhaseResult) string {
	switch {
	case pr.Skipped:
		return metrics.OutcomeSkipped
	case pr.Success:
		return metrics.OutcomeCompleted
	default:
		return metrics.OutcomeFailed
	}
}

// GetResult returns the stored result of sessionID.
func (s *Store) GetResult(ctx context.Context, sessionID string) (*interview.SessionResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM session_results WHERE session_id = ?`, sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", sessionID, err)
	}

	var result interview.SessionResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("stored result %s is corrupt: %w", sessionID, err)
	}
	return &result, nil
}

// ListResults returns summaries of stored sessions, most recent first.
// A limit of zero or less returns every row.
func (s *Store) ListResults(ctx context.Context, limit int) ([]ResultSummary, error) {
	query := `
		SELECT session_id, started_at, finished_at, cancelled,
			phases_completed, phases_skipped, phases_failed, success_rate,
			estimated_tokens, estimated_cost, question_count
		FROM session_results
		ORDER BY started_at DESC, session_id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []ResultSummary{}
	for rows.Next() {
		var (
			sum               ResultSummary
			started, finished int64
		)
		if err := rows.Scan(&sum.SessionID, &started, &finished, &sum.Cancelled,
			&sum.PhasesCompleted, &sum.PhasesSkipped, &sum.PhasesFailed, &sum.SuccessRate,
			&sum.EstimatedTokens, &sum.EstimatedCost, &sum.Questions); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		sum.StartedAt = time.UnixMilli(started)
		sum.FinishedAt = time.UnixMilli(finished)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate result rows: %w", err)
	}
	return summaries, nil
}

// PhaseRecords returns the stored phases of sessionID in execution order.
func (s *Store) PhaseRecords(ctx context.Context, sessionID string) ([]PhaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, phase_index, phase_id, agent_type, outcome,
			question_count, tokens, cost, duration_ms, error
		FROM phase_results
		WHERE session_id = ?
		ORDER BY phase_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phases of %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var records []PhaseRecord
	for rows.Next() {
		var (
			rec        PhaseRecord
			durationMS int64
		)
		if err := rows.Scan(&rec.SessionID, &rec.Index, &rec.PhaseID, &rec.AgentType, &rec.Outcome,
			&rec.Questions, &rec.Tokens, &rec.Cost, &durationMS, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan phase row: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate phase rows: %w", err)
	}
	return records, nil
}

// DeleteResult removes a stored session and its phases.
func (s *Store) DeleteResult(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_results WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete result %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrResultNotFound, sessionID)
	}
	return nil
}
