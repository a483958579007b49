package costs

import (
	"context"
	"database/sql"
	"time"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed ledger store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Record(ctx context.Context, entry Entry) error {
	var analysisID any
	if entry.AnalysisID != "" {
		analysisID = entry.AnalysisID
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO api_usage (analysis_id, user_id, provider, model, prompt_tokens, completion_tokens, cost_usd, latency_ms, outcome)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		analysisID, entry.UserID, entry.Provider, entry.Model,
		entry.PromptTokens, entry.CompletionTokens, entry.CostUSD, entry.LatencyMs, entry.Outcome)
	return err
}

func (s *pgStore) MonthToDate(ctx context.Context, userID string, now time.Time) ([]Entry, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, COALESCE(analysis_id::text, ''), user_id, provider, model, prompt_tokens, completion_tokens, cost_usd, latency_ms, outcome, created_at
FROM api_usage WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at`, userID, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *pgStore) ListByAnalysis(ctx context.Context, analysisID string) ([]Entry, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, COALESCE(analysis_id::text, ''), user_id, provider, model, prompt_tokens, completion_tokens, cost_usd, latency_ms, outcome, created_at
FROM api_usage WHERE analysis_id = $1 ORDER BY created_at`, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AnalysisID, &e.UserID, &e.Provider, &e.Model,
			&e.PromptTokens, &e.CompletionTokens, &e.CostUSD, &e.LatencyMs, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
