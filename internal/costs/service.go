package costs

import (
	"context"
	"database/sql"
	"time"

	"screenplay-backend/internal/shared/telemetry"
)

// Service manages the cost ledger and the advisory monthly spend ceiling.
type Service struct {
	store      store
	CeilingUSD float64
}

// NewService constructs a Service with an in-memory ledger.
func NewService(ceilingUSD float64) *Service {
	return &Service{store: newMemoryStore(), CeilingUSD: ceilingUSD}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(db *sql.DB, ceilingUSD float64) *Service {
	return &Service{store: NewPGStore(db), CeilingUSD: ceilingUSD}
}

// Record appends one ledger entry. Recording is best-effort: a ledger
// write failure must never fail the analysis that produced it.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if err := s.store.Record(ctx, entry); err != nil {
		telemetry.Error("costs.record_failed", map[string]any{
			"analysis_id": entry.AnalysisID,
			"provider":    entry.Provider,
			"err":         err.Error(),
		})
	}
}

// CanSpend reports whether an analysis estimated at estimateUSD fits under
// the user's monthly ceiling. The check is advisory: racing admissions may
// overshoot slightly, which is acceptable for a soft budget.
func (s *Service) CanSpend(ctx context.Context, userID string, estimateUSD float64) (bool, float64, error) {
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	return summary.MonthUSD+estimateUSD <= s.CeilingUSD, summary.MonthUSD, nil
}

// Summary returns one user's month-to-date spend snapshot. The ceiling
// applies per user, so another user's entries never count here.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	entries, err := s.store.MonthToDate(ctx, userID, time.Now().UTC())
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		CeilingUSD: s.CeilingUSD,
		ByProvider: make(map[string]float64),
	}
	for _, e := range entries {
		summary.MonthUSD += e.CostUSD
		summary.Calls++
		summary.TotalTokens += e.PromptTokens + e.CompletionTokens
		summary.ByProvider[e.Provider] += e.CostUSD
	}
	summary.RemainingUSD = s.CeilingUSD - summary.MonthUSD
	if summary.RemainingUSD < 0 {
		summary.RemainingUSD = 0
	}
	return summary, nil
}

// ListByAnalysis returns the ledger entries for one analysis.
func (s *Service) ListByAnalysis(ctx context.Context, analysisID string) ([]Entry, error) {
	return s.store.ListByAnalysis(ctx, analysisID)
}
