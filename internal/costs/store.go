package costs

import (
	"context"
	"time"
)

type store interface {
	// Record appends one ledger entry. The ledger is append-only; entries
	// are never updated or deleted.
	Record(ctx context.Context, entry Entry) error
	// MonthToDate returns one user's entries since the start of the given month.
	MonthToDate(ctx context.Context, userID string, now time.Time) ([]Entry, error)
	// ListByAnalysis returns the entries recorded for one analysis.
	ListByAnalysis(ctx context.Context, analysisID string) ([]Entry, error)
}
