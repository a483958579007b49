package analyses

import (
	"context"
	"time"
)

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	// UpdateStatus moves the job between pipeline statuses without touching
	// results.
	UpdateStatus(ctx context.Context, analysisID, status string) error
	// Finalize writes the terminal state: result and provider records for
	// completed jobs, error fields for failed ones.
	Finalize(ctx context.Context, analysisID, status string, result *Report, providerResults []ProviderResult, errorCode, errorMessage *string, completedAt time.Time) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
}
