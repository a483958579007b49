package analyses

import (
	"encoding/json"
	"time"
)

// Job statuses. Completed and failed are terminal; a job never leaves them.
const (
	StatusPending    = "pending"
	StatusExtracting = "extracting"
	StatusAnalyzing  = "analyzing"
	StatusMerging    = "merging"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Analysis represents one screenplay analysis job.
type Analysis struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	Title           string           `json:"title"`
	FileKey         string           `json:"fileKey,omitempty"`
	Status          string           `json:"status"`
	ErrorCode       *string          `json:"errorCode,omitempty"`
	ErrorMessage    *string          `json:"errorMessage,omitempty"`
	Result          *Report          `json:"result,omitempty"`
	ProviderResults []ProviderResult `json:"providerResults,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
}

// Terminal reports whether the job reached a final status.
func (a Analysis) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// ProviderResult records the outcome of one provider call. Once the job is
// terminal these records are immutable.
type ProviderResult struct {
	Provider    string          `json:"provider"`
	Status      string          `json:"status"`
	FailureKind string          `json:"failureKind,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	DurationMs  int64           `json:"durationMs"`
}

// Provider result statuses.
const (
	ProviderOK     = "ok"
	ProviderFailed = "failed"
)
