// Package progress tracks live pipeline state for in-flight analyses.
package progress

import (
	"context"
	"time"
)

// Stages reported during an analysis run.
const (
	StageStarting   = "starting"
	StageExtracting = "extracting"
	StageDetecting  = "detecting_source"
	StageAnalyzing  = "analyzing"
	StageMerging    = "merging"
	StageSaving     = "saving"
	StageComplete   = "complete"
	StageFailed     = "failed"
)

// TTL is how long a terminal progress record stays readable after the
// pipeline finishes.
const TTL = 10 * time.Minute

// State is one progress snapshot for an analysis.
type State struct {
	AnalysisID string    `json:"analysisId"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage"`
	Percent    int       `json:"percent"`
	Message    string    `json:"message,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Terminal reports whether no further updates will follow.
func (s State) Terminal() bool {
	return s.Stage == StageComplete || s.Stage == StageFailed
}

// Store persists progress snapshots. Implementations must keep Percent
// monotonic: a Set carrying a lower percent than the stored snapshot keeps
// the stored value.
type Store interface {
	Set(ctx context.Context, state State) error
	Get(ctx context.Context, analysisID string) (State, bool, error)
	Delete(ctx context.Context, analysisID string) error
}
