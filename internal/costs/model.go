package costs

import "time"

// Entry is one append-only ledger row recording a provider call's cost.
// Failed calls are recorded too, with whatever tokens were consumed.
type Entry struct {
	ID               int64     `json:"id"`
	AnalysisID       string    `json:"analysisId"`
	UserID           string    `json:"userId"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	CostUSD          float64   `json:"costUsd"`
	LatencyMs        int64     `json:"latencyMs"`
	Outcome          string    `json:"outcome"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Summary is the month-to-date spend snapshot.
type Summary struct {
	MonthUSD     float64            `json:"monthUsd"`
	CeilingUSD   float64            `json:"ceilingUsd"`
	RemainingUSD float64            `json:"remainingUsd"`
	Calls        int                `json:"calls"`
	TotalTokens  int                `json:"totalTokens"`
	ByProvider   map[string]float64 `json:"byProvider"`
}
