package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"screenplay-backend/internal/shared/telemetry"
)

// retryBaseDelay is the wait before the single retry attempt.
const retryBaseDelay = 300 * time.Millisecond

// Retrying wraps an Adapter with a single retry on transient failures.
// Rate limits and provider-side 5xx get one more attempt; timeouts, auth
// failures and malformed payloads do not.
type Retrying struct {
	Base       Adapter
	RequestID  string
	AnalysisID string
}

func (r Retrying) Name() string { return r.Base.Name() }

func (r Retrying) Analyze(ctx context.Context, input Input) (json.RawMessage, Usage, error) {
	raw, usage, err := r.Base.Analyze(ctx, input)
	if err == nil || !shouldRetry(err) {
		return raw, usage, err
	}

	telemetry.Info("provider.retry", map[string]any{
		"provider":    r.Base.Name(),
		"request_id":  r.RequestID,
		"analysis_id": r.AnalysisID,
		"reason":      FailureKind(err),
	})

	select {
	case <-time.After(retryBaseDelay):
	case <-ctx.Done():
		return nil, usage, err
	}

	raw2, usage2, err2 := r.Base.Analyze(ctx, input)
	usage2.PromptTokens += usage.PromptTokens
	usage2.CompletionTokens += usage.CompletionTokens
	usage2.TotalTokens += usage.TotalTokens
	return raw2, usage2, err2
}

func shouldRetry(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return false
}

var _ Adapter = Retrying{}
