package providers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type scriptedAdapter struct {
	name  string
	calls int
	errs  []error
}

func (s *scriptedAdapter) Name() string { return s.name }

func (s *scriptedAdapter) Analyze(ctx context.Context, input Input) (json.RawMessage, Usage, error) {
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	if err != nil {
		return nil, Usage{PromptTokens: 1}, err
	}
	return json.RawMessage(`{"score":8}`), Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, nil
}

func TestRetrying_RetriesRateLimit(t *testing.T) {
	base := &scriptedAdapter{name: "test", errs: []error{
		NewCallError("test", KindRateLimited, 429, errors.New("slow down")),
	}}
	r := Retrying{Base: base}

	raw, usage, err := r.Analyze(context.Background(), Input{ScriptText: "x"})
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", base.calls)
	}
	if string(raw) != `{"score":8}` {
		t.Fatalf("unexpected payload: %s", raw)
	}
	// Tokens from both attempts are accumulated for the cost ledger.
	if usage.PromptTokens != 2 {
		t.Fatalf("expected accumulated prompt tokens, got %d", usage.PromptTokens)
	}
}

func TestRetrying_NoRetryOnAuthFailure(t *testing.T) {
	base := &scriptedAdapter{name: "test", errs: []error{
		NewCallError("test", KindAuthFailed, 401, errors.New("bad key")),
	}}
	r := Retrying{Base: base}

	_, _, err := r.Analyze(context.Background(), Input{ScriptText: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected single call, got %d", base.calls)
	}
}

func TestRetrying_SingleRetryOnly(t *testing.T) {
	base := &scriptedAdapter{name: "test", errs: []error{
		NewCallError("test", KindServerError, 500, errors.New("boom")),
		NewCallError("test", KindServerError, 500, errors.New("boom again")),
	}}
	r := Retrying{Base: base}

	_, _, err := r.Analyze(context.Background(), Input{ScriptText: "x"})
	if err == nil {
		t.Fatal("expected error after exhausted retry")
	}
	if base.calls != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", base.calls)
	}
}

func TestFailureKind(t *testing.T) {
	if kind := FailureKind(NewCallError("p", KindTimeout, 0, errors.New("t"))); kind != KindTimeout {
		t.Fatalf("expected timeout, got %s", kind)
	}
	if kind := FailureKind(errors.New("plain")); kind != KindServerError {
		t.Fatalf("expected server_error fallback, got %s", kind)
	}
	if kind := FailureKind(context.DeadlineExceeded); kind != KindTimeout {
		t.Fatalf("expected timeout for deadline, got %s", kind)
	}
}

func TestExtractJSONObject(t *testing.T) {
	raw, ok := ExtractJSONObject("```json\n{\"score\": 7}\n```")
	if !ok {
		t.Fatal("expected fenced JSON to extract")
	}
	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Score != 7 {
		t.Fatalf("unexpected payload: %s (%v)", raw, err)
	}

	raw, ok = ExtractJSONObject("Here is my verdict: {\"score\": 6.5} hope it helps")
	if !ok {
		t.Fatal("expected embedded JSON to extract")
	}
	if string(raw) != `{"score": 6.5}` {
		t.Fatalf("unexpected payload: %s", raw)
	}

	if _, ok := ExtractJSONObject("no json here"); ok {
		t.Fatal("expected extraction to fail")
	}
}
