package costs

import (
	"context"
	"testing"

	"screenplay-backend/internal/providers"
)

func TestServiceCanSpend(t *testing.T) {
	svc := NewService(50)
	ctx := context.Background()

	svc.Record(ctx, Entry{AnalysisID: "a1", UserID: "user-1", Provider: "anthropic", CostUSD: 49.50, Outcome: "ok"})

	ok, spent, err := svc.CanSpend(ctx, "user-1", 0.25)
	if err != nil {
		t.Fatalf("can spend: %v", err)
	}
	if !ok {
		t.Fatal("expected spend under ceiling to be allowed")
	}
	if spent != 49.50 {
		t.Fatalf("expected spent 49.50, got %f", spent)
	}

	ok, _, err = svc.CanSpend(ctx, "user-1", 1.00)
	if err != nil {
		t.Fatalf("can spend: %v", err)
	}
	if ok {
		t.Fatal("expected spend over ceiling to be refused")
	}
}

func TestServiceCeilingIsPerUser(t *testing.T) {
	svc := NewService(50)
	ctx := context.Background()

	// One user exhausting their budget must not touch anyone else's.
	svc.Record(ctx, Entry{AnalysisID: "a1", UserID: "user-1", Provider: "anthropic", CostUSD: 50, Outcome: "ok"})

	ok, _, err := svc.CanSpend(ctx, "user-1", 0.25)
	if err != nil {
		t.Fatalf("can spend: %v", err)
	}
	if ok {
		t.Fatal("expected user-1 over their ceiling")
	}

	ok, spent, err := svc.CanSpend(ctx, "user-2", 0.25)
	if err != nil {
		t.Fatalf("can spend: %v", err)
	}
	if !ok {
		t.Fatal("expected user-2 unaffected by user-1's spend")
	}
	if spent != 0 {
		t.Fatalf("expected user-2 month spend 0, got %f", spent)
	}

	summary, err := svc.Summary(ctx, "user-2")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Calls != 0 || summary.MonthUSD != 0 {
		t.Fatalf("expected empty summary for user-2, got %+v", summary)
	}
}

func TestServiceSummaryByProvider(t *testing.T) {
	svc := NewService(50)
	ctx := context.Background()

	svc.Record(ctx, Entry{AnalysisID: "a1", UserID: "user-1", Provider: "anthropic", PromptTokens: 1000, CompletionTokens: 200, CostUSD: 0.30, Outcome: "ok"})
	svc.Record(ctx, Entry{AnalysisID: "a1", UserID: "user-1", Provider: "openai", PromptTokens: 500, CompletionTokens: 100, CostUSD: 0.10, Outcome: "ok"})
	// Failed calls still land in the ledger.
	svc.Record(ctx, Entry{AnalysisID: "a1", UserID: "user-1", Provider: "xai", CostUSD: 0, Outcome: "timeout"})

	summary, err := svc.Summary(ctx, "user-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Calls != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", summary.Calls)
	}
	if summary.MonthUSD != 0.40 {
		t.Fatalf("expected 0.40 month spend, got %f", summary.MonthUSD)
	}
	if summary.ByProvider["anthropic"] != 0.30 {
		t.Fatalf("unexpected anthropic spend: %f", summary.ByProvider["anthropic"])
	}
	if summary.TotalTokens != 1800 {
		t.Fatalf("expected 1800 tokens, got %d", summary.TotalTokens)
	}
}

func TestEstimateCost(t *testing.T) {
	usage := providers.Usage{PromptTokens: 1_000_000, CompletionTokens: 100_000}
	got := EstimateCost("anthropic", usage)
	want := 3.00 + 1.50
	if got != want {
		t.Fatalf("expected %f, got %f", want, got)
	}

	// Unknown providers fall back to the default rate instead of zero,
	// keeping the ceiling conservative.
	if EstimateCost("mystery", usage) == 0 {
		t.Fatal("unknown provider should not cost zero")
	}
}

func TestEstimateAnalysisCost(t *testing.T) {
	small := EstimateAnalysisCost(10_000)
	large := EstimateAnalysisCost(500_000)
	if small <= 0 {
		t.Fatalf("expected positive estimate, got %f", small)
	}
	if large <= small {
		t.Fatalf("longer scripts should cost more: %f vs %f", large, small)
	}
}
