package analyses

import (
	"encoding/json"
	"testing"

	"screenplay-backend/internal/providers"
)

func okResult(provider, payload string) ProviderResult {
	return ProviderResult{Provider: provider, Status: ProviderOK, Payload: json.RawMessage(payload)}
}

func failedResult(provider, kind string) ProviderResult {
	return ProviderResult{Provider: provider, Status: ProviderFailed, FailureKind: kind}
}

func TestMerge_Deterministic(t *testing.T) {
	a := okResult("anthropic", `{"score":8,"verdict":"Strong craft.","recommendation":"Recommend","genre":{"primary":"Thriller"}}`)
	b := okResult("openai", `{"score":7,"verdict":"Sellable."}`)
	c := okResult("perplexity", `{"score":6,"verdict":"Crowded market."}`)

	first := Merge([]ProviderResult{a, b, c}, nil, "", nil)
	// Same outcomes, different arrival order.
	second := Merge([]ProviderResult{c, a, b}, nil, "", nil)

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(firstJSON) != string(secondJSON) {
		t.Fatalf("merge is not deterministic:\n%s\n%s", firstJSON, secondJSON)
	}
}

func TestMerge_SectionOrderCanonical(t *testing.T) {
	report := Merge([]ProviderResult{
		okResult("perplexity", `{"score":6}`),
		okResult("anthropic", `{"score":8}`),
		okResult("deepseek", `{"score":7}`),
	}, nil, "", nil)

	want := []string{"anthropic", "deepseek", "perplexity"}
	if len(report.Sections) != len(want) {
		t.Fatalf("expected %d sections, got %d", len(want), len(report.Sections))
	}
	for i, name := range want {
		if report.Sections[i].Provider != name {
			t.Fatalf("section %d: expected %s, got %s", i, name, report.Sections[i].Provider)
		}
	}
}

func TestMerge_ScoreClamped(t *testing.T) {
	report := Merge([]ProviderResult{
		okResult("anthropic", `{"score":14,"verdict":"Over-enthusiastic."}`),
	}, nil, "", nil)
	if report.Score != 10 {
		t.Fatalf("expected clamped score 10, got %f", report.Score)
	}

	report = Merge([]ProviderResult{
		okResult("anthropic", `{"score":-3,"verdict":"Harsh."}`),
	}, nil, "", nil)
	if report.Score != 0 {
		t.Fatalf("expected clamped score 0, got %f", report.Score)
	}
}

func TestMerge_RecommendationAllowList(t *testing.T) {
	report := Merge([]ProviderResult{
		okResult("anthropic", `{"score":9,"verdict":"Great.","recommendation":"Buy immediately!!"}`),
	}, nil, "", nil)
	// Off-list recommendations fall back to the score mapping.
	if report.Recommendation != RecommendStrong {
		t.Fatalf("expected %q, got %q", RecommendStrong, report.Recommendation)
	}

	report = Merge([]ProviderResult{
		okResult("anthropic", `{"score":9,"verdict":"Great.","recommendation":"Consider"}`),
	}, nil, "", nil)
	if report.Recommendation != RecommendConsider {
		t.Fatalf("expected provider recommendation to survive, got %q", report.Recommendation)
	}
}

func TestRecommendationForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{2, RecommendPass},
		{4.9, RecommendPass},
		{5, RecommendConsider},
		{6.9, RecommendConsider},
		{7, RecommendYes},
		{8.4, RecommendYes},
		{8.5, RecommendStrong},
		{10, RecommendStrong},
	}
	for _, tc := range cases {
		if got := recommendationForScore(tc.score); got != tc.want {
			t.Errorf("score %f: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestMerge_SalvagesScoreFromRawText(t *testing.T) {
	raw := ProviderResult{
		Provider:    "xai",
		Status:      ProviderFailed,
		FailureKind: providers.KindInvalidResponse,
		Payload:     json.RawMessage("The script holds together well. I rate it 7.5/10 overall."),
	}
	report := Merge([]ProviderResult{raw}, nil, "", nil)

	if len(report.Sections) != 1 {
		t.Fatalf("expected salvaged section, got %d sections", len(report.Sections))
	}
	if report.Sections[0].Score == nil || *report.Sections[0].Score != 7.5 {
		t.Fatalf("expected salvaged score 7.5, got %+v", report.Sections[0].Score)
	}
	if len(report.ProvidersFailed) != 1 || report.ProvidersFailed[0] != "xai" {
		t.Fatalf("salvaged provider still counts as failed: %+v", report.ProvidersFailed)
	}
}

func TestMerge_AllProvidersFailed(t *testing.T) {
	report := Merge([]ProviderResult{
		failedResult("anthropic", providers.KindTimeout),
		failedResult("xai", providers.KindServerError),
		failedResult("openai", providers.KindAuthFailed),
		failedResult("deepseek", providers.KindTimeout),
		failedResult("perplexity", providers.KindRateLimited),
	}, nil, "", nil)

	if report.Verdict != placeholderVerdict {
		t.Fatalf("expected placeholder verdict, got %q", report.Verdict)
	}
	if report.Score != 0 {
		t.Fatalf("expected zero score, got %f", report.Score)
	}
	if report.Recommendation != RecommendUnrated {
		t.Fatalf("expected Unrated when nothing scored, got %q", report.Recommendation)
	}
	if len(report.ProvidersFailed) != 5 {
		t.Fatalf("expected all five providers failed, got %d", len(report.ProvidersFailed))
	}
}

func TestMerge_DeclaredGenreWins(t *testing.T) {
	craft := okResult("anthropic", `{"score":7,"verdict":"Fine.","genre":{"primary":"Thriller"}}`)

	report := Merge([]ProviderResult{craft}, nil, "Horror", nil)
	if report.Genre != "Horror" {
		t.Fatalf("declared genre should win, got %q", report.Genre)
	}

	report = Merge([]ProviderResult{craft}, nil, "", nil)
	if report.Genre != "Thriller" {
		t.Fatalf("craft genre should fill the gap, got %q", report.Genre)
	}
}

func TestMerge_CarriesBudget(t *testing.T) {
	declared := 30_000_000.0
	budget := resolveBudget(&declared, "", "")
	report := Merge([]ProviderResult{okResult("anthropic", `{"score":7}`)}, nil, "", &budget)
	if report.Budget == nil || report.Budget.Tier != TierHigh {
		t.Fatalf("expected budget carried into report, got %+v", report.Budget)
	}
}

func TestMerge_CarriesDetection(t *testing.T) {
	det := &providers.SourceDetection{IsAdaptation: true, SourceType: "novel", Confidence: 0.9}
	report := Merge([]ProviderResult{okResult("anthropic", `{"score":7,"verdict":"Fine."}`)}, det, "", nil)
	if report.SourceMaterial == nil || report.SourceMaterial.SourceType != "novel" {
		t.Fatalf("expected detection carried into report, got %+v", report.SourceMaterial)
	}
}
