package analyses

import (
	"fmt"
	"strings"
)

// Budget tier keys, ascending.
const (
	TierMicro    = "micro"
	TierLow      = "low"
	TierMid      = "mid"
	TierHigh     = "high"
	TierTentpole = "tentpole"
)

var tierLabels = map[string]string{
	TierMicro:    "Micro-budget",
	TierLow:      "Low-budget",
	TierMid:      "Mid-budget",
	TierHigh:     "High-budget",
	TierTentpole: "Tentpole",
}

// Budget is the budget block of a merged report: the declared figure when
// the submitter supplied one, otherwise a screenplay-derived estimate.
type Budget struct {
	DeclaredUSD   *float64 `json:"declaredUsd,omitempty"`
	Tier          string   `json:"tier"`
	EstimateLow   float64  `json:"estimateLowUsd,omitempty"`
	EstimateUSD   float64  `json:"estimateUsd,omitempty"`
	EstimateHigh  float64  `json:"estimateHighUsd,omitempty"`
	EstimateBasis string   `json:"estimateBasis,omitempty"`
}

// budgetTier buckets a dollar amount into an industry tier.
func budgetTier(usd float64) string {
	switch {
	case usd < 1_000_000:
		return TierMicro
	case usd < 5_000_000:
		return TierLow
	case usd < 20_000_000:
		return TierMid
	case usd < 50_000_000:
		return TierHigh
	default:
		return TierTentpole
	}
}

// genreBaselines maps a declared genre to low/optimal/high budget baselines
// in USD, from industry averages.
var genreBaselines = map[string][3]float64{
	"horror":   {500_000, 3_000_000, 15_000_000},
	"thriller": {2_000_000, 8_000_000, 25_000_000},
	"drama":    {1_000_000, 5_000_000, 20_000_000},
	"comedy":   {3_000_000, 12_000_000, 35_000_000},
	"action":   {15_000_000, 40_000_000, 150_000_000},
	"sci-fi":   {10_000_000, 35_000_000, 200_000_000},
	"fantasy":  {20_000_000, 60_000_000, 300_000_000},
	"romance":  {2_000_000, 8_000_000, 25_000_000},
	"mystery":  {3_000_000, 10_000_000, 30_000_000},
	"crime":    {5_000_000, 15_000_000, 50_000_000},
}

var defaultBaseline = [3]float64{2_000_000, 10_000_000, 40_000_000}

// costDriver is a script signal that shifts the estimate.
type costDriver struct {
	keyword string
	mult    float64
	reason  string
}

var costDrivers = []costDriver{
	{"multiple countries", 1.5, "international locations"},
	{"exotic location", 1.3, "exotic locations"},
	{"period setting", 1.4, "period setting requirements"},
	{"historical", 1.3, "historical setting"},
	{"space", 2.0, "space/futuristic setting"},
	{"underwater", 1.8, "underwater sequences"},
	{"desert", 1.2, "remote location filming"},
	{"explosion", 1.3, "explosion sequences"},
	{"cgi", 1.4, "CGI requirements"},
	{"creature", 1.5, "creature/monster effects"},
	{"supernatural", 1.4, "supernatural effects"},
	{"flying", 1.3, "flying/aerial sequences"},
	{"car chase", 1.2, "vehicle action sequences"},
	{"gun fight", 1.1, "action sequences"},
	{"magic", 1.6, "magical effects"},
	{"army", 1.4, "military/army sequences"},
	{"crowd", 1.2, "crowd scenes"},
	{"stadium", 1.3, "large venue sequences"},
	{"city", 1.1, "urban filming complexity"},
}

const estimateCapUSD = 500_000_000

// estimateBudget derives a budget range from the script itself: a genre
// baseline scaled by deterministic keyword signals. It is used only when
// the submitter declares no budget.
func estimateBudget(scriptText, genre string) Budget {
	baseline, ok := genreBaselines[strings.ToLower(strings.TrimSpace(genre))]
	if !ok {
		baseline = defaultBaseline
	}

	lower := strings.ToLower(scriptText)
	mult := 1.0
	var reasons []string
	for _, d := range costDrivers {
		if strings.Contains(lower, d.keyword) {
			mult *= d.mult
			reasons = append(reasons, d.reason)
		}
	}

	characters := strings.Count(lower, "character")
	if characters > 20 {
		mult *= 1.2
		reasons = append(reasons, "large ensemble cast")
	} else if characters < 5 {
		mult *= 0.8
		reasons = append(reasons, "minimal cast requirements")
	}

	low := capEstimate(baseline[0] * mult)
	optimal := capEstimate(baseline[1] * mult)
	high := capEstimate(baseline[2] * mult)

	basis := "genre baseline"
	if genre = strings.TrimSpace(genre); genre != "" {
		basis = fmt.Sprintf("%s genre baseline", strings.ToLower(genre))
	}
	if len(reasons) > 0 {
		basis += fmt.Sprintf(", adjusted %.1fx for %s", mult, strings.Join(reasons, ", "))
	}

	return Budget{
		Tier:          budgetTier(optimal),
		EstimateLow:   low,
		EstimateUSD:   optimal,
		EstimateHigh:  high,
		EstimateBasis: basis,
	}
}

func capEstimate(usd float64) float64 {
	if usd > estimateCapUSD {
		return estimateCapUSD
	}
	return usd
}

// resolveBudget prefers the declared figure; estimation is the fallback.
func resolveBudget(declaredUSD *float64, scriptText, genre string) Budget {
	if declaredUSD != nil && *declaredUSD > 0 {
		return Budget{
			DeclaredUSD: declaredUSD,
			Tier:        budgetTier(*declaredUSD),
		}
	}
	return estimateBudget(scriptText, genre)
}

// budgetContext renders the budget briefing included in provider prompts.
func budgetContext(b Budget) string {
	var sb strings.Builder
	if b.DeclaredUSD != nil {
		fmt.Fprintf(&sb, "Budget: %s ($%.0f declared). Weigh casting suggestions and production feasibility against this budget level.",
			tierLabels[b.Tier], *b.DeclaredUSD)
		return sb.String()
	}
	fmt.Fprintf(&sb, "Budget: no figure declared. Screenplay-derived estimate $%.0f (%s, range $%.0f-$%.0f; %s). Base recommendations on the estimate unless story elements justify otherwise.",
		b.EstimateUSD, tierLabels[b.Tier], b.EstimateLow, b.EstimateHigh, b.EstimateBasis)
	return sb.String()
}
