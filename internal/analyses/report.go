package analyses

import (
	"encoding/json"
	"regexp"
	"strconv"

	"screenplay-backend/internal/providers"
)

// Recommendation values, in ascending order of enthusiasm. These are the
// only values a report may carry.
const (
	RecommendPass     = "Pass"
	RecommendConsider = "Consider"
	RecommendYes      = "Recommend"
	RecommendStrong   = "Strong Recommend"
	// RecommendUnrated marks a report where no provider produced a score,
	// so clients never mistake the placeholder for a real Pass.
	RecommendUnrated = "Unrated"
)

// placeholderVerdict is used when no provider produced a usable verdict.
const placeholderVerdict = "Analysis incomplete"

// canonicalOrder fixes section ordering so a report marshals identically
// no matter which provider finished first.
var canonicalOrder = []string{"anthropic", "xai", "openai", "deepseek", "perplexity"}

// Report is the merged analysis presented to clients.
type Report struct {
	Score           float64                    `json:"score"`
	Recommendation  string                     `json:"recommendation"`
	Verdict         string                     `json:"verdict"`
	Genre           string                     `json:"genre,omitempty"`
	Budget          *Budget                    `json:"budget,omitempty"`
	SourceMaterial  *providers.SourceDetection `json:"sourceMaterial,omitempty"`
	Sections        []Section                  `json:"sections"`
	ProvidersFailed []string                   `json:"providersFailed,omitempty"`
}

// Section is one provider's contribution to the report.
type Section struct {
	Provider string          `json:"provider"`
	Score    *float64        `json:"score,omitempty"`
	Verdict  string          `json:"verdict,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// probe is the loose shape shared by every provider payload.
type probe struct {
	Score          *float64 `json:"score"`
	Recommendation string   `json:"recommendation"`
	Verdict        string   `json:"verdict"`
	Genre          *struct {
		Primary string `json:"primary"`
	} `json:"genre"`
}

var scorePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*10`)

// Merge folds provider outcomes into one report. It is a pure function:
// the same inputs always produce a byte-identical report. Providers that
// failed contribute only to ProvidersFailed; a run where everything failed
// still merges into a placeholder report. A declared genre always wins over
// the craft provider's detected one.
func Merge(results []ProviderResult, detection *providers.SourceDetection, declaredGenre string, budget *Budget) *Report {
	report := &Report{
		Genre:          declaredGenre,
		Budget:         budget,
		SourceMaterial: detection,
		Sections:       []Section{},
	}

	byProvider := make(map[string]ProviderResult, len(results))
	for _, r := range results {
		byProvider[r.Provider] = r
	}

	var scoreSum float64
	var scoreCount int
	var anthropicRec string

	for _, name := range canonicalOrder {
		r, ok := byProvider[name]
		if !ok {
			continue
		}
		if r.Status != ProviderOK {
			// A payload may still ride along with a failed parse; try to
			// salvage a score from the raw text before giving up.
			if score, ok := salvageScore(r.Payload); ok {
				clamped := clampScore(score)
				report.Sections = append(report.Sections, Section{Provider: name, Score: &clamped})
				scoreSum += clamped
				scoreCount++
			}
			report.ProvidersFailed = append(report.ProvidersFailed, name)
			continue
		}

		section := Section{Provider: name, Payload: r.Payload}
		var p probe
		if err := json.Unmarshal(r.Payload, &p); err == nil {
			if p.Score != nil {
				clamped := clampScore(*p.Score)
				section.Score = &clamped
				scoreSum += clamped
				scoreCount++
			}
			section.Verdict = p.Verdict
			if name == "anthropic" {
				anthropicRec = p.Recommendation
				if report.Verdict == "" {
					report.Verdict = p.Verdict
				}
				if report.Genre == "" && p.Genre != nil {
					report.Genre = p.Genre.Primary
				}
			}
		}
		report.Sections = append(report.Sections, section)
	}

	if scoreCount > 0 {
		report.Score = clampScore(scoreSum / float64(scoreCount))
	}
	if report.Verdict == "" {
		report.Verdict = firstVerdict(report.Sections)
	}
	if report.Verdict == "" {
		report.Verdict = placeholderVerdict
	}
	if scoreCount == 0 {
		report.Recommendation = RecommendUnrated
	} else {
		report.Recommendation = normalizeRecommendation(anthropicRec, report.Score)
	}
	return report
}

func firstVerdict(sections []Section) string {
	for _, s := range sections {
		if s.Verdict != "" {
			return s.Verdict
		}
	}
	return ""
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

// normalizeRecommendation keeps a provider's recommendation only when it is
// one of the allowed values, falling back to a score-based mapping.
func normalizeRecommendation(rec string, score float64) string {
	switch rec {
	case RecommendPass, RecommendConsider, RecommendYes, RecommendStrong:
		return rec
	}
	return recommendationForScore(score)
}

func recommendationForScore(score float64) string {
	switch {
	case score < 5:
		return RecommendPass
	case score < 7:
		return RecommendConsider
	case score < 8.5:
		return RecommendYes
	default:
		return RecommendStrong
	}
}

// salvageScore pulls an "N/10" score out of a non-JSON payload.
func salvageScore(payload []byte) (float64, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	match := scorePattern.FindSubmatch(payload)
	if match == nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(string(match[1]), 64)
	if err != nil {
		return 0, false
	}
	return score, true
}
