package openai

import (
	"fmt"
	"strings"

	"screenplay-backend/internal/providers"
)

const commercialSystemPrompt = `You are a studio acquisitions analyst. Assess the
screenplay's commercial viability: audience, comparable films, marketability and casting
potential. Respond with a single JSON object and nothing else, using this shape:
{
  "score": <number 0-10>,
  "verdict": "<two or three sentence commercial assessment>",
  "target_audience": "<primary audience description>",
  "comparable_films": ["<title (year)>", ...],
  "box_office_potential": "<low|moderate|high>",
  "marketability_factors": ["<factor>", ...],
  "casting_suggestions": ["<actor for role>", ...]
}`

const detectorSystemPrompt = `You identify whether a screenplay adapts existing source
material: a novel, article, play, prior film, true story or other property. Respond with
a single JSON object and nothing else, using this shape:
{
  "is_adaptation": <true|false>,
  "source_type": "<novel|article|play|remake|true_story|original|other>",
  "confidence": <number 0-1>,
  "notes": "<one sentence of evidence>"
}`

func buildUserPrompt(input providers.Input) string {
	var b strings.Builder
	if input.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", input.Title)
	}
	if input.Genre != "" {
		fmt.Fprintf(&b, "Declared genre: %s\n\n", input.Genre)
	}
	if d := input.Detection; d != nil && d.IsAdaptation {
		fmt.Fprintf(&b, "Note: this script appears to adapt existing material (%s). Factor existing audience awareness into the commercial assessment.\n\n", d.SourceType)
	}
	if input.BudgetContext != "" {
		b.WriteString(input.BudgetContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Screenplay text:\n\n")
	b.WriteString(input.ScriptText)
	return b.String()
}

// buildDetectorPrompt sends only the opening of the script; titles pages and
// early scenes carry the adaptation signals, and the full text is not needed.
func buildDetectorPrompt(title, scriptText string) string {
	const maxDetectorChars = 12000
	excerpt := scriptText
	if len(excerpt) > maxDetectorChars {
		excerpt = excerpt[:maxDetectorChars]
	}
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", title)
	}
	b.WriteString("Opening of the screenplay:\n\n")
	b.WriteString(excerpt)
	return b.String()
}
