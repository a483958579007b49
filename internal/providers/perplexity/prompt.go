package perplexity

import (
	"strings"

	"screenplay-backend/internal/providers"
)

const systemPrompt = `You are a film market researcher with access to current industry
data. Place the screenplay in today's market: recent comparable releases and their
performance, active trends, and the realistic path to distribution. Respond with a single
JSON object and nothing else, using this shape:
{
  "score": <number 0-10, higher means a stronger market fit>,
  "verdict": "<two or three sentence market assessment>",
  "market_trends": ["<trend>", ...],
  "comparable_recent_releases": ["<title (year): outcome>", ...],
  "target_demographics": ["<demographic>", ...],
  "distribution_path": "<theatrical|streaming|hybrid|festival>"
}`

// buildUserPrompt sends a condensed excerpt; market research keys off premise
// and genre rather than the full text.
func buildUserPrompt(input providers.Input) string {
	const maxMarketChars = 30000
	excerpt := input.ScriptText
	if len(excerpt) > maxMarketChars {
		excerpt = excerpt[:maxMarketChars]
	}
	var b strings.Builder
	b.WriteString(providers.PromptHeader(input))
	b.WriteString("Screenplay text (may be truncated):\n\n")
	b.WriteString(excerpt)
	return b.String()
}
