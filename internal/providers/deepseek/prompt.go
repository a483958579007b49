package deepseek

import (
	"strings"

	"screenplay-backend/internal/providers"
)

const systemPrompt = `You are a film finance analyst. From the screenplay's scope
(locations, cast size, effects, period, action), estimate the production budget and the
financial case for making it. Respond with a single JSON object and nothing else, using
this shape:
{
  "score": <number 0-10, higher means a stronger financial case>,
  "verdict": "<two or three sentence financial assessment>",
  "estimated_budget_usd_millions": <number>,
  "budget_tier": "<micro|low|mid|high|tentpole>",
  "roi_assessment": "<reasoning about likely return on investment>",
  "financial_risks": ["<risk>", ...],
  "cost_drivers": ["<driver>", ...]
}`

func buildUserPrompt(input providers.Input) string {
	var b strings.Builder
	b.WriteString(providers.PromptHeader(input))
	b.WriteString("Screenplay text:\n\n")
	b.WriteString(input.ScriptText)
	return b.String()
}
