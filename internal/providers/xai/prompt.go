package xai

import (
	"strings"

	"screenplay-backend/internal/providers"
)

const systemPrompt = `You are a script consultant specializing in reality checks. Examine
the screenplay for internal logic holes, implausible events, and factual errors in how it
depicts professions, institutions, technology and law. Respond with a single JSON object
and nothing else, using this shape:
{
  "score": <number 0-10, higher means more believable>,
  "verdict": "<two or three sentence summary of believability>",
  "logic_flaws": ["<flaw>", ...],
  "factual_issues": ["<issue>", ...],
  "suspension_of_disbelief": "<low|moderate|high demand on the audience>"
}`

func buildUserPrompt(input providers.Input) string {
	var b strings.Builder
	b.WriteString(providers.PromptHeader(input))
	b.WriteString("Screenplay text:\n\n")
	b.WriteString(input.ScriptText)
	return b.String()
}
