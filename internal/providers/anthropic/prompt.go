package anthropic

import (
	"strings"

	"screenplay-backend/internal/providers"
)

const systemPrompt = `You are a veteran screenplay development executive. Evaluate the
screenplay's craft: structure, dialogue, character, pacing and theme. Identify its genre.
Respond with a single JSON object and nothing else, using this shape:
{
  "score": <number 0-10>,
  "recommendation": "Pass" | "Consider" | "Recommend" | "Strong Recommend",
  "verdict": "<two or three sentence overall assessment>",
  "genre": {"primary": "<genre>", "secondary": "<genre or empty>", "confidence": <0-1>},
  "craft": {
    "structure": <number 0-10>,
    "dialogue": <number 0-10>,
    "character": <number 0-10>,
    "pacing": <number 0-10>,
    "theme": <number 0-10>
  },
  "strengths": ["<strength>", ...],
  "weaknesses": ["<weakness>", ...]
}`

func buildUserPrompt(input providers.Input) string {
	var b strings.Builder
	b.WriteString(providers.PromptHeader(input))
	b.WriteString("Screenplay text:\n\n")
	b.WriteString(input.ScriptText)
	return b.String()
}
