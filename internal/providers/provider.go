package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Adapter abstracts one AI provider's screenplay analysis call.
type Adapter interface {
	// Name identifies the provider in results, logs and the cost ledger.
	Name() string
	// Analyze runs the provider's analysis over the script text. The returned
	// payload is the provider's raw JSON verdict; Usage is reported even when
	// the payload could not be parsed.
	Analyze(ctx context.Context, input Input) (json.RawMessage, Usage, error)
}

// Input carries everything a provider prompt needs.
type Input struct {
	ScriptText string
	Title      string
	// Genre is the submitter's declared genre, if any.
	Genre string
	// BudgetContext is a preformatted budget briefing block, if any.
	BudgetContext string
	// Detection is the source-material pre-pass verdict, when available.
	Detection *SourceDetection
}

// PromptHeader renders the context lines shared by every provider prompt:
// title, declared genre, adaptation note and budget briefing.
func PromptHeader(input Input) string {
	var b strings.Builder
	if input.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", input.Title)
	}
	if input.Genre != "" {
		fmt.Fprintf(&b, "Declared genre: %s\n\n", input.Genre)
	}
	if d := input.Detection; d != nil && d.IsAdaptation {
		fmt.Fprintf(&b, "Note: this script appears to adapt existing material (%s). Judge the adaptation on its own merits.\n\n", d.SourceType)
	}
	if input.BudgetContext != "" {
		b.WriteString(input.BudgetContext)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Usage captures token consumption for one provider call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// SourceDetection is the verdict of the source-material pre-pass: whether the
// script adapts existing material and what kind.
type SourceDetection struct {
	IsAdaptation bool    `json:"is_adaptation"`
	SourceType   string  `json:"source_type"`
	Confidence   float64 `json:"confidence"`
	Notes        string  `json:"notes,omitempty"`
}
