package costs

import "screenplay-backend/internal/providers"

// rate holds USD per one million tokens.
type rate struct {
	input  float64
	output float64
}

// Published list prices as of mid-2025. Stale rates only skew the advisory
// ceiling, never billing, so a periodic manual refresh is acceptable.
var providerRates = map[string]rate{
	"anthropic":  {input: 3.00, output: 15.00},
	"xai":        {input: 3.00, output: 15.00},
	"openai":     {input: 2.50, output: 10.00},
	"detector":   {input: 2.50, output: 10.00},
	"deepseek":   {input: 0.55, output: 2.19},
	"perplexity": {input: 1.00, output: 1.00},
}

// defaultRate is used for providers missing from the table.
var defaultRate = rate{input: 3.00, output: 15.00}

// EstimateCost converts token usage into an approximate USD cost.
func EstimateCost(provider string, usage providers.Usage) float64 {
	r, ok := providerRates[provider]
	if !ok {
		r = defaultRate
	}
	return float64(usage.PromptTokens)/1e6*r.input + float64(usage.CompletionTokens)/1e6*r.output
}

// EstimateAnalysisCost predicts the cost of a full fan-out for a script of
// the given length, assuming roughly four characters per token and modest
// completion sizes. Used for admission-time ceiling checks.
func EstimateAnalysisCost(scriptChars int) float64 {
	promptTokens := scriptChars / 4
	const completionTokens = 2000
	var total float64
	for _, r := range providerRates {
		total += float64(promptTokens)/1e6*r.input + float64(completionTokens)/1e6*r.output
	}
	return total
}
