// Package budget estimates token counts and request cost for a query run.
// Because the agent supports multiple LLM backends whose APIs do not always
// report usage, this package provides a whitespace word-count fallback:
// 1 token ≈ 1 word, which under-counts for English prose but is stable and
// tokenizer-independent.
package budget

import (
	"strings"
)

// Rates is the per-1000-token pricing applied to a model's usage.
type Rates struct {
	// InputPerK is the USD price per 1000 prompt tokens.
	InputPerK float64

	// OutputPerK is the USD price per 1000 completion tokens.
	OutputPerK float64
}

// DefaultRates matches gpt-4o-mini pricing, the default backend model.
var DefaultRates = Rates{
	InputPerK:  0.00015,
	OutputPerK: 0.00060,
}

// Estimate returns a fallback token count for s by counting whitespace-separated
// words. Used only when the provider reports no token usage.
func Estimate(s string) int {
	return len(strings.Fields(s))
}

// Cost returns the estimated USD cost of a request given observed or
// estimated token counts. Negative counts are treated as zero.
func Cost(inputTokens, outputTokens int, r Rates) float64 {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	return float64(inputTokens)/1000*r.InputPerK + float64(outputTokens)/1000*r.OutputPerK
}
