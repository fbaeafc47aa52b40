// Package pricing centralizes per-model token cost rates so the orchestrator
// never hardcodes a rate at the call site.
package pricing

import "fmt"

// Rate holds the per-token cost for a single model, in USD per token.
type Rate struct {
	InputPerToken  float64
	OutputPerToken float64
}

// table is the model-indexed rate table. Prices are illustrative flat rates
// scaled to per-token USD; adjust as providers change published pricing.
var table = map[string]Rate{
	"claude-3-7-sonnet": {InputPerToken: 0.000003, OutputPerToken: 0.000015},
	"claude-3-5-haiku":  {InputPerToken: 0.0000008, OutputPerToken: 0.000004},
	"gpt-4o":            {InputPerToken: 0.0000025, OutputPerToken: 0.00001},
	"gpt-4o-mini":       {InputPerToken: 0.00000015, OutputPerToken: 0.0000006},
}

// ErrUnknownModel is returned by Cost when the model has no configured rate.
var ErrUnknownModel = fmt.Errorf("pricing: unknown model")

// Cost computes the dollar cost of a completion given its token counts.
func Cost(model string, inputTokens, outputTokens int) (float64, error) {
	rate, ok := table[model]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return float64(inputTokens)*rate.InputPerToken + float64(outputTokens)*rate.OutputPerToken, nil
}

// Register adds or overrides a model's rate. Used by tests and by operators
// wiring in a model not present in the built-in table.
func Register(model string, rate Rate) {
	table[model] = rate
}
