// Package llm calls generation backends over their native wire formats and
// wraps those calls in bounded exponential-backoff retry.
package llm

import "context"

// GenerationRequest is a single prompt bound for a specific model.
type GenerationRequest struct {
	Model  string
	Prompt string
}

// adapter speaks one provider wire format. Adapters perform exactly one
// HTTP exchange per call; retry policy lives in the Invoker.
type adapter interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
