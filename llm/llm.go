package llm

import "context"

// Request bundles inputs for a single non-streaming model invocation. The
// pipeline stages only ever need one user prompt with an optional system
// preamble, so the contract stays deliberately smaller than a full chat API.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
	// UseEnhanced selects the provider's higher-quality (and more expensive)
	// model for this call.
	UseEnhanced bool
}

// Client is the language-model invocation contract consumed by the pipeline:
// a prompt goes in, free-form text comes out. Failures are returned as
// errors; the stages decide how to degrade.
type Client interface {
	Generate(ctx context.Context, req *Request) (string, error)
}
