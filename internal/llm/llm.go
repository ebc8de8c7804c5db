// Package llm implements the LLM Provider interface (C14): a single
// generate call with retry/circuit-breaker wrapping mirroring
// internal/embedding's structure, since both providers share the same
// transient-failure isolation requirement (spec §4.6/§4.14).
package llm

import "context"

// Params carries the generation controls of spec §4.14.
type Params struct {
	Temperature     float64
	MaxOutputTokens int
	SystemPrompt    string
}

// Usage reports token accounting for a generation call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result is the outcome of a generate call.
type Result struct {
	Text  string
	Usage Usage
}

// Provider is the capability set of spec §4.14.
type Provider interface {
	Generate(ctx context.Context, prompt string, params Params) (*Result, error)
	ModelName() string
}
