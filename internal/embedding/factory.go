package embedding

import (
	"context"
	"fmt"

	"github.com/docqa/ragcore/internal/core/retry"
	"github.com/docqa/ragcore/internal/tokenizer"
)

// New builds the configured Provider by name, the enum-keyed factory spec
// §9's redesign flag requires in place of dynamic/reflective provider
// selection: "EmbeddingProvider and LLMProvider families should be modeled
// as interfaces with a small factory keyed by an enum. No reflection."
func New(ctx context.Context, name, apiKey, model string, dim int, counter *tokenizer.Counter, policy retry.Policy) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAI(apiKey, model, dim, counter, policy), nil
	case "gemini":
		return NewGemini(ctx, apiKey, model, dim, counter, policy)
	case "fake":
		return NewFake(dim), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", name)
	}
}
