package llm

import (
	"fmt"

	"github.com/docqa/ragcore/internal/core/retry"
)

// New builds the configured Provider by name (spec §9's enum-keyed factory
// redesign flag, shared with internal/embedding's provider selection).
func New(name, apiKey, model string, policy retry.Policy) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAI(apiKey, model, policy), nil
	case "anthropic":
		return NewAnthropic(apiKey, model, policy), nil
	case "fake":
		return NewFake(model), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", name)
	}
}
