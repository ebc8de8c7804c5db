package llm

import (
	"context"
	"strings"
)

// Fake is an in-memory Provider for tests, satisfying the real interface per
// spec §9's explicit test requirement and §8 scenario 5.
type Fake struct {
	model string
}

// NewFake builds a Fake provider that returns a fixed answer citing
// [Source 1], so context-assembly/citation tests can assert on it; only the
// reported prompt token usage depends on the prompt.
func NewFake(model string) *Fake {
	if model == "" {
		model = "fake-llm"
	}
	return &Fake{model: model}
}

func (f *Fake) Generate(ctx context.Context, prompt string, params Params) (*Result, error) {
	text := "Answer based on the provided context. [Source 1]"
	promptTokens := len(strings.Fields(prompt))
	completionTokens := len(strings.Fields(text))
	return &Result{
		Text: text,
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

func (f *Fake) ModelName() string { return f.model }
