package llm

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/core/retry"
)

// Anthropic is the second C14 variant, grounded on
// intelligencedev-manifold's internal/llm/anthropic/client.go construction
// and response-parsing idiom.
type Anthropic struct {
	sdk     anthropic.Client
	model   string
	policy  retry.Policy
	breaker *gobreaker.CircuitBreaker
}

// NewAnthropic constructs an Anthropic LLM provider.
func NewAnthropic(apiKey, model string, policy retry.Policy) *Anthropic {
	return &Anthropic{
		sdk:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		policy:  policy,
		breaker: retry.NewBreaker("llm:anthropic"),
	}
}

func (a *Anthropic) Generate(ctx context.Context, prompt string, params Params) (*Result, error) {
	maxTokens := int64(params.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	msgParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		MaxTokens: maxTokens,
	}
	if params.SystemPrompt != "" {
		msgParams.System = []anthropic.TextBlockParam{{Text: params.SystemPrompt}}
	}

	policy := a.policy
	policy.Classify = classifyAnthropicErr

	var resp *anthropic.Message
	err := retry.Do(ctx, a.breaker, policy, func() error {
		r, err := a.sdk.Messages.New(ctx, msgParams)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, &coreerrors.GenerationFailedError{Reason: "anthropic message generation failed", Err: err}
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	if resp.StopReason == "refusal" {
		return nil, &coreerrors.GenerationFailedError{Reason: "content policy refusal"}
	}

	promptTokens := int(resp.Usage.InputTokens)
	completionTokens := int(resp.Usage.OutputTokens)
	return &Result{
		Text: sb.String(),
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

func (a *Anthropic) ModelName() string { return a.model }

// classifyAnthropicErr reports transient (rate limit, 5xx, overloaded) vs
// permanent (auth, invalid request) failures (spec §4.6/§4.14).
func classifyAnthropicErr(err error) bool {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"), strings.Contains(msg, "authentication"):
		return false
	case strings.Contains(msg, "400"), strings.Contains(msg, "invalid_request"):
		return false
	case strings.Contains(msg, "429"), strings.Contains(msg, "500"), strings.Contains(msg, "503"),
		strings.Contains(msg, "overloaded"), strings.Contains(msg, "timeout"), strings.Contains(msg, "connection"):
		return true
	default:
		return true
	}
}
