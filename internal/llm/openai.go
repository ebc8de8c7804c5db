package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/core/retry"
)

// OpenAI is the C14 variant backed by chat completions, reusing the
// embedding package's OpenAI error-classification idiom since it is the
// same API family.
type OpenAI struct {
	client  *openai.Client
	model   string
	policy  retry.Policy
	breaker *gobreaker.CircuitBreaker
}

// NewOpenAI constructs an OpenAI LLM provider.
func NewOpenAI(apiKey, model string, policy retry.Policy) *OpenAI {
	return &OpenAI{
		client:  openai.NewClient(apiKey),
		model:   model,
		policy:  policy,
		breaker: retry.NewBreaker("llm:openai"),
	}
}

func (o *OpenAI) Generate(ctx context.Context, prompt string, params Params) (*Result, error) {
	messages := []openai.ChatCompletionMessage{}
	if params.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: params.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: float32(params.Temperature),
		MaxTokens:   params.MaxOutputTokens,
	}

	policy := o.policy
	policy.Classify = classifyOpenAIErr

	var resp openai.ChatCompletionResponse
	err := retry.Do(ctx, o.breaker, policy, func() error {
		r, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, &coreerrors.GenerationFailedError{Reason: "openai chat completion failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &coreerrors.GenerationFailedError{Reason: "openai returned no choices (likely content policy refusal)"}
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonContentFilter {
		return nil, &coreerrors.GenerationFailedError{Reason: "content policy refusal"}
	}

	return &Result{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (o *OpenAI) ModelName() string { return o.model }

// classifyOpenAIErr mirrors internal/embedding's OpenAI error classification
// (spec §4.6's retry/no-retry split applies equally to C14).
func classifyOpenAIErr(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return true
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest:
			return false
		default:
			return apiErr.HTTPStatusCode >= 500
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "eof")
}
