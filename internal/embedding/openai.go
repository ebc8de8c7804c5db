package embedding

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/core/retry"
	"github.com/docqa/ragcore/internal/tokenizer"
)

// OpenAI is the D1 embedding variant (e.g. text-embedding-3-small/large,
// dimension 1536/3072), grounded on the intelligencedev-manifold go.mod's
// sashabaranov/go-openai dependency.
type OpenAI struct {
	client  *openai.Client
	model   string
	dim     int
	counter *tokenizer.Counter
	policy  retry.Policy
	breaker *gobreaker.CircuitBreaker
}

// NewOpenAI constructs an OpenAI embedding provider.
func NewOpenAI(apiKey, model string, dim int, counter *tokenizer.Counter, policy retry.Policy) *OpenAI {
	return &OpenAI{
		client:  openai.NewClient(apiKey),
		model:   model,
		dim:     dim,
		counter: counter,
		policy:  policy,
		breaker: retry.NewBreaker("embedding:openai"),
	}
}

func (o *OpenAI) Embed(ctx context.Context, texts []string, taskType TaskType) (*Result, error) {
	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = o.counter.Truncate(t, o.MaxInputTokens())
	}

	var resp openai.EmbeddingResponse
	err := retry.Do(ctx, o.breaker, withClassifier(o.policy, classifyOpenAIErr), func() error {
		r, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: truncated,
			Model: openai.EmbeddingModel(o.model),
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, &coreerrors.EmbeddingFailedError{Kind: classifyKind(err, classifyOpenAIErr), Err: err}
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return &Result{Vectors: vectors, Model: string(resp.Model), TokenTotal: resp.Usage.TotalTokens}, nil
}

func (o *OpenAI) Dimension() int      { return o.dim }
func (o *OpenAI) ModelName() string   { return o.model }
func (o *OpenAI) MaxInputTokens() int { return 8191 }

func withClassifier(p retry.Policy, classify retry.Classifier) retry.Policy {
	p.Classify = classify
	return p
}

func classifyKind(err error, classify retry.Classifier) coreerrors.EmbeddingFailedKind {
	if classify(err) {
		return coreerrors.EmbeddingFailedTransient
	}
	return coreerrors.EmbeddingFailedAuth
}

// classifyOpenAIErr reports whether an OpenAI API error is transient (rate
// limit, 5xx, network) rather than permanent (auth, invalid request) —
// spec §4.6's retry/no-retry split.
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
