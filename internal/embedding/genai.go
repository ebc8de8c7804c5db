package embedding

import (
	"context"
	"strings"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/core/retry"
	"github.com/docqa/ragcore/internal/tokenizer"
)

// Gemini is the D2 embedding variant (e.g. text-embedding-004, dimension
// 768), grounded on intelligencedev-manifold's internal/llm/google/client.go
// google.golang.org/genai client construction idiom.
type Gemini struct {
	client  *genai.Client
	model   string
	dim     int
	counter *tokenizer.Counter
	policy  retry.Policy
	breaker *gobreaker.CircuitBreaker
}

// NewGemini constructs a Gemini embedding provider.
func NewGemini(ctx context.Context, apiKey, model string, dim int, counter *tokenizer.Counter, policy retry.Policy) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &Gemini{
		client:  client,
		model:   model,
		dim:     dim,
		counter: counter,
		policy:  policy,
		breaker: retry.NewBreaker("embedding:gemini"),
	}, nil
}

func (g *Gemini) Embed(ctx context.Context, texts []string, taskType TaskType) (*Result, error) {
	contents := make([]*genai.Content, len(texts))
	total := 0
	for i, t := range texts {
		truncated := g.counter.Truncate(t, g.MaxInputTokens())
		contents[i] = genai.NewContentFromText(truncated, genai.RoleUser)
		total += g.counter.Count(truncated)
	}

	geminiTaskType := "RETRIEVAL_DOCUMENT"
	if taskType == TaskTypeQuery {
		geminiTaskType = "RETRIEVAL_QUERY"
	}

	var resp *genai.EmbedContentResponse
	err := retry.Do(ctx, g.breaker, withClassifier(g.policy, classifyGeminiErr), func() error {
		r, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
			TaskType: geminiTaskType,
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, &coreerrors.EmbeddingFailedError{Kind: classifyKind(err, classifyGeminiErr), Err: err}
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return &Result{Vectors: vectors, Model: g.model, TokenTotal: total}, nil
}

func (g *Gemini) Dimension() int      { return g.dim }
func (g *Gemini) ModelName() string   { return g.model }
func (g *Gemini) MaxInputTokens() int { return 2048 }

// classifyGeminiErr reports transient (rate limit, 5xx, network) vs
// permanent (auth, invalid argument) failures (spec §4.6).
func classifyGeminiErr(err error) bool {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"), strings.Contains(msg, "permission"):
		return false
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "400"):
		return false
	case strings.Contains(msg, "429"), strings.Contains(msg, "500"), strings.Contains(msg, "503"),
		strings.Contains(msg, "timeout"), strings.Contains(msg, "connection"):
		return true
	default:
		return true
	}
}
