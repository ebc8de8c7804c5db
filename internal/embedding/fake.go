package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Fake is an in-memory Provider for tests, satisfying the real interface per
// spec §9's "no reflection, test with in-memory fakes" redesign flag and §8
// scenario 5's "fake embedder returning constant-but-distinct vectors per
// text". Vectors are deterministic functions of text content, not random, so
// idempotent-indexing tests can assert stable output.
type Fake struct {
	dim            int
	model          string
	maxInputTokens int
}

// NewFake builds a Fake provider of the given dimension.
func NewFake(dim int) *Fake {
	return &Fake{dim: dim, model: "fake-embedding", maxInputTokens: 8192}
}

func (f *Fake) Embed(ctx context.Context, texts []string, taskType TaskType) (*Result, error) {
	vectors := make([][]float32, len(texts))
	total := 0
	for i, t := range texts {
		vectors[i] = deterministicVector(t, f.dim)
		total += len(t)
	}
	return &Result{Vectors: vectors, Model: f.model, TokenTotal: total}, nil
}

func (f *Fake) Dimension() int      { return f.dim }
func (f *Fake) ModelName() string   { return f.model }
func (f *Fake) MaxInputTokens() int { return f.maxInputTokens }

// deterministicVector derives an L2-normalized vector from a text hash so
// distinct texts reliably produce distinct, repeatable vectors.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, dim)
	var sumSquares float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		x := float64(int64(seed>>11)) / float64(1<<52)
		v[i] = float32(x)
		sumSquares += x * x
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		norm = 1
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
