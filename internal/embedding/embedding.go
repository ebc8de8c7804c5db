// Package embedding implements the Embedding Provider interface (C6): turn
// texts into fixed-dimension vectors, batched and retrying, grounded on the
// RouterService/Provider shape of the teacher's services/agent_service.go,
// generalized from chat routing to embedding.
package embedding

import (
	"context"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
)

// TaskType distinguishes document-indexing embeddings from query embeddings
// (spec §9 open question: "task-type distinction for query vs document
// embeddings"). Providers that don't distinguish treat both identically.
type TaskType string

const (
	TaskTypeDocument TaskType = "retrieval_document"
	TaskTypeQuery    TaskType = "retrieval_query"
)

// Result is the concrete record the provider contract returns — never a bare
// slice of vectors, since the indexer depends on fields beyond the vectors
// themselves (spec §9's "duck-typed result objects" anti-pattern fix).
type Result struct {
	Vectors    [][]float32
	Model      string
	TokenTotal int
}

// Provider is the capability set of spec §4.6.
type Provider interface {
	// Embed returns vectors in input order, one per text. Inputs longer than
	// MaxInputTokens are truncated right-side, token-aligned, not rejected.
	Embed(ctx context.Context, texts []string, taskType TaskType) (*Result, error)
	Dimension() int
	ModelName() string
	MaxInputTokens() int
}

// CheckDimension enforces spec §4.6's startup contract: the provider's
// dimension must match the configured vector store dimension, or the
// process refuses to run (DimensionMismatchError, fatal).
func CheckDimension(p Provider, expected int) error {
	if p.Dimension() != expected {
		return &coreerrors.DimensionMismatchError{Actual: p.Dimension(), Expected: expected}
	}
	return nil
}
