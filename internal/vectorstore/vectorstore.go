// Package vectorstore implements the Vector Store interface (C7):
// namespaced, keyed upsert/delete/query of vectors with metadata, grounded
// on 54b3r-tfai-go's internal/rag/qdrant.go QdrantStore.
package vectorstore

import (
	"context"
	"fmt"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
)

// Item is one vector to upsert, keyed by a caller-chosen id. The core uses
// "chunk:{chunk_id}" for idempotent upserts (spec §4.7).
type Item struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Match is one scored result from Query; Score is monotone in similarity
// (spec §4.7).
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Stats reports the size of a namespace.
type Stats struct {
	VectorCount int
}

// Filter is a simple equality predicate map applied to item metadata,
// sufficient for the core's own usage (deleting all vectors for a
// document_id within an upload's namespace, spec §4.8 delete_document_vectors).
type Filter map[string]any

// Store is the capability set of spec §4.7.
type Store interface {
	// EnsureIndex is idempotent; it fails with DimensionMismatchError if an
	// existing index's dimension differs from dim.
	EnsureIndex(ctx context.Context, name string, dim int, metric string) error
	Upsert(ctx context.Context, namespace string, items []Item) error
	DeleteByIDs(ctx context.Context, namespace string, ids []string) error
	DeleteByFilter(ctx context.Context, namespace string, filter Filter) error
	DeleteNamespace(ctx context.Context, namespace string) error
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error)
	Stats(ctx context.Context, namespace string) (Stats, error)
	// FetchVectors bulk-fetches vectors by id for MMR (spec §4.13: "one
	// query-style lookup per candidate is unacceptable").
	FetchVectors(ctx context.Context, namespace string, ids []string) (map[string][]float32, error)
}

// NamespaceForUpload builds the namespace string for an upload (spec §4.7:
// `"upload:{upload_id}"`, extensible to tenant-scoped namespaces). An empty
// uploadID yields "", the cross-upload global scope Query and FetchVectors
// treat as unscoped (spec §4.15's "all" retrieval scope).
func NamespaceForUpload(uploadID string) string {
	if uploadID == "" {
		return ""
	}
	return fmt.Sprintf("upload:%s", uploadID)
}

// VectorID builds the deterministic, idempotent vector id for a chunk (spec
// §4.7: `"chunk:{chunk_id}"`).
func VectorID(chunkID string) string {
	return fmt.Sprintf("chunk:%s", chunkID)
}

// ValidateDimension is the startup-fatal check of spec §4.6/§4.7: the
// embedding provider's dimension must match the configured index.
func ValidateDimension(providerDim, indexDim int) error {
	if providerDim != indexDim {
		return &coreerrors.DimensionMismatchError{Actual: providerDim, Expected: indexDim}
	}
	return nil
}
