// Package semantic implements the Semantic Retriever (C11): embed the query
// with a query task-type, then query the vector store, grounded on the
// embed-then-query sequencing of 54b3r-tfai-go's rag package.
package semantic

import (
	"context"

	"github.com/docqa/ragcore/internal/embedding"
	"github.com/docqa/ragcore/internal/vectorstore"
)

// Match is one scored chunk (spec §4.11).
type Match struct {
	ChunkID string
	Score   float32
}

// Retriever wires an embedding provider to a vector store for query-time
// search.
type Retriever struct {
	embed embedding.Provider
	vs    vectorstore.Store
}

// New constructs a Retriever.
func New(embed embedding.Provider, vs vectorstore.Store) *Retriever {
	return &Retriever{embed: embed, vs: vs}
}

// Search embeds queryText with the query task-type, queries namespace for
// the top_k nearest vectors, and recovers each match's chunk_id from its
// payload metadata (spec §4.11).
func (r *Retriever) Search(ctx context.Context, queryText string, topK int, namespace string) ([]Match, error) {
	res, err := r.embed.Embed(ctx, []string{queryText}, embedding.TaskTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(res.Vectors) == 0 {
		return nil, nil
	}

	hits, err := r.vs.Query(ctx, namespace, res.Vectors[0], topK, nil)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		chunkID, _ := h.Metadata["chunk_id"].(string)
		if chunkID == "" {
			continue
		}
		matches = append(matches, Match{ChunkID: chunkID, Score: h.Score})
	}
	return matches, nil
}
