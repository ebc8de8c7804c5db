// Package mmr implements the MMR Selector (C13): iterative Maximal Marginal
// Relevance selection over bulk-fetched candidate vectors, grounded on the
// scoreAllChunks/calculateCombinedScore iterative-selection idiom of
// services/impl/hybrid_context.go.
package mmr

import (
	"context"
	"math"

	"github.com/docqa/ragcore/internal/vectorstore"
)

// Candidate is one chunk eligible for selection, with its embedding vector.
type Candidate struct {
	ChunkID string
	Vector  []float32
}

// Select iteratively picks finalK candidates maximizing relevance to query
// while penalizing similarity to already-selected picks (spec §4.13).
// lambda weights relevance (1.0) against diversity (0.0); default 0.5.
func Select(candidates []Candidate, query []float32, finalK int, lambda float64) []string {
	if finalK <= 0 || len(candidates) == 0 {
		return nil
	}
	if finalK > len(candidates) {
		finalK = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = cosine(query, c.Vector)
	}

	selected := make([]int, 0, finalK)
	chosen := make(map[int]bool, finalK)

	best := 0
	for i := range candidates {
		if relevance[i] > relevance[best] {
			best = i
		}
	}
	selected = append(selected, best)
	chosen[best] = true

	for len(selected) < finalK {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if chosen[i] {
				continue
			}
			maxSim := 0.0
			for _, s := range selected {
				sim := cosine(candidates[i].Vector, candidates[s].Vector)
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		selected = append(selected, bestIdx)
		chosen[bestIdx] = true
	}

	ids := make([]string, len(selected))
	for i, idx := range selected {
		ids[i] = candidates[idx].ChunkID
	}
	return ids
}

// FetchCandidates bulk-fetches vectors for chunkIDs in one call, the
// required alternative to one query-style lookup per candidate (spec
// §4.13). Chunk ids without a stored vector are silently dropped.
func FetchCandidates(ctx context.Context, vs vectorstore.Store, namespace string, chunkIDs []string) ([]Candidate, error) {
	vectorIDs := make([]string, len(chunkIDs))
	byVectorID := make(map[string]string, len(chunkIDs))
	for i, id := range chunkIDs {
		vid := vectorstore.VectorID(id)
		vectorIDs[i] = vid
		byVectorID[vid] = id
	}

	vectors, err := vs.FetchVectors(ctx, namespace, vectorIDs)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(vectors))
	for vid, vec := range vectors {
		candidates = append(candidates, Candidate{ChunkID: byVectorID[vid], Vector: vec})
	}
	return candidates, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
