package mmr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docqa/ragcore/internal/vectorstore"
)

func TestSelect_FirstPickIsMostRelevant(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ChunkID: "a", Vector: []float32{1, 0}},
		{ChunkID: "b", Vector: []float32{0, 1}},
		{ChunkID: "c", Vector: []float32{0.9, 0.1}},
	}
	selected := Select(candidates, query, 1, 0.5)
	require.Equal(t, []string{"a"}, selected)
}

func TestSelect_PenalizesRedundancy(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ChunkID: "a", Vector: []float32{1, 0}},
		{ChunkID: "a-dup", Vector: []float32{0.99, 0.01}},
		{ChunkID: "b", Vector: []float32{0.2, 0.98}},
	}
	// lambda=0 means pure diversity after the first (most relevant) pick.
	selected := Select(candidates, query, 2, 0.0)
	require.Equal(t, "a", selected[0])
	require.Equal(t, "b", selected[1], "near-duplicate of the first pick should be penalized out")
}

func TestSelect_FinalKLargerThanCandidatesClamps(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{{ChunkID: "a", Vector: []float32{1, 0}}}
	selected := Select(candidates, query, 5, 0.5)
	require.Len(t, selected, 1)
}

func TestSelect_EmptyCandidatesReturnsNil(t *testing.T) {
	require.Nil(t, Select(nil, []float32{1, 0}, 3, 0.5))
}

func TestFetchCandidates_BulkFetchesAndMapsBack(t *testing.T) {
	ctx := context.Background()
	vs := vectorstore.NewFake()
	require.NoError(t, vs.EnsureIndex(ctx, "idx", 2, "cosine"))
	require.NoError(t, vs.Upsert(ctx, "upload:u1", []vectorstore.Item{
		{ID: vectorstore.VectorID("c1"), Vector: []float32{1, 0}},
		{ID: vectorstore.VectorID("c2"), Vector: []float32{0, 1}},
	}))

	candidates, err := FetchCandidates(ctx, vs, "upload:u1", []string{"c1", "c2", "c3"})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
}
