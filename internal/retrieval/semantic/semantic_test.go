package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docqa/ragcore/internal/embedding"
	"github.com/docqa/ragcore/internal/vectorstore"
)

func TestSearch_ReturnsRankedChunkIDs(t *testing.T) {
	fakeEmbed := embedding.NewFake(8)
	vs := vectorstore.NewFake()
	ctx := context.Background()

	require.NoError(t, vs.EnsureIndex(ctx, "docqa_chunks", 8, "cosine"))

	docResult, err := fakeEmbed.Embed(ctx, []string{"the quick brown fox", "a gentle breeze in autumn"}, embedding.TaskTypeDocument)
	require.NoError(t, err)

	require.NoError(t, vs.Upsert(ctx, "upload:u1", []vectorstore.Item{
		{ID: "chunk:c1", Vector: docResult.Vectors[0], Metadata: map[string]any{"chunk_id": "c1"}},
		{ID: "chunk:c2", Vector: docResult.Vectors[1], Metadata: map[string]any{"chunk_id": "c2"}},
	}))

	r := New(fakeEmbed, vs)
	matches, err := r.Search(ctx, "the quick brown fox", 2, "upload:u1")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "c1", matches[0].ChunkID)
}

func TestSearch_EmptyNamespaceReturnsEmpty(t *testing.T) {
	r := New(embedding.NewFake(8), vectorstore.NewFake())
	matches, err := r.Search(context.Background(), "anything", 5, "upload:missing")
	require.NoError(t, err)
	require.Empty(t, matches)
}
