package chunk_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docqa/ragcore/internal/chunk"
	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/tokenizer"
)

func newChunker(t *testing.T, cfg chunk.Config) *chunk.Chunker {
	t.Helper()
	counter, err := tokenizer.New("cl100k_base")
	require.NoError(t, err)
	c, err := chunk.New(counter, cfg)
	require.NoError(t, err)
	return c
}

func TestChunk_EmptyDocument(t *testing.T) {
	c := newChunker(t, chunk.Config{MaxChunkTokens: 100, MinChunkTokens: 10, OverlapTokens: 10})
	_, err := c.Chunk("   \n\t  ", chunk.Options{})
	require.Error(t, err)
	require.IsType(t, &coreerrors.EmptyDocumentError{}, err)
}

func TestChunk_SmallDocumentProducesDenseIndices(t *testing.T) {
	c := newChunker(t, chunk.Config{MaxChunkTokens: 40, MinChunkTokens: 5, OverlapTokens: 8})
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)

	chunks, err := c.Chunk(text, chunk.Options{PageOf: chunk.ConstantPage(1)})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		require.Equal(t, i, ch.ChunkIndex)
		require.NotNil(t, ch.PageNumber)
		require.Equal(t, 1, *ch.PageNumber)
		require.LessOrEqual(t, ch.TokenCount, 40)
		if i < len(chunks)-1 {
			require.GreaterOrEqual(t, ch.TokenCount, 5)
		}
		require.Less(t, ch.StartChar, ch.EndChar)
	}
}

func TestChunk_OverlapBetweenConsecutiveChunks(t *testing.T) {
	c := newChunker(t, chunk.Config{MaxChunkTokens: 30, MinChunkTokens: 5, OverlapTokens: 10})
	text := strings.Repeat("Sentence number filler content here. ", 50)

	chunks, err := c.Chunk(text, chunk.Options{})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		// Overlap means the next chunk starts at or before the previous
		// chunk's end (the shared suffix), never strictly after a gap.
		require.LessOrEqual(t, chunks[i].StartChar, chunks[i-1].EndChar)
	}
}

func TestChunk_HardSplitsOverlongSentence(t *testing.T) {
	c := newChunker(t, chunk.Config{MaxChunkTokens: 20, MinChunkTokens: 5, OverlapTokens: 0})
	// A single sentence (no terminal punctuation until the very end) far
	// longer than MaxChunkTokens.
	text := strings.Repeat("word ", 200) + "."

	chunks, err := c.Chunk(text, chunk.Options{})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		require.LessOrEqual(t, ch.TokenCount, 20)
	}
}

func TestPageFromBreaks(t *testing.T) {
	pageOf := chunk.PageFromBreaks([]int{0, 100, 250})
	require.Equal(t, 1, *pageOf(0))
	require.Equal(t, 1, *pageOf(99))
	require.Equal(t, 2, *pageOf(100))
	require.Equal(t, 3, *pageOf(300))
}

func TestEstimatedPage(t *testing.T) {
	pageOf := chunk.EstimatedPage(1800)
	require.Equal(t, 1, *pageOf(0))
	require.Equal(t, 2, *pageOf(1800))
}
