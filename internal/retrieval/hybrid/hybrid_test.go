package hybrid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuse_CombinesBothSources(t *testing.T) {
	semantic := []Ranked{{ChunkID: "a"}, {ChunkID: "b"}, {ChunkID: "c"}}
	keyword := []Ranked{{ChunkID: "b"}, {ChunkID: "d"}}

	fused := Fuse(semantic, keyword, 60, 10)
	require.Len(t, fused, 4)
	require.Equal(t, "b", fused[0].ChunkID, "b ranks in both lists so it should fuse to the top")
}

func TestFuse_RespectsTopK(t *testing.T) {
	semantic := []Ranked{{ChunkID: "a"}, {ChunkID: "b"}, {ChunkID: "c"}}
	fused := Fuse(semantic, nil, 60, 2)
	require.Len(t, fused, 2)
	require.Equal(t, "a", fused[0].ChunkID)
	require.Equal(t, "b", fused[1].ChunkID)
}

func TestFuse_TieBreaksBySemanticThenKeywordRank(t *testing.T) {
	// "x" is semantic rank 0 and keyword rank 1; "y" is semantic rank 1 and
	// keyword rank 0. Both fuse to 1/61 + 1/62, an exact tie, so the lower
	// semantic rank decides and "x" comes first.
	semantic := []Ranked{{ChunkID: "x"}, {ChunkID: "y"}}
	keyword := []Ranked{{ChunkID: "y"}, {ChunkID: "x"}}
	fused := Fuse(semantic, keyword, 60, 10)
	require.Len(t, fused, 2)
	require.Equal(t, fused[0].Score, fused[1].Score)
	require.Equal(t, "x", fused[0].ChunkID)
	require.Equal(t, "y", fused[1].ChunkID)
}

func TestFuse_EmptyInputsYieldEmptyOutput(t *testing.T) {
	fused := Fuse(nil, nil, 60, 10)
	require.Empty(t, fused)
}
