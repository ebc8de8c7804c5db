package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountIsDeterministic(t *testing.T) {
	c, err := New("cl100k_base")
	require.NoError(t, err)

	n1 := c.Count("the quick brown fox jumps over the lazy dog")
	n2 := c.Count("the quick brown fox jumps over the lazy dog")
	assert.Equal(t, n1, n2)
	assert.Greater(t, n1, 0)
}

func TestUnavailableTokenizer(t *testing.T) {
	_, err := New("not-a-real-tokenizer-family")
	require.Error(t, err)
}

func TestTruncateIsTokenAligned(t *testing.T) {
	c, err := New("cl100k_base")
	require.NoError(t, err)

	text := "one two three four five six seven eight nine ten"
	truncated := c.Truncate(text, 3)
	assert.LessOrEqual(t, c.Count(truncated), 3)
}
