package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFake_GenerateReturnsUsage(t *testing.T) {
	f := NewFake("")
	res, err := f.Generate(context.Background(), "some prompt text", Params{Temperature: 0.2, MaxOutputTokens: 256})
	require.NoError(t, err)
	require.NotEmpty(t, res.Text)
	require.Greater(t, res.Usage.TotalTokens, 0)
	require.Equal(t, "fake-llm", f.ModelName())
}
