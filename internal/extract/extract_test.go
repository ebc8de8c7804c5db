package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/store"
)

func TestExtractPlainTextAlwaysOnePage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	e := New(1000)
	result, err := e.Extract(context.Background(), path, store.FileTypeTXT)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
	assert.Equal(t, "hello world", result.Text)
}

func TestExtractMarkdownAlwaysOnePage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nBody text."), 0o644))

	e := New(1000)
	result, err := e.Extract(context.Background(), path, store.FileTypeMD)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
}

func TestExtractUnsupportedTypeFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.bin")
	require.NoError(t, os.WriteFile(path, []byte("xx"), 0o644))

	e := New(1000)
	_, err := e.Extract(context.Background(), path, store.FileType("bin"))
	require.Error(t, err)
	var extractionErr *coreerrors.ExtractionFailedError
	require.ErrorAs(t, err, &extractionErr)
}

func TestIsNonWhitespace(t *testing.T) {
	assert.False(t, IsNonWhitespace("   \n\t  "))
	assert.True(t, IsNonWhitespace("  x "))
}
