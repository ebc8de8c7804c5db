package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
)

func TestValidateBatchBoundary(t *testing.T) {
	v := New(20, 50*1024*1024)
	require.NoError(t, v.ValidateBatch(20))

	err := v.ValidateBatch(21)
	require.Error(t, err)
	var batchErr *coreerrors.BatchTooLargeError
	require.ErrorAs(t, err, &batchErr)
}

func TestValidateFileRejectsUnsupportedExtension(t *testing.T) {
	v := New(20, 1024)
	_, err := v.ValidateFile("virus.exe", 10, strings.NewReader("0123456789"))
	require.Error(t, err)
	var fe *coreerrors.FileValidationError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, coreerrors.FileValidationType, fe.Kind)
}

func TestValidateFileRejectsEmpty(t *testing.T) {
	v := New(20, 1024)
	_, err := v.ValidateFile("empty.txt", 0, strings.NewReader(""))
	require.Error(t, err)
	var fe *coreerrors.FileValidationError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, coreerrors.FileValidationEmpty, fe.Kind)
}

func TestValidateFileSizeBoundary(t *testing.T) {
	v := New(20, 10)
	content := "0123456789" // exactly 10 bytes
	info, err := v.ValidateFile("ok.txt", 10, strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size)
	assert.NotEmpty(t, info.Hash)

	_, err = v.ValidateFile("toobig.txt", 11, strings.NewReader(content+"x"))
	require.Error(t, err)
	var fe *coreerrors.FileValidationError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, coreerrors.FileValidationSize, fe.Kind)
}

func TestValidateFileHashIsDeterministic(t *testing.T) {
	v := New(20, 1024)
	info1, err := v.ValidateFile("a.txt", 5, strings.NewReader("hello"))
	require.NoError(t, err)
	info2, err := v.ValidateFile("b.txt", 5, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, info1.Hash, info2.Hash)
}
