// Package validation implements the File Validator (C2): batch-size, file
// type/size/emptiness checks, and streaming content-hash computation,
// grounded on the collected-validation-errors idiom of
// services/impl/validation.go in the teacher repo.
package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path/filepath"
	"strings"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/store"
)

// allowedExtensions is the file format support at the boundary (spec §6).
var allowedExtensions = map[string]store.FileType{
	".pdf": store.FileTypePDF,
	".docx": store.FileTypeDOCX,
	".txt": store.FileTypeTXT,
	".md":  store.FileTypeMD,
}

// Validator enforces the invariants of spec §4.2.
type Validator struct {
	maxDocsPerBatch int
	maxFileBytes    int64
}

// New constructs a Validator from the configured limits.
func New(maxDocsPerBatch int, maxFileBytes int64) *Validator {
	return &Validator{maxDocsPerBatch: maxDocsPerBatch, maxFileBytes: maxFileBytes}
}

// ValidateBatch rejects a batch larger than MaxDocsPerBatch before anything
// is persisted (spec §4.2 validate_batch).
func (v *Validator) ValidateBatch(fileCount int) error {
	if fileCount > v.maxDocsPerBatch {
		return &coreerrors.BatchTooLargeError{Count: fileCount, Max: v.maxDocsPerBatch}
	}
	return nil
}

// FileInfo is the result of validate_file: the attributes needed to persist
// a Document row, plus the detected FileType.
type FileInfo struct {
	Filename  string
	Extension string
	FileType  store.FileType
	Hash      string
	Size      int64
}

// ValidateFile streams r to compute a SHA-256 content hash without buffering
// the whole file in memory (spec §4.2), enforcing extension and size limits.
// size must be known up front (e.g. from a prior Content-Length or a
// pre-flight stat) since the size check can short-circuit before reading.
func (v *Validator) ValidateFile(filename string, size int64, r io.Reader) (*FileInfo, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fileType, ok := allowedExtensions[ext]
	if !ok {
		return nil, &coreerrors.FileValidationError{
			Kind: coreerrors.FileValidationType, Filename: filename,
			Detail: "extension " + ext + " is not supported",
		}
	}
	if size == 0 {
		return nil, &coreerrors.FileValidationError{
			Kind: coreerrors.FileValidationEmpty, Filename: filename, Detail: "file is empty",
		}
	}
	if size > v.maxFileBytes {
		return nil, &coreerrors.FileValidationError{
			Kind: coreerrors.FileValidationSize, Filename: filename,
			Detail: "file exceeds maximum allowed size",
		}
	}

	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return nil, &coreerrors.FileValidationError{
			Kind: coreerrors.FileValidationEmpty, Filename: filename, Detail: "failed to read file: " + err.Error(),
		}
	}
	if n != size {
		size = n
	}

	return &FileInfo{
		Filename:  filename,
		Extension: ext,
		FileType:  fileType,
		Hash:      hex.EncodeToString(h.Sum(nil)),
		Size:      size,
	}, nil
}

// DuplicateChecker is satisfied by the metadata store's duplicate lookup.
type DuplicateChecker interface {
	FindDuplicateByHash(ctx context.Context, hash string, scopeUploadID string, global bool) (*store.Document, error)
}

// CheckDuplicate consults C5 for a prior document with the same content hash
// (spec §4.2 check_duplicate), scoped per the configured DuplicateScope.
func (v *Validator) CheckDuplicate(ctx context.Context, checker DuplicateChecker, hash, uploadID string, global bool) (existingDocID string, err error) {
	doc, err := checker.FindDuplicateByHash(ctx, hash, uploadID, global)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", nil
	}
	return doc.ID, nil
}
