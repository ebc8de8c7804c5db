package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// unsafeFilenameChars matches anything outside a conservative filesystem-safe
// set, so a sanitized filename can never escape its upload directory (spec
// §6: "stored under their original filenames sanitized to filesystem-safe
// form").
var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename strips path separators and any other filesystem-unsafe
// character from a caller-supplied filename, collapsing the remainder so a
// name like "../../etc/passwd" becomes a harmless literal component rather
// than a traversal outside the upload directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "file"
	}
	return name
}

// Storage persists a file's bytes and returns the path it was stored at,
// grounded on NISHADDEVENDRA-chatbot-backend's routes/async_upload.go
// filepath.Join(uploadDir, ...)/os.MkdirAll upload-directory idiom.
type Storage interface {
	Create(ctx context.Context, uploadID, filename string) (w io.WriteCloser, path string, err error)
}

// DiskStorage persists files under a root directory, one subdirectory per
// upload.
type DiskStorage struct {
	root string
}

// NewDiskStorage builds a DiskStorage rooted at dir.
func NewDiskStorage(dir string) *DiskStorage {
	return &DiskStorage{root: dir}
}

func (d *DiskStorage) Create(ctx context.Context, uploadID, filename string) (io.WriteCloser, string, error) {
	dir := filepath.Join(d.root, uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("ingest storage: create upload dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s", uuid.NewString(), sanitizeFilename(filename)))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("ingest storage: create file: %w", err)
	}
	return f, path, nil
}
