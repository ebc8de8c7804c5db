package ingest

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/docqa/ragcore/internal/chunk"
	"github.com/docqa/ragcore/internal/extract"
	"github.com/docqa/ragcore/internal/store"
	"github.com/docqa/ragcore/internal/tokenizer"
	"github.com/docqa/ragcore/internal/validation"
)

type fakeScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeScheduler) ScheduleIndexDocument(ctx context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, docID)
	return nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Repository, *fakeScheduler) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	repo := store.New(db)
	require.NoError(t, repo.Migrate(context.Background()))

	counter, err := tokenizer.New("cl100k_base")
	require.NoError(t, err)
	chunker, err := chunk.New(counter, chunk.Config{MaxChunkTokens: 200, MinChunkTokens: 10, OverlapTokens: 20})
	require.NoError(t, err)

	dir := t.TempDir()
	scheduler := &fakeScheduler{}
	orc := New(
		validation.New(10, 10*1024*1024),
		extract.New(1000),
		chunker,
		repo,
		NewDiskStorage(dir),
		scheduler,
		Config{IngestConcurrency: 3, DuplicateGlobal: false},
		zap.NewNop(),
	)
	return orc, repo, scheduler
}

func textFile(name, body string) File {
	return File{Filename: name, Size: int64(len(body)), Content: strings.NewReader(body)}
}

func TestIngestBatch_AllFilesSucceed(t *testing.T) {
	orc, repo, scheduler := newTestOrchestrator(t)

	files := []File{
		textFile("a.txt", "The quick brown fox jumps over the lazy dog. It ran far."),
		textFile("b.md", "Another small document with a couple of sentences. Here is one more."),
	}

	res, err := orc.IngestBatch(context.Background(), "batch-1", files)
	require.NoError(t, err)
	require.Equal(t, store.UploadStatusCompleted, res.Status)

	upload, err := repo.GetUpload(context.Background(), res.UploadID)
	require.NoError(t, err)
	require.Equal(t, 2, upload.Succeeded)
	require.Equal(t, 0, upload.Failed)
	require.Len(t, scheduler.ids, 2)
}

func TestIngestBatch_UnsupportedExtensionFailsThatFileOnly(t *testing.T) {
	orc, repo, scheduler := newTestOrchestrator(t)

	files := []File{
		textFile("good.txt", "A perfectly fine plain text document with content."),
		textFile("bad.exe", "not a real document"),
	}

	res, err := orc.IngestBatch(context.Background(), "batch-2", files)
	require.NoError(t, err)
	require.Equal(t, store.UploadStatusPartial, res.Status)

	upload, err := repo.GetUpload(context.Background(), res.UploadID)
	require.NoError(t, err)
	require.Equal(t, 1, upload.Succeeded)
	require.Equal(t, 1, upload.Failed)
	require.Len(t, scheduler.ids, 1)
}

func TestIngestBatch_DuplicateContentFailsSecondCopy(t *testing.T) {
	orc, repo, _ := newTestOrchestrator(t)

	body := "Identical content appears twice in this batch for testing purposes."
	files := []File{textFile("first.txt", body), textFile("second.txt", body)}

	res, err := orc.IngestBatch(context.Background(), "batch-3", files)
	require.NoError(t, err)
	require.Equal(t, store.UploadStatusPartial, res.Status)

	upload, err := repo.GetUpload(context.Background(), res.UploadID)
	require.NoError(t, err)
	require.Equal(t, 1, upload.Succeeded)
	require.Equal(t, 1, upload.Failed)
}

func TestIngestBatch_BatchTooLargeRejectsWithNothingPersisted(t *testing.T) {
	orc, repo, _ := newTestOrchestrator(t)

	files := make([]File, 11)
	for i := range files {
		files[i] = textFile("f.txt", "small file")
	}

	_, err := orc.IngestBatch(context.Background(), "batch-4", files)
	require.Error(t, err)

	chunks, err := repo.ListAllChunks(context.Background())
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestIngestBatch_AllFilesFailYieldsFailedStatus(t *testing.T) {
	orc, repo, _ := newTestOrchestrator(t)

	files := []File{textFile("only.exe", "bad")}
	res, err := orc.IngestBatch(context.Background(), "batch-5", files)
	require.NoError(t, err)
	require.Equal(t, store.UploadStatusFailed, res.Status)

	upload, err := repo.GetUpload(context.Background(), res.UploadID)
	require.NoError(t, err)
	require.Equal(t, 0, upload.Succeeded)
	require.Equal(t, 1, upload.Failed)
}

func TestDiskStorage_PersistsBytes(t *testing.T) {
	dir := t.TempDir()
	ds := NewDiskStorage(dir)
	w, path, err := ds.Create(context.Background(), "upload-1", "doc.txt")
	require.NoError(t, err)
	_, err = io.Copy(w, bytes.NewBufferString("hello world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}
