package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	repo := New(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func TestAppendDocumentAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	upload, err := repo.CreateUpload(ctx, "batch-1", 1)
	require.NoError(t, err)

	doc, err := repo.AppendDocument(ctx, upload.ID, DocumentAttrs{
		Filename:    "hello.txt",
		FileType:    FileTypeTXT,
		ByteSize:    5,
		PageCount:   1,
		ContentHash: "deadbeef",
		StoragePath: "/tmp/hello.txt",
	}, []ChunkInput{
		{ChunkIndex: 0, Content: "hello", TokenCount: 1, StartChar: 0, EndChar: 5},
	})
	require.NoError(t, err)
	require.Equal(t, DocumentStatusCompleted, doc.Status)

	chunks, err := repo.ListChunks(ctx, doc.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.False(t, chunks[0].IsIndexed())
}

func TestIncrementUploadCountsReachesTerminal(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	upload, err := repo.CreateUpload(ctx, "batch-2", 2)
	require.NoError(t, err)

	require.NoError(t, repo.IncrementUploadCounts(ctx, upload.ID, 1, 0))
	mid, err := repo.GetUpload(ctx, upload.ID)
	require.NoError(t, err)
	require.False(t, mid.IsTerminal())

	require.NoError(t, repo.IncrementUploadCounts(ctx, upload.ID, 0, 1))
	final, err := repo.GetUpload(ctx, upload.ID)
	require.NoError(t, err)
	require.True(t, final.IsTerminal())
	require.Equal(t, UploadStatusPartial, final.Status)
}

func TestSetChunkEmbeddingKeysAndCountIndexed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	upload, err := repo.CreateUpload(ctx, "batch-3", 1)
	require.NoError(t, err)
	doc, err := repo.AppendDocument(ctx, upload.ID, DocumentAttrs{
		Filename: "a.txt", FileType: FileTypeTXT, ByteSize: 10, PageCount: 1,
		ContentHash: "h1", StoragePath: "/tmp/a.txt",
	}, []ChunkInput{
		{ChunkIndex: 0, Content: "one", TokenCount: 1},
		{ChunkIndex: 1, Content: "two", TokenCount: 1},
	})
	require.NoError(t, err)

	chunks, err := repo.ListChunks(ctx, doc.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	require.NoError(t, repo.SetChunkEmbeddingKeys(ctx, []EmbeddingKeyPair{
		{ChunkID: chunks[0].ID, EmbeddingKey: "chunk:" + chunks[0].ID},
	}))

	total, indexed, err := repo.CountIndexed(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, 1, indexed)
}

func TestFindDuplicateByHashGlobalScope(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	upload, err := repo.CreateUpload(ctx, "batch-4", 1)
	require.NoError(t, err)
	_, err = repo.AppendDocument(ctx, upload.ID, DocumentAttrs{
		Filename: "dup.txt", FileType: FileTypeTXT, ByteSize: 5, PageCount: 1,
		ContentHash: "samehash", StoragePath: "/tmp/dup.txt",
	}, nil)
	require.NoError(t, err)

	existing, err := repo.FindDuplicateByHash(ctx, "samehash", "", true)
	require.NoError(t, err)
	require.NotNil(t, existing)

	missing, err := repo.FindDuplicateByHash(ctx, "nope", "", true)
	require.NoError(t, err)
	require.Nil(t, missing)
}
