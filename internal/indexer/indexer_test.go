package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/docqa/ragcore/internal/embedding"
	"github.com/docqa/ragcore/internal/store"
	"github.com/docqa/ragcore/internal/vectorstore"
)

func newTestIndexer(t *testing.T) (*Indexer, *store.Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	repo := store.New(db)
	require.NoError(t, repo.Migrate(context.Background()))

	ix := New(repo, embedding.NewFake(8), vectorstore.NewFake(), Config{EmbedBatchSize: 2, UpsertBatchSize: 2}, zap.NewNop())
	return ix, repo
}

func seedDocument(t *testing.T, repo *store.Repository, n int) *store.Document {
	t.Helper()
	ctx := context.Background()
	upload, err := repo.CreateUpload(ctx, "batch", 1)
	require.NoError(t, err)

	chunks := make([]store.ChunkInput, n)
	for i := 0; i < n; i++ {
		chunks[i] = store.ChunkInput{ChunkIndex: i, Content: "chunk text", TokenCount: 2, StartChar: 0, EndChar: 10}
	}
	doc, err := repo.AppendDocument(ctx, upload.ID, store.DocumentAttrs{
		Filename: "a.txt", FileType: store.FileTypeTXT, ByteSize: 10, PageCount: 1,
		ContentHash: "hash", StoragePath: "/tmp/a.txt",
	}, chunks)
	require.NoError(t, err)
	return doc
}

func TestIndexDocument_IndexesAllChunks(t *testing.T) {
	ix, repo := newTestIndexer(t)
	doc := seedDocument(t, repo, 5)

	res, err := ix.IndexDocument(context.Background(), doc.ID, false)
	require.NoError(t, err)
	require.Equal(t, 5, res.Indexed)
	require.Equal(t, 0, res.Skipped)
	require.Equal(t, 0, res.Failed)

	status, err := ix.Status(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, 5, status.TotalChunks)
	require.Equal(t, 5, status.IndexedChunks)
	require.Equal(t, float64(100), status.Percent)
}

func TestIndexDocument_SecondRunSkipsIndexed(t *testing.T) {
	ix, repo := newTestIndexer(t)
	doc := seedDocument(t, repo, 3)

	_, err := ix.IndexDocument(context.Background(), doc.ID, false)
	require.NoError(t, err)

	res, err := ix.IndexDocument(context.Background(), doc.ID, false)
	require.NoError(t, err)
	require.Equal(t, 0, res.Indexed)
	require.Equal(t, 3, res.Skipped)
}

func TestReindexDocument_ForcesReprocessing(t *testing.T) {
	ix, repo := newTestIndexer(t)
	doc := seedDocument(t, repo, 4)

	_, err := ix.IndexDocument(context.Background(), doc.ID, false)
	require.NoError(t, err)

	res, err := ix.ReindexDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, 4, res.Indexed)
	require.Equal(t, 0, res.Skipped)
}

func TestIndexDocument_NoChunksIsNoop(t *testing.T) {
	ix, repo := newTestIndexer(t)
	doc := seedDocument(t, repo, 0)

	res, err := ix.IndexDocument(context.Background(), doc.ID, false)
	require.NoError(t, err)
	require.Equal(t, Result{}, res)
}

func TestDeleteDocumentVectors_RemovesOnlyThatDocument(t *testing.T) {
	ix, repo := newTestIndexer(t)
	doc1 := seedDocument(t, repo, 2)
	doc2 := seedDocument(t, repo, 2)

	_, err := ix.IndexDocument(context.Background(), doc1.ID, false)
	require.NoError(t, err)
	_, err = ix.IndexDocument(context.Background(), doc2.ID, false)
	require.NoError(t, err)

	require.NoError(t, ix.DeleteDocumentVectors(context.Background(), doc1.ID))

	ns1 := vectorstore.NamespaceForUpload(doc1.UploadID)
	stats1, err := ix.vs.Stats(context.Background(), ns1)
	require.NoError(t, err)
	require.Equal(t, 0, stats1.VectorCount)

	ns2 := vectorstore.NamespaceForUpload(doc2.UploadID)
	stats2, err := ix.vs.Stats(context.Background(), ns2)
	require.NoError(t, err)
	require.Equal(t, 2, stats2.VectorCount)
}

func TestDeleteUploadVectors_DropsWholeNamespace(t *testing.T) {
	ix, repo := newTestIndexer(t)
	doc := seedDocument(t, repo, 3)

	_, err := ix.IndexDocument(context.Background(), doc.ID, false)
	require.NoError(t, err)

	require.NoError(t, ix.DeleteUploadVectors(context.Background(), doc.UploadID))

	ns := vectorstore.NamespaceForUpload(doc.UploadID)
	stats, err := ix.vs.Stats(context.Background(), ns)
	require.NoError(t, err)
	require.Equal(t, 0, stats.VectorCount)
}
