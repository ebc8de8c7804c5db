package keyword

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/docqa/ragcore/internal/store"
)

func newTestRetriever(t *testing.T) (*Retriever, *store.Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	repo := store.New(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return New(repo, Config{K1: 1.2, B: 0.75, TTL: time.Hour}), repo
}

func seedChunks(t *testing.T, repo *store.Repository, contents []string) *store.Document {
	t.Helper()
	ctx := context.Background()
	upload, err := repo.CreateUpload(ctx, "batch", 1)
	require.NoError(t, err)

	inputs := make([]store.ChunkInput, len(contents))
	for i, c := range contents {
		inputs[i] = store.ChunkInput{ChunkIndex: i, Content: c, TokenCount: len(c), StartChar: 0, EndChar: len(c)}
	}
	doc, err := repo.AppendDocument(ctx, upload.ID, store.DocumentAttrs{
		Filename: "a.txt", FileType: store.FileTypeTXT, ByteSize: 10, PageCount: 1,
		ContentHash: "hash", StoragePath: "/tmp/a.txt",
	}, inputs)
	require.NoError(t, err)
	return doc
}

func TestSearch_RanksMatchingChunkHighest(t *testing.T) {
	r, repo := newTestRetriever(t)
	doc := seedChunks(t, repo, []string{
		"The quick brown fox jumps over the lazy dog",
		"Quantum computing relies on superposition and entanglement",
		"A completely unrelated sentence about gardening tools",
	})

	matches, err := r.Search(context.Background(), Scope{Kind: ScopeDocument, ID: doc.ID}, "quantum entanglement", 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	require.Equal(t, doc.Status, store.DocumentStatusCompleted)

	chunks, err := repo.ListChunks(context.Background(), doc.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.Equal(t, chunks[1].ID, matches[0].ChunkID)
}

func TestSearch_EmptyCorpusReturnsEmpty(t *testing.T) {
	r, _ := newTestRetriever(t)
	matches, err := r.Search(context.Background(), Scope{Kind: ScopeDocument, ID: "missing-doc"}, "anything", 10)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestSearch_NoQueryTermsReturnsEmpty(t *testing.T) {
	r, repo := newTestRetriever(t)
	doc := seedChunks(t, repo, []string{"Some content about foxes"})
	matches, err := r.Search(context.Background(), Scope{Kind: ScopeDocument, ID: doc.ID}, "   ", 10)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestSearch_GlobalScopeSpansAllUploads(t *testing.T) {
	r, repo := newTestRetriever(t)
	seedChunks(t, repo, []string{"alpha beta gamma"})
	seedChunks(t, repo, []string{"delta epsilon zeta"})

	matches, err := r.Search(context.Background(), Scope{Kind: ScopeGlobal}, "beta epsilon", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestSearch_UploadScopeExcludesOtherUploads(t *testing.T) {
	r, repo := newTestRetriever(t)
	doc1 := seedChunks(t, repo, []string{"golang concurrency patterns"})
	seedChunks(t, repo, []string{"python concurrency patterns"})

	matches, err := r.Search(context.Background(), Scope{Kind: ScopeUpload, ID: doc1.UploadID}, "concurrency patterns", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestInvalidate_ForcesRebuildOnNextSearch(t *testing.T) {
	r, repo := newTestRetriever(t)
	doc := seedChunks(t, repo, []string{"original content about foxes"})

	_, err := r.Search(context.Background(), Scope{Kind: ScopeDocument, ID: doc.ID}, "foxes", 10)
	require.NoError(t, err)

	r.Invalidate(Scope{Kind: ScopeDocument, ID: doc.ID})

	matches, err := r.Search(context.Background(), Scope{Kind: ScopeDocument, ID: doc.ID}, "foxes", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestSweepExpired_EvictsOldEntries(t *testing.T) {
	r, repo := newTestRetriever(t)
	doc := seedChunks(t, repo, []string{"some content"})

	_, err := r.Search(context.Background(), Scope{Kind: ScopeDocument, ID: doc.ID}, "content", 10)
	require.NoError(t, err)
	require.Len(t, r.cache, 1)

	evicted := r.SweepExpired(time.Now().Add(2 * time.Hour))
	require.Equal(t, 1, evicted)
	require.Empty(t, r.cache)
}
