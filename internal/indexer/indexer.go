// Package indexer implements the Indexer (C8): batched embedding and vector
// upsert for a document's chunks, idempotent via deterministic vector ids,
// grounded on the batching/error-aggregation idiom of
// services/impl/cache_service_impl.go's bounded-work loops.
package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docqa/ragcore/internal/embedding"
	"github.com/docqa/ragcore/internal/store"
	"github.com/docqa/ragcore/internal/vectorstore"
)

// Result is the outcome of index_document / reindex_document (spec §4.8).
type Result struct {
	Indexed int
	Skipped int
	Failed  int
}

// Status is the outcome of the status operation (spec §4.8).
type Status struct {
	TotalChunks   int
	IndexedChunks int
	PendingChunks int
	Percent       float64
}

// Config carries the batching/concurrency knobs of spec §4.8/§6.
type Config struct {
	EmbedBatchSize  int
	UpsertBatchSize int
}

// Indexer wires C5, C6, and C7 together.
type Indexer struct {
	repo   *store.Repository
	embed  embedding.Provider
	vs     vectorstore.Store
	cfg    Config
	logger *zap.Logger
}

// New constructs an Indexer.
func New(repo *store.Repository, embed embedding.Provider, vs vectorstore.Store, cfg Config, logger *zap.Logger) *Indexer {
	return &Indexer{repo: repo, embed: embed, vs: vs, cfg: cfg, logger: logger}
}

// IndexDocument runs the spec §4.8 index_document algorithm. force=true
// reindexes chunks that already carry an embedding_key.
func (ix *Indexer) IndexDocument(ctx context.Context, docID string, force bool) (Result, error) {
	doc, err := ix.repo.GetDocument(ctx, docID)
	if err != nil {
		return Result{}, err
	}
	chunks, err := ix.repo.ListChunks(ctx, docID, 0, 0)
	if err != nil {
		return Result{}, err
	}
	if len(chunks) == 0 {
		return Result{}, nil
	}

	var targets []store.Chunk
	skipped := 0
	for _, c := range chunks {
		if force || !c.IsIndexed() {
			targets = append(targets, c)
		} else {
			skipped++
		}
	}

	namespace := vectorstore.NamespaceForUpload(doc.UploadID)
	indexed, failed := 0, 0

	for start := 0; start < len(targets); start += ix.cfg.EmbedBatchSize {
		end := start + ix.cfg.EmbedBatchSize
		if end > len(targets) {
			end = len(targets)
		}
		group := targets[start:end]

		texts := make([]string, len(group))
		for i, c := range group {
			texts[i] = c.Content
		}

		res, err := ix.embed.Embed(ctx, texts, embedding.TaskTypeDocument)
		if err != nil {
			ix.logger.Error("indexer.embed_batch_failed", zap.String("document_id", docID), zap.Int("batch_size", len(group)), zap.Error(err))
			failed += len(group)
			continue
		}
		if len(res.Vectors) != len(group) {
			ix.logger.Error("indexer.embed_batch_size_mismatch", zap.String("document_id", docID))
			failed += len(group)
			continue
		}

		items := make([]vectorstore.Item, len(group))
		for i, c := range group {
			items[i] = vectorstore.Item{
				ID:     vectorstore.VectorID(c.ID),
				Vector: res.Vectors[i],
				Metadata: map[string]any{
					"document_id":  doc.ID,
					"chunk_id":     c.ID,
					"page":         pageOrZero(c.PageNumber),
					"filename":     doc.Filename,
					"upload_id":    doc.UploadID,
					"content_hash": doc.ContentHash,
					"created_at":   c.CreatedAt.Format(time.RFC3339),
				},
			}
		}

		batchOK := true
		for s := 0; s < len(items); s += ix.cfg.UpsertBatchSize {
			e := s + ix.cfg.UpsertBatchSize
			if e > len(items) {
				e = len(items)
			}
			if err := ix.vs.Upsert(ctx, namespace, items[s:e]); err != nil {
				ix.logger.Error("indexer.upsert_failed", zap.String("document_id", docID), zap.Error(err))
				batchOK = false
				break
			}
		}
		if !batchOK {
			failed += len(group)
			continue
		}

		pairs := make([]store.EmbeddingKeyPair, len(group))
		for i, c := range group {
			pairs[i] = store.EmbeddingKeyPair{ChunkID: c.ID, EmbeddingKey: vectorstore.VectorID(c.ID)}
		}
		if err := ix.repo.SetChunkEmbeddingKeys(ctx, pairs); err != nil {
			ix.logger.Error("indexer.set_embedding_keys_failed", zap.String("document_id", docID), zap.Error(err))
			failed += len(group)
			continue
		}
		indexed += len(group)
	}

	ix.logger.Info("indexer.index_document_done",
		zap.String("document_id", docID), zap.Int("indexed", indexed), zap.Int("skipped", skipped), zap.Int("failed", failed))
	return Result{Indexed: indexed, Skipped: skipped, Failed: failed}, nil
}

// ReindexDocument is index_document with force=true (spec §4.8).
func (ix *Indexer) ReindexDocument(ctx context.Context, docID string) (Result, error) {
	return ix.IndexDocument(ctx, docID, true)
}

// DeleteDocumentVectors removes a document's chunks from the vector store,
// scoped to its upload's namespace (spec §4.8).
func (ix *Indexer) DeleteDocumentVectors(ctx context.Context, docID string) error {
	doc, err := ix.repo.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	namespace := vectorstore.NamespaceForUpload(doc.UploadID)
	return ix.vs.DeleteByFilter(ctx, namespace, vectorstore.Filter{"document_id": doc.ID})
}

// DeleteUploadVectors drops an entire upload's vector namespace (spec §4.8).
func (ix *Indexer) DeleteUploadVectors(ctx context.Context, uploadID string) error {
	return ix.vs.DeleteNamespace(ctx, vectorstore.NamespaceForUpload(uploadID))
}

// Status reports indexing progress for a document (spec §4.8).
func (ix *Indexer) Status(ctx context.Context, docID string) (Status, error) {
	total, indexed, err := ix.repo.CountIndexed(ctx, docID)
	if err != nil {
		return Status{}, fmt.Errorf("indexer status: %w", err)
	}
	pending := total - indexed
	percent := 0.0
	if total > 0 {
		percent = float64(indexed) / float64(total) * 100
	}
	return Status{TotalChunks: total, IndexedChunks: indexed, PendingChunks: pending, Percent: percent}, nil
}

func pageOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
