package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
)

// Repository implements the Metadata Store (C5) operations named in spec
// §4.5, grounded on the CRUD style of services/impl/agent_service_impl.go:
// one gorm.DB transaction per public operation, errors.Is(gorm.ErrRecordNotFound)
// mapped to NotFoundError at the boundary.
type Repository struct {
	db *gorm.DB
}

// New wraps an already-connected *gorm.DB.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate runs AutoMigrate for all four tables, the repository's analog of
// the teacher's scripts/create_tables.go.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Upload{}, &Document{}, &Chunk{}, &Query{})
}

// Ping verifies the database connection is reachable, used by the health
// endpoint's dependency probe (spec §6 "read health: dependency probes").
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateUpload creates a new Upload row with status=processing.
func (r *Repository) CreateUpload(ctx context.Context, batchLabel string, total int) (*Upload, error) {
	u := &Upload{
		ID:         uuid.NewString(),
		BatchLabel: batchLabel,
		Status:     UploadStatusProcessing,
		Total:      total,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	return u, nil
}

// DocumentAttrs carries every non-nullable Document field, all of which must
// be known before the row is created (spec §4.9's "create row, fill later"
// anti-pattern fix).
type DocumentAttrs struct {
	Filename    string
	FileType    FileType
	ByteSize    int64
	PageCount   int
	ContentHash string
	StoragePath string
}

// AppendDocument atomically inserts a completed Document row alongside its
// chunks in one transaction (spec §4.9 step 3g / §9's anti-pattern fix).
func (r *Repository) AppendDocument(ctx context.Context, uploadID string, attrs DocumentAttrs, chunks []ChunkInput) (*Document, error) {
	doc := &Document{
		ID:          uuid.NewString(),
		UploadID:    uploadID,
		Filename:    attrs.Filename,
		FileType:    attrs.FileType,
		ByteSize:    attrs.ByteSize,
		PageCount:   attrs.PageCount,
		ContentHash: attrs.ContentHash,
		StoragePath: attrs.StoragePath,
		Status:      DocumentStatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if len(chunks) > 0 {
			rows := make([]Chunk, len(chunks))
			for i, c := range chunks {
				rows[i] = Chunk{
					ID:         uuid.NewString(),
					DocumentID: doc.ID,
					ChunkIndex: c.ChunkIndex,
					Content:    c.Content,
					TokenCount: c.TokenCount,
					StartChar:  c.StartChar,
					EndChar:    c.EndChar,
					PageNumber: c.PageNumber,
					Metadata:   datatypes.JSONMap{},
					CreatedAt:  time.Now().UTC(),
				}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert chunks: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ChunkInput is the chunker's output shape, before IDs are assigned.
type ChunkInput struct {
	ChunkIndex int
	Content    string
	TokenCount int
	StartChar  int
	EndChar    int
	PageNumber *int
}

// RecordFailedDocument records a per-file/per-document failure without
// writing chunks (spec §4.9 steps 3a/3c/3d/3e/3f).
func (r *Repository) RecordFailedDocument(ctx context.Context, uploadID, filename string, fileType FileType, errMsg string) (*Document, error) {
	msg := errMsg
	doc := &Document{
		ID:           uuid.NewString(),
		UploadID:     uploadID,
		Filename:     filename,
		FileType:     fileType,
		Status:       DocumentStatusFailed,
		ErrorMessage: &msg,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, fmt.Errorf("record failed document: %w", err)
	}
	return doc, nil
}

// SetDocumentStatus updates a document's status and optional error message.
func (r *Repository) SetDocumentStatus(ctx context.Context, docID string, status DocumentStatus, errMsg *string) error {
	updates := map[string]any{"status": status}
	if errMsg != nil {
		updates["error_message"] = *errMsg
	}
	res := r.db.WithContext(ctx).Model(&Document{}).Where("id = ?", docID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("set document status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &coreerrors.NotFoundError{Resource: "document", ID: docID}
	}
	return nil
}

// IncrementUploadCounts bumps succeeded/failed on an Upload under a
// row-level lock, and sets the terminal status once total is reached (spec
// §4.9 step 4, §5's "read-modify-write on counters" concurrency note).
func (r *Repository) IncrementUploadCounts(ctx context.Context, uploadID string, succeededDelta, failedDelta int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u Upload
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", uploadID).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &coreerrors.NotFoundError{Resource: "upload", ID: uploadID}
			}
			return fmt.Errorf("load upload for update: %w", err)
		}

		u.Succeeded += succeededDelta
		u.Failed += failedDelta

		if u.Succeeded+u.Failed >= u.Total {
			now := time.Now().UTC()
			u.CompletedAt = &now
			switch {
			case u.Failed == 0:
				u.Status = UploadStatusCompleted
			case u.Succeeded == 0:
				u.Status = UploadStatusFailed
			default:
				u.Status = UploadStatusPartial
			}
		}

		if err := tx.Save(&u).Error; err != nil {
			return fmt.Errorf("save upload counts: %w", err)
		}
		return nil
	})
}

// GetUpload loads an Upload by id, with its Documents.
func (r *Repository) GetUpload(ctx context.Context, id string) (*Upload, error) {
	var u Upload
	if err := r.db.WithContext(ctx).Preload("Documents").First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &coreerrors.NotFoundError{Resource: "upload", ID: id}
		}
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return &u, nil
}

// GetDocument loads a Document by id.
func (r *Repository) GetDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &coreerrors.NotFoundError{Resource: "document", ID: id}
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

// FindDuplicateByHash looks up a prior document with the given content hash,
// scoped per DuplicateScope (spec §4.2 check_duplicate, §9 open question).
func (r *Repository) FindDuplicateByHash(ctx context.Context, hash string, scopeUploadID string, global bool) (*Document, error) {
	q := r.db.WithContext(ctx).Where("content_hash = ? AND status != ?", hash, DocumentStatusFailed)
	if !global {
		q = q.Where("upload_id = ?", scopeUploadID)
	}
	var d Document
	err := q.Order("created_at asc").First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find duplicate: %w", err)
	}
	return &d, nil
}

// ListChunks lists chunks for a document, ordered by chunk_index, with
// optional pagination.
func (r *Repository) ListChunks(ctx context.Context, docID string, page, limit int) ([]Chunk, error) {
	q := r.db.WithContext(ctx).Where("document_id = ?", docID).Order("chunk_index asc")
	if limit > 0 {
		q = q.Limit(limit).Offset(page * limit)
	}
	var chunks []Chunk
	if err := q.Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return chunks, nil
}

// ListChunksByUpload loads every chunk belonging to documents in the given
// upload, for the keyword retriever's upload-scoped corpus (spec §4.10).
func (r *Repository) ListChunksByUpload(ctx context.Context, uploadID string) ([]Chunk, error) {
	var docIDs []string
	if err := r.db.WithContext(ctx).Model(&Document{}).
		Where("upload_id = ?", uploadID).Pluck("id", &docIDs).Error; err != nil {
		return nil, fmt.Errorf("list documents for upload: %w", err)
	}
	if len(docIDs) == 0 {
		return nil, nil
	}
	var chunks []Chunk
	if err := r.db.WithContext(ctx).Where("document_id IN ?", docIDs).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by upload: %w", err)
	}
	return chunks, nil
}

// ListAllChunks loads every chunk in the store, for the keyword retriever's
// global-scoped corpus (spec §4.10).
func (r *Repository) ListAllChunks(ctx context.Context) ([]Chunk, error) {
	var chunks []Chunk
	if err := r.db.WithContext(ctx).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list all chunks: %w", err)
	}
	return chunks, nil
}

// GetChunksByIDs loads chunks by id, preserving no particular order; callers
// re-order by the ranking they already computed.
func (r *Repository) GetChunksByIDs(ctx context.Context, ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var chunks []Chunk
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("get chunks by ids: %w", err)
	}
	return chunks, nil
}

// EmbeddingKeyPair is one (chunk_id, external vector id) update.
type EmbeddingKeyPair struct {
	ChunkID        string
	EmbeddingKey   string
}

// SetChunkEmbeddingKeys batch-updates embedding_key for the given chunks.
// No-op on an empty slice (spec §4.5).
func (r *Repository) SetChunkEmbeddingKeys(ctx context.Context, pairs []EmbeddingKeyPair) error {
	if len(pairs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range pairs {
			key := p.EmbeddingKey
			if err := tx.Model(&Chunk{}).Where("id = ?", p.ChunkID).
				Update("embedding_key", &key).Error; err != nil {
				return fmt.Errorf("set embedding key for chunk %s: %w", p.ChunkID, err)
			}
		}
		return nil
	})
}

// CountIndexed reports total/indexed chunk counts for a document (spec
// §4.5 count_indexed, used by C8.status).
func (r *Repository) CountIndexed(ctx context.Context, docID string) (total, indexed int, err error) {
	var totalCount, indexedCount int64
	if err = r.db.WithContext(ctx).Model(&Chunk{}).Where("document_id = ?", docID).Count(&totalCount).Error; err != nil {
		return 0, 0, fmt.Errorf("count total chunks: %w", err)
	}
	if err = r.db.WithContext(ctx).Model(&Chunk{}).
		Where("document_id = ? AND embedding_key IS NOT NULL", docID).
		Count(&indexedCount).Error; err != nil {
		return 0, 0, fmt.Errorf("count indexed chunks: %w", err)
	}
	return int(totalCount), int(indexedCount), nil
}

// DeleteDocument deletes a document and its chunks, returning the deleted
// chunk ids and the owning upload id so callers can drive vector-store
// cleanup (spec §4.5 delete_document).
func (r *Repository) DeleteDocument(ctx context.Context, docID string) (chunkIDs []string, uploadID string, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc Document
		if e := tx.First(&doc, "id = ?", docID).Error; e != nil {
			if errors.Is(e, gorm.ErrRecordNotFound) {
				return &coreerrors.NotFoundError{Resource: "document", ID: docID}
			}
			return fmt.Errorf("load document: %w", e)
		}
		uploadID = doc.UploadID

		var chunks []Chunk
		if e := tx.Where("document_id = ?", docID).Find(&chunks).Error; e != nil {
			return fmt.Errorf("load chunks: %w", e)
		}
		for _, c := range chunks {
			chunkIDs = append(chunkIDs, c.ID)
		}

		if e := tx.Where("document_id = ?", docID).Delete(&Chunk{}).Error; e != nil {
			return fmt.Errorf("delete chunks: %w", e)
		}
		if e := tx.Delete(&doc).Error; e != nil {
			return fmt.Errorf("delete document: %w", e)
		}
		return nil
	})
	return chunkIDs, uploadID, err
}

// PersistQuery inserts a completed Query row (spec §4.5 persist_query,
// §4.15 step 10). Queries are immutable once persisted.
func (r *Repository) PersistQuery(ctx context.Context, q *Query) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Create(q).Error; err != nil {
		return fmt.Errorf("persist query: %w", err)
	}
	return nil
}

// ListQueries returns query history with pagination (spec §6).
func (r *Repository) ListQueries(ctx context.Context, page, limit int) ([]Query, error) {
	var qs []Query
	q := r.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit).Offset(page * limit)
	}
	if err := q.Find(&qs).Error; err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	return qs, nil
}

// GetQuery loads a Query by id.
func (r *Repository) GetQuery(ctx context.Context, id string) (*Query, error) {
	var q Query
	if err := r.db.WithContext(ctx).First(&q, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &coreerrors.NotFoundError{Resource: "query", ID: id}
		}
		return nil, fmt.Errorf("get query: %w", err)
	}
	return &q, nil
}
