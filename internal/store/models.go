// Package store is the metadata store (C5): durable, transactional CRUD over
// Uploads, Documents, Chunks, and Queries, grounded on the teacher's gorm
// conventions in models/agent.go (UUID primary keys with
// gen_random_uuid() defaults, TableName overrides, JSONB columns via
// gorm.io/datatypes).
package store

import (
	"time"

	"gorm.io/datatypes"
)

// UploadStatus is the lifecycle state of an Upload (spec §3).
type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "pending"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusFailed     UploadStatus = "failed"
	UploadStatusPartial    UploadStatus = "partial"
)

// DocumentStatus is the lifecycle state of a Document (spec §3).
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// FileType enumerates the supported file formats (spec §6).
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeTXT FileType = "txt"
	FileTypeMD  FileType = "md"
)

// Upload is a batch of files submitted together (spec §3, entity U).
type Upload struct {
	ID          string `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	BatchLabel  string `gorm:"column:batch_label"`
	Status      UploadStatus `gorm:"column:status;index"`
	Total       int    `gorm:"column:total"`
	Succeeded   int    `gorm:"column:succeeded"`
	Failed      int    `gorm:"column:failed"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`

	Documents []Document `gorm:"foreignKey:UploadID;constraint:OnDelete:CASCADE"`
}

func (Upload) TableName() string { return "docqa.uploads" }

// IsTerminal reports whether the upload has reached a terminal state.
func (u *Upload) IsTerminal() bool {
	switch u.Status {
	case UploadStatusCompleted, UploadStatusFailed, UploadStatusPartial:
		return true
	default:
		return false
	}
}

// Document is one uploaded file (spec §3, entity D).
type Document struct {
	ID           string `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UploadID     string `gorm:"column:upload_id;type:uuid;index"`
	Filename     string `gorm:"column:filename"`
	FileType     FileType `gorm:"column:file_type"`
	ByteSize     int64  `gorm:"column:byte_size"`
	PageCount    int    `gorm:"column:page_count"`
	ContentHash  string `gorm:"column:content_hash;index"`
	StoragePath  string `gorm:"column:storage_path"`
	Status       DocumentStatus `gorm:"column:status;index"`
	ErrorMessage *string `gorm:"column:error_message"`
	CreatedAt    time.Time `gorm:"column:created_at"`

	Chunks []Chunk `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

func (Document) TableName() string { return "docqa.documents" }

// Chunk is a token-bounded slice of a document (spec §3, entity K).
type Chunk struct {
	ID            string `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	DocumentID    string `gorm:"column:document_id;type:uuid;index:idx_doc_chunk_index,priority:1"`
	ChunkIndex    int    `gorm:"column:chunk_index;index:idx_doc_chunk_index,priority:2"`
	Content       string `gorm:"column:content"`
	TokenCount    int    `gorm:"column:token_count"`
	StartChar     int    `gorm:"column:start_char"`
	EndChar       int    `gorm:"column:end_char"`
	PageNumber    *int   `gorm:"column:page_number"`
	EmbeddingKey  *string `gorm:"column:embedding_key"`
	Metadata      datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (Chunk) TableName() string { return "docqa.chunks" }

// IsIndexed reports whether the chunk has been acknowledged by the vector
// store (embedding_key set iff chunk successfully indexed, spec §3).
func (c *Chunk) IsIndexed() bool { return c.EmbeddingKey != nil && *c.EmbeddingKey != "" }

// Citation is one `[Source N]` reference in a generated answer (spec §3).
type Citation struct {
	DocumentID string `json:"document_id"`
	PageNumber *int   `json:"page_number"`
	Snippet    string `json:"snippet"`
	ChunkID    string `json:"chunk_id"`
}

// RetrievalStats records how a Query's context was retrieved (spec §3).
type RetrievalStats struct {
	TopK             int    `json:"top_k"`
	ChunksRetrieved  int    `json:"chunks_retrieved"`
	ChunksUsed       int    `json:"chunks_used"`
	RetrievalMethod  string `json:"retrieval_method"`
}

// Query is one answered question (spec §3, entity Q).
type Query struct {
	ID             string `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	QueryText      string `gorm:"column:query_text"`
	UploadFilter   *string `gorm:"column:upload_filter;type:uuid"`
	AnswerText     string `gorm:"column:answer_text"`
	Citations      datatypes.JSONType[[]Citation] `gorm:"column:citations"`
	UsedChunkIDs   datatypes.JSONType[[]string]   `gorm:"column:used_chunk_ids"`
	LatencyMs      int64  `gorm:"column:latency_ms"`
	RetrievalStats datatypes.JSONType[RetrievalStats] `gorm:"column:retrieval_stats"`
	CreatedAt      time.Time `gorm:"column:created_at;index"`
}

func (Query) TableName() string { return "docqa.queries" }
