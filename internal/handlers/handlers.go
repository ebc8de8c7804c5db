package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/indexer"
	"github.com/docqa/ragcore/internal/ingest"
	"github.com/docqa/ragcore/internal/queryengine"
	"github.com/docqa/ragcore/internal/store"
	"github.com/docqa/ragcore/internal/vectorstore"
)

// Handlers wires the core's orchestration entry points (C8, C9, C15, C5) to
// gin routes (spec §6's "logical operations" table).
type Handlers struct {
	orchestrator *ingest.Orchestrator
	indexer      *indexer.Indexer
	repo         *store.Repository
	engine       *queryengine.Engine
	vs           vectorstore.Store
	redis        *redis.Client
	logger       *zap.Logger
}

// New constructs Handlers. redisClient feeds the /health dependency probe.
func New(orchestrator *ingest.Orchestrator, ix *indexer.Indexer, repo *store.Repository, engine *queryengine.Engine, vs vectorstore.Store, redisClient *redis.Client, logger *zap.Logger) *Handlers {
	return &Handlers{orchestrator: orchestrator, indexer: ix, repo: repo, engine: engine, vs: vs, redis: redisClient, logger: logger}
}

// Register mounts every route onto router (spec §6's operations table).
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/uploads", h.CreateUpload)
		v1.GET("/uploads/:id", h.GetUpload)

		v1.GET("/documents/:id", h.GetDocument)
		v1.GET("/documents/:id/chunks", h.ListDocumentChunks)
		v1.DELETE("/documents/:id", h.DeleteDocument)
		v1.POST("/documents/:id/reindex", h.ReindexDocument)
		v1.GET("/documents/:id/indexing-status", h.DocumentIndexingStatus)

		v1.POST("/queries", h.CreateQuery)
		v1.GET("/queries", h.ListQueries)
		v1.GET("/queries/:id", h.GetQuery)
	}
}

// Health reports process liveness plus a probe of each dependency (spec §6
// "read health: dependency probes"), mirroring the teacher's
// Redis-reachability check in cmd/main.go's NewCacheService wiring.
func (h *Handlers) Health(c *gin.Context) {
	ctx := c.Request.Context()
	deps := gin.H{}
	healthy := true

	if err := h.repo.Ping(ctx); err != nil {
		deps["database"] = "down"
		healthy = false
	} else {
		deps["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			deps["redis"] = "down"
			healthy = false
		} else {
			deps["redis"] = "ok"
		}
	}

	if _, err := h.vs.Stats(ctx, ""); err != nil {
		deps["vector_store"] = "down"
		healthy = false
	} else {
		deps["vector_store"] = "ok"
	}

	status := http.StatusOK
	statusText := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}
	c.JSON(status, gin.H{"status": statusText, "dependencies": deps})
}

// CreateUpload ingests up to MaxDocsPerBatch files (spec §6 "create
// upload"). Each part of a multipart/form-data body becomes one
// ingest.File; validation and persistence happen inside the Ingestion
// Orchestrator (C9).
func (h *Handlers) CreateUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		writeError(c, &coreerrors.FileValidationError{Kind: coreerrors.FileValidationEmpty, Detail: "malformed multipart body"})
		return
	}

	fileHeaders := form.File["files"]
	files := make([]ingest.File, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			writeError(c, &coreerrors.FileValidationError{Kind: coreerrors.FileValidationEmpty, Filename: fh.Filename, Detail: "could not open upload part"})
			return
		}
		defer f.Close()
		files = append(files, ingest.File{Filename: fh.Filename, Size: fh.Size, Content: f})
	}

	batchLabel := c.PostForm("batch_label")

	result, err := h.orchestrator.IngestBatch(c.Request.Context(), batchLabel, files)
	if err != nil {
		writeError(c, err)
		return
	}

	upload, err := h.repo.GetUpload(c.Request.Context(), result.UploadID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, uploadView(upload))
}

// GetUpload returns batch status, per-doc state, and counts (spec §6 "read
// upload / upload progress").
func (h *Handlers) GetUpload(c *gin.Context) {
	upload, err := h.repo.GetUpload(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, uploadView(upload))
}

// GetDocument returns one document's metadata (spec §6 "list/read/delete
// document").
func (h *Handlers) GetDocument(c *gin.Context) {
	doc, err := h.repo.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentView(doc))
}

// ListDocumentChunks paginates a document's chunks.
func (h *Handlers) ListDocumentChunks(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 50)

	chunks, err := h.repo.ListChunks(c.Request.Context(), c.Param("id"), page-1, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks, "page": page, "limit": limit})
}

// DeleteDocument removes a document, its chunks, and its vectors (spec §6
// "list/read/delete document"; cascades per spec §3's ownership rules).
func (h *Handlers) DeleteDocument(c *gin.Context) {
	docID := c.Param("id")

	if err := h.indexer.DeleteDocumentVectors(c.Request.Context(), docID); err != nil {
		writeError(c, err)
		return
	}
	if _, _, err := h.repo.DeleteDocument(c.Request.Context(), docID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReindexDocument forces re-embedding of every chunk of a document (spec §6
// "list/read/delete document ... reindex").
func (h *Handlers) ReindexDocument(c *gin.Context) {
	result, err := h.indexer.ReindexDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"indexed": result.Indexed, "skipped": result.Skipped, "failed": result.Failed})
}

// DocumentIndexingStatus reports {total, indexed, pending, percent} (spec
// §6 "read document indexing-status").
func (h *Handlers) DocumentIndexingStatus(c *gin.Context) {
	status, err := h.indexer.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   status.TotalChunks,
		"indexed": status.IndexedChunks,
		"pending": status.PendingChunks,
		"percent": status.Percent,
	})
}

// createQueryRequest is the CreateQuery request body.
type createQueryRequest struct {
	QueryText    string  `json:"query_text" binding:"required"`
	UploadFilter string  `json:"upload_filter"`
	Method       string  `json:"method"`
	TopK         int     `json:"top_k"`
	MMRLambda    float64 `json:"mmr_lambda"`
}

// CreateQuery submits a question and returns the generated answer with
// citations (spec §6 "create query").
func (h *Handlers) CreateQuery(c *gin.Context) {
	var req createQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &coreerrors.InvalidQueryError{Reason: "malformed request body"})
		return
	}

	q, err := h.engine.Answer(c.Request.Context(), req.QueryText, queryengine.Opts{
		Method:       queryengine.Method(req.Method),
		UploadFilter: req.UploadFilter,
		TopK:         req.TopK,
		MMRLambda:    req.MMRLambda,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queryView(q))
}

// ListQueries paginates past queries (spec §6 "list/read query history").
func (h *Handlers) ListQueries(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	queries, err := h.repo.ListQueries(c.Request.Context(), page-1, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]gin.H, len(queries))
	for i := range queries {
		views[i] = queryView(&queries[i])
	}
	c.JSON(http.StatusOK, gin.H{"queries": views, "page": page, "limit": limit})
}

// GetQuery returns one past query by id (spec §6 "list/read query
// history").
func (h *Handlers) GetQuery(c *gin.Context) {
	q, err := h.repo.GetQuery(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queryView(q))
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func uploadView(u *store.Upload) gin.H {
	return gin.H{
		"id":           u.ID,
		"batch_label":  u.BatchLabel,
		"status":       u.Status,
		"total":        u.Total,
		"succeeded":    u.Succeeded,
		"failed":       u.Failed,
		"created_at":   u.CreatedAt,
		"completed_at": u.CompletedAt,
		"documents":    u.Documents,
	}
}

func documentView(d *store.Document) gin.H {
	return gin.H{
		"id":            d.ID,
		"upload_id":     d.UploadID,
		"filename":      d.Filename,
		"file_type":     d.FileType,
		"byte_size":     d.ByteSize,
		"page_count":    d.PageCount,
		"content_hash":  d.ContentHash,
		"status":        d.Status,
		"error_message": d.ErrorMessage,
		"created_at":    d.CreatedAt,
	}
}

func queryView(q *store.Query) gin.H {
	return gin.H{
		"id":              q.ID,
		"query_text":      q.QueryText,
		"upload_filter":   q.UploadFilter,
		"answer_text":     q.AnswerText,
		"citations":       q.Citations.Data(),
		"used_chunk_ids":  q.UsedChunkIDs.Data(),
		"latency_ms":      q.LatencyMs,
		"retrieval_stats": q.RetrievalStats.Data(),
		"created_at":      q.CreatedAt,
	}
}
