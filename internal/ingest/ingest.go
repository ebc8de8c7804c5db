// Package ingest implements the Ingestion Orchestrator (C9): per-batch
// validation, bounded-concurrency per-file processing, and atomic
// document+chunk persistence, grounded on the
// sync.WaitGroup+buffered-channel concurrency idiom of
// test/execution_engine_test.go's TestExecutionEngineConcurrency.
package ingest

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/docqa/ragcore/internal/chunk"
	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/extract"
	"github.com/docqa/ragcore/internal/store"
	"github.com/docqa/ragcore/internal/validation"
)

// File is one member of an ingest batch: a filename, its declared size, and
// a reader over its bytes.
type File struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// IndexScheduler enqueues a background indexing job for a document (spec
// §4.9 step 3h); the task queue implementation backs this with asynq.
type IndexScheduler interface {
	ScheduleIndexDocument(ctx context.Context, docID string) error
}

// Config carries the ingest-tuning knobs of spec §4.9/§6.
type Config struct {
	IngestConcurrency int
	DuplicateGlobal   bool // true: duplicate scope is "global"; false: "per_upload"
}

// Orchestrator wires C2, C3, C4, C5, C9's storage, and the index scheduler
// together.
type Orchestrator struct {
	validator *validation.Validator
	extractor *extract.Extractor
	chunker   *chunk.Chunker
	repo      *store.Repository
	storage   Storage
	scheduler IndexScheduler
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(validator *validation.Validator, extractor *extract.Extractor, chunker *chunk.Chunker, repo *store.Repository, storage Storage, scheduler IndexScheduler, cfg Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		validator: validator, extractor: extractor, chunker: chunker,
		repo: repo, storage: storage, scheduler: scheduler, cfg: cfg, logger: logger,
	}
}

// BatchResult summarizes the outcome of IngestBatch.
type BatchResult struct {
	UploadID string
	Status   store.UploadStatus
}

// IngestBatch runs the spec §4.9 ingest_batch algorithm.
func (o *Orchestrator) IngestBatch(ctx context.Context, batchLabel string, files []File) (*BatchResult, error) {
	if err := o.validator.ValidateBatch(len(files)); err != nil {
		return nil, err
	}

	upload, err := o.repo.CreateUpload(ctx, batchLabel, len(files))
	if err != nil {
		return nil, err
	}

	concurrency := o.cfg.IngestConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, f := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(f File) {
			defer wg.Done()
			defer func() { <-sem }()
			succeeded := o.processFile(ctx, upload.ID, f)
			delta := 1
			if succeeded {
				if err := o.repo.IncrementUploadCounts(ctx, upload.ID, delta, 0); err != nil {
					o.logger.Error("ingest.increment_counts_failed", zap.String("upload_id", upload.ID), zap.Error(err))
				}
			} else {
				if err := o.repo.IncrementUploadCounts(ctx, upload.ID, 0, delta); err != nil {
					o.logger.Error("ingest.increment_counts_failed", zap.String("upload_id", upload.ID), zap.Error(err))
				}
			}
		}(f)
	}
	wg.Wait()

	final, err := o.repo.GetUpload(ctx, upload.ID)
	if err != nil {
		return nil, err
	}
	return &BatchResult{UploadID: final.ID, Status: final.Status}, nil
}

// processFile runs steps 3a-3h of spec §4.9 for one file, returning whether
// the document was ingested successfully.
func (o *Orchestrator) processFile(ctx context.Context, uploadID string, f File) bool {
	fail := func(fileType store.FileType, err error) bool {
		msg := err.Error()
		if _, recErr := o.repo.RecordFailedDocument(ctx, uploadID, f.Filename, fileType, msg); recErr != nil {
			o.logger.Error("ingest.record_failed_document_error", zap.String("filename", f.Filename), zap.Error(recErr))
		}
		o.logger.Warn("ingest.file_failed", zap.String("filename", f.Filename), zap.Error(err))
		return false
	}

	writer, path, err := o.storage.Create(ctx, uploadID, f.Filename)
	if err != nil {
		return fail("", err)
	}
	tee := io.TeeReader(f.Content, writer)
	info, err := o.validator.ValidateFile(f.Filename, f.Size, tee)
	writer.Close()
	if err != nil {
		return fail(store.FileType(""), err)
	}

	existingID, err := o.validator.CheckDuplicate(ctx, o.repo, info.Hash, uploadID, o.cfg.DuplicateGlobal)
	if err != nil {
		return fail(info.FileType, err)
	}
	if existingID != "" {
		return fail(info.FileType, &coreerrors.DuplicateDocumentError{Hash: info.Hash, ExistingDocID: existingID})
	}

	extracted, err := o.extractor.Extract(ctx, path, info.FileType)
	if err != nil {
		return fail(info.FileType, err)
	}

	chunks, err := o.chunker.Chunk(extracted.Text, chunk.Options{PageOf: pageStrategy(info.FileType, extracted)})
	if err != nil {
		return fail(info.FileType, err)
	}

	doc, err := o.repo.AppendDocument(ctx, uploadID, store.DocumentAttrs{
		Filename:    f.Filename,
		FileType:    info.FileType,
		ByteSize:    info.Size,
		PageCount:   extracted.PageCount,
		ContentHash: info.Hash,
		StoragePath: path,
	}, chunks)
	if err != nil {
		return fail(info.FileType, err)
	}

	if err := o.scheduler.ScheduleIndexDocument(ctx, doc.ID); err != nil {
		o.logger.Error("ingest.schedule_index_failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
	o.logger.Info("ingest.document_ingested", zap.String("document_id", doc.ID), zap.String("filename", f.Filename))
	return true
}

// pageStrategy picks the page-attribution function per spec §4.4's table.
func pageStrategy(fileType store.FileType, extracted *extract.Result) func(int) *int {
	switch fileType {
	case store.FileTypePDF:
		return chunk.PageFromBreaks(extracted.PerPageBreaks)
	case store.FileTypeDOCX:
		return chunk.EstimatedPage(1800)
	default:
		return chunk.ConstantPage(1)
	}
}
