package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
	"github.com/xhad/edurag/pkg/processor"
	"github.com/xhad/edurag/pkg/store"
)

// ErrRebuildInProgress is returned when a rebuild is requested while another runs.
var ErrRebuildInProgress = errors.New("rebuild already in progress")

type Config struct {
	DocumentLimit    int
	TimeBudget       time.Duration
	BatchSize        int
	MinContentLength int
	MaxChunkContent  int
	Category         string
	Tags             []string
	Processor        processor.ProcessorConfig
}

func (c *Config) applyDefaults() {
	if c.DocumentLimit <= 0 {
		c.DocumentLimit = 50
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = 40 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MinContentLength <= 0 {
		c.MinContentLength = 20
	}
	if c.MaxChunkContent <= 0 {
		c.MaxChunkContent = 5000
	}
	if c.Category == "" {
		c.Category = "document"
	}
	if c.Tags == nil {
		c.Tags = []string{"gateway", "uploaded"}
	}
}

// Report summarizes one rebuild run.
type Report struct {
	ChunksCreated      int           `json:"chunks_created"`
	ChunksSkipped      int           `json:"chunks_skipped"`
	DocumentsProcessed int           `json:"documents_processed"`
	DocumentsSkipped   int           `json:"documents_skipped"`
	BeforeCount        int           `json:"before_count"`
	AfterCount         int           `json:"after_count"`
	Partial            bool          `json:"partial"`
	Elapsed            time.Duration `json:"-"`
	ElapsedSeconds     float64       `json:"elapsed_seconds"`
	StartedAt          time.Time     `json:"started_at"`
}

type Progress struct {
	Processed     int
	Total         int
	ChunksCreated int
}

type Result struct {
	Report *Report
	Err    error
}

// Indexer pulls documents from a source, chunks them and loads the chunks
// into a store. At most one rebuild runs at a time.
type Indexer struct {
	config    Config
	source    types.DocumentSource
	store     types.ChunkStore
	processor processor.Processor
	logger    *slog.Logger
	running   atomic.Bool
	now       func() time.Time

	OnProgress func(Progress)
}

func New(source types.DocumentSource, chunks types.ChunkStore, config Config, logger *slog.Logger) *Indexer {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		config:    config,
		source:    source,
		store:     chunks,
		processor: processor.NewWithConfig(config.Processor),
		logger:    logger,
		now:       time.Now,
	}
}

func (ix *Indexer) Running() bool {
	return ix.running.Load()
}

// Rebuild runs a full rebuild on the calling goroutine.
func (ix *Indexer) Rebuild(ctx context.Context) (*Report, error) {
	if !ix.running.CompareAndSwap(false, true) {
		return nil, ErrRebuildInProgress
	}
	defer ix.running.Store(false)

	return ix.rebuild(ctx)
}

// RebuildAsync starts a rebuild on a dedicated goroutine. The returned channel
// receives exactly one result.
func (ix *Indexer) RebuildAsync(ctx context.Context) (<-chan Result, error) {
	if !ix.running.CompareAndSwap(false, true) {
		return nil, ErrRebuildInProgress
	}

	results := make(chan Result, 1)
	go func() {
		defer close(results)
		defer ix.running.Store(false)

		report, err := ix.rebuild(ctx)
		results <- Result{Report: report, Err: err}
	}()

	return results, nil
}

// ReindexDocument replaces every chunk of one document.
func (ix *Indexer) ReindexDocument(ctx context.Context, doc models.Document) (*Report, error) {
	if !ix.running.CompareAndSwap(false, true) {
		return nil, ErrRebuildInProgress
	}
	defer ix.running.Store(false)

	start := ix.now()
	report := &Report{StartedAt: start}

	if err := ix.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	before, err := ix.store.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	report.BeforeCount = before

	removed, err := ix.store.DeleteDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove old chunks of %s: %w", doc.ID, err)
	}

	b := &batch{seen: make(map[string]bool)}
	if err := ix.processDocument(ctx, doc, b, report); err != nil {
		return nil, fmt.Errorf("failed to reindex %s: %w", doc.ID, err)
	}
	ix.flush(ctx, b, report)

	ix.finish(ctx, report, start)
	ix.logger.Info("document reindexed",
		"document_id", doc.ID,
		"removed", removed,
		"created", report.ChunksCreated,
	)
	return report, nil
}

type batch struct {
	chunks []models.DocumentChunk
	seen   map[string]bool
}

func (ix *Indexer) rebuild(ctx context.Context) (*Report, error) {
	start := ix.now()
	report := &Report{StartedAt: start}

	if err := ix.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	before, err := ix.store.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	report.BeforeCount = before

	ix.logger.Info("rebuild started", "chunks_before", before)

	docs, err := ix.source.ListRecentDocuments(ctx, ix.config.DocumentLimit)
	if err != nil {
		ix.logger.Warn("document source unavailable", "error", err)
		docs = nil
	}

	b := &batch{seen: make(map[string]bool)}
	for i, doc := range docs {
		if ix.now().Sub(start) > ix.config.TimeBudget {
			report.Partial = true
			ix.logger.Warn("rebuild time budget exhausted",
				"budget", ix.config.TimeBudget,
				"processed", i,
				"total", len(docs),
			)
			break
		}
		if ctx.Err() != nil {
			report.Partial = true
			break
		}

		if err := ix.processDocument(ctx, doc, b, report); err != nil {
			report.DocumentsSkipped++
			ix.logger.Warn("failed to index document", "document_id", doc.ID, "error", err)
		}

		if ix.OnProgress != nil {
			ix.OnProgress(Progress{Processed: i + 1, Total: len(docs), ChunksCreated: report.ChunksCreated})
		}
	}

	ix.flush(ctx, b, report)
	ix.finish(ctx, report, start)

	ix.logger.Info("rebuild finished",
		"chunks_created", report.ChunksCreated,
		"chunks_skipped", report.ChunksSkipped,
		"documents_processed", report.DocumentsProcessed,
		"documents_skipped", report.DocumentsSkipped,
		"partial", report.Partial,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// processDocument chunks one document into the pending batch, flushing full
// batches. Nothing of the document is batched unless every chunk lookup
// succeeds. A panic while handling the document is turned into an error.
func (ix *Indexer) processDocument(ctx context.Context, doc models.Document, b *batch, report *Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while indexing: %v", r)
		}
	}()

	content := processor.ChooseContent(doc.ExtractedText, doc.Summary)
	if len(content) < ix.config.MinContentLength {
		report.DocumentsSkipped++
		ix.logger.Debug("skipping short document", "document_id", doc.ID, "length", len(content))
		return nil
	}

	topic := doc.FileName
	if topic == "" {
		topic = "Document"
	}
	createdAt := ix.now()

	var pending []models.DocumentChunk
	skipped := 0
	for idx, text := range ix.processor.Split(content) {
		id := processor.ChunkID(doc.ID, idx)
		if b.seen[id] {
			skipped++
			continue
		}
		exists, err := ix.store.ChunkExists(ctx, id)
		if err != nil {
			return err
		}
		if exists {
			skipped++
			continue
		}

		pending = append(pending, models.DocumentChunk{
			ChunkID:    id,
			DocumentID: doc.ID,
			Content:    processor.Truncate(text, ix.config.MaxChunkContent),
			ChunkIndex: idx,
			Topic:      topic,
			Category:   ix.config.Category,
			Tags:       ix.config.Tags,
			CreatedAt:  createdAt,
		})
	}

	report.ChunksSkipped += skipped
	for _, chunk := range pending {
		b.seen[chunk.ChunkID] = true
		b.chunks = append(b.chunks, chunk)
		if len(b.chunks) >= ix.config.BatchSize {
			ix.flush(ctx, b, report)
		}
	}

	report.DocumentsProcessed++
	return nil
}

// flush commits pending chunks. A failed batch is dropped and counted as skipped.
func (ix *Indexer) flush(ctx context.Context, b *batch, report *Report) {
	if len(b.chunks) == 0 {
		return
	}

	inserted, err := ix.store.InsertChunks(ctx, b.chunks)
	if err != nil {
		ix.logger.Warn("failed to commit chunk batch", "size", len(b.chunks), "error", err)
		report.ChunksSkipped += len(b.chunks)
	} else {
		report.ChunksCreated += inserted
		report.ChunksSkipped += len(b.chunks) - inserted
	}
	b.chunks = b.chunks[:0]
}

func (ix *Indexer) finish(ctx context.Context, report *Report, start time.Time) {
	after, err := ix.store.CountChunks(ctx)
	if err != nil {
		ix.logger.Warn("failed to count chunks after rebuild", "error", err)
		after = report.BeforeCount + report.ChunksCreated
	}
	report.AfterCount = after
	report.Elapsed = ix.now().Sub(start)
	if report.Elapsed < 0 {
		report.Elapsed = 0
	}
	report.ElapsedSeconds = report.Elapsed.Seconds()
}
