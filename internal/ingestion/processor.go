// Package ingestion drives the extract, chunk, embed, store pipeline that
// turns source documents into searchable vectors.
package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/document"
	"github.com/infra-assist/backend/internal/embedding"
	"github.com/infra-assist/backend/internal/metrics"
	"github.com/infra-assist/backend/internal/storage/models"
	"github.com/infra-assist/backend/internal/vectorstore"
	"github.com/infra-assist/backend/pkg/logger"
)

// DocumentStore is the slice of the relational store the pipeline needs.
// InsertDocument resolves doc.ID to the row that survives a filename
// conflict, so chunks recorded afterwards always reference an existing
// document even when a rerun carries a fresh ID.
type DocumentStore interface {
	IsDocumentProcessed(filename string) (bool, error)
	MarkDocumentProcessed(filename string) error
	InsertDocument(doc *models.Document) error
	InsertChunk(chunk *models.DocumentChunk) error
}

type Processor struct {
	extractor *document.Extractor
	splitter  *document.Splitter
	embedder  embedding.Client
	store     vectorstore.Store
	db        DocumentStore
	workers   int
}

func NewProcessor(extractor *document.Extractor, splitter *document.Splitter, embedder embedding.Client, store vectorstore.Store, db DocumentStore, workers int) *Processor {
	if workers <= 0 {
		workers = 4
	}
	return &Processor{
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		db:        db,
		workers:   workers,
	}
}

// IngestDirectory processes every PDF in dir that has not been ingested
// before. A failing file is logged and skipped; it does not stop the run.
// Returns the number of files processed in this run.
func (p *Processor) IngestDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read ingest directory: %w", err)
	}

	processed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}

		done, err := p.db.IsDocumentProcessed(entry.Name())
		if err != nil {
			return processed, fmt.Errorf("failed to check processed marker: %w", err)
		}
		if done {
			logger.Debug("Skipping already processed document", zap.String("filename", entry.Name()))
			continue
		}

		if err := p.ProcessFile(ctx, filepath.Join(dir, entry.Name())); err != nil {
			if ctx.Err() != nil {
				return processed, ctx.Err()
			}
			logger.Error("Failed to process document",
				zap.String("filename", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		processed++
	}

	logger.Info("Directory ingestion complete",
		zap.String("dir", dir),
		zap.Int("processed", processed),
	)
	return processed, nil
}

// ProcessFile ingests a single PDF: extract pages, chunk, embed, store. The
// processed marker is written only after every chunk is stored, so a crashed
// run repeats the file and content-hash IDs keep the repeat idempotent.
func (p *Processor) ProcessFile(ctx context.Context, path string) error {
	filename := filepath.Base(path)
	start := time.Now()

	pages, pageErrs := p.extractor.Extract(path)
	for _, perr := range pageErrs {
		logger.Warn("Page extraction failed", zap.String("filename", filename), zap.Error(perr))
	}
	if len(pages) == 0 {
		return fmt.Errorf("no readable pages in %s", filename)
	}

	var chunks []document.Chunk
	for _, page := range pages {
		chunks = append(chunks, p.splitter.ChunkPage(filename, page)...)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks produced from %s", filename)
	}

	if err := p.storeChunks(ctx, chunks); err != nil {
		return err
	}

	doc := &models.Document{
		ID:        uuid.New().String(),
		Filename:  filename,
		Title:     strings.TrimSuffix(filename, filepath.Ext(filename)),
		Source:    "pdf",
		PageCount: len(pages),
		CreatedAt: time.Now(),
	}
	if err := p.recordDocument(doc, chunks); err != nil {
		return err
	}

	if err := p.db.MarkDocumentProcessed(filename); err != nil {
		return fmt.Errorf("failed to mark document processed: %w", err)
	}

	metrics.DocumentsProcessed.Inc()
	logger.Info("Document ingested",
		zap.String("filename", filename),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// IngestText ingests already extracted text, such as an exported wiki page or
// a rendered ticket. The source name feeds reference resolution later, so
// callers must follow the naming conventions they want recognized.
func (p *Processor) IngestText(ctx context.Context, source, title, text string) error {
	done, err := p.db.IsDocumentProcessed(source)
	if err != nil {
		return fmt.Errorf("failed to check processed marker: %w", err)
	}
	if done {
		logger.Debug("Skipping already processed document", zap.String("source", source))
		return nil
	}

	chunks := p.splitter.ChunkPage(source, document.Page{Number: 1, Text: text})
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks produced from %s", source)
	}

	if err := p.storeChunks(ctx, chunks); err != nil {
		return err
	}

	doc := &models.Document{
		ID:        uuid.New().String(),
		Filename:  source,
		Title:     title,
		Source:    "text",
		PageCount: 1,
		CreatedAt: time.Now(),
	}
	if err := p.recordDocument(doc, chunks); err != nil {
		return err
	}

	if err := p.db.MarkDocumentProcessed(source); err != nil {
		return fmt.Errorf("failed to mark document processed: %w", err)
	}

	metrics.DocumentsProcessed.Inc()
	logger.Info("Text document ingested",
		zap.String("source", source),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// storeChunks embeds chunks with a bounded worker pool and upserts them. The
// embedding service is the bottleneck, so concurrency lives here rather than
// at the file level.
func (p *Processor) storeChunks(ctx context.Context, chunks []document.Chunk) error {
	type job struct {
		idx   int
		chunk document.Chunk
	}

	jobs := make(chan job)
	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				vecs, err := p.embedder.Embed(ctx, []string{j.chunk.Text})
				if err != nil {
					errs[j.idx] = err
					continue
				}
				vectors[j.idx] = vecs[0]
			}
		}()
	}

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		jobs <- job{idx: i, chunk: chunk}
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("failed to embed chunk: %w", err)
		}
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = vectorstore.Entry{
			ID:       chunk.ID,
			Vector:   vectors[i],
			Text:     chunk.Text,
			Metadata: chunk.Metadata,
		}
	}

	if err := p.store.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	metrics.ChunksIngested.Add(float64(len(chunks)))
	return nil
}

func (p *Processor) recordDocument(doc *models.Document, chunks []document.Chunk) error {
	if err := p.db.InsertDocument(doc); err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	for _, chunk := range chunks {
		rec := &models.DocumentChunk{
			ID:         chunk.ID,
			DocumentID: doc.ID,
			Page:       chunk.Page,
			Text:       chunk.Text,
			CreatedAt:  time.Now(),
		}
		if err := p.db.InsertChunk(rec); err != nil {
			return fmt.Errorf("failed to record chunk: %w", err)
		}
	}
	return nil
}
