// -----------------------------------------------------------------------
// Job Executor - crawl, chunk, embed and persist one scrape job
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/embeddings"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/pipeline"
	"github.com/ternarybob/doctrina/internal/scraper"
	"github.com/ternarybob/doctrina/internal/storage/sqlite"
)

// embedBatchSize bounds the texts sent to the provider in one request
const embedBatchSize = 32

// Executor runs one scrape job end to end: strategy crawl, chunking,
// embedding, and a single transactional document swap. Partial document sets
// never reach storage; a cancelled or failed crawl leaves the previous
// content in place.
type Executor struct {
	strategies []scraper.Strategy
	storage    *sqlite.Manager
	embedder   embeddings.Embedder // nil disables vectors
	chunkSize  int
	logger     arbor.ILogger
}

// NewExecutor creates a job executor
func NewExecutor(strategies []scraper.Strategy, storage *sqlite.Manager, embedder embeddings.Embedder, logger arbor.ILogger) *Executor {
	return &Executor{
		strategies: strategies,
		storage:    storage,
		embedder:   embedder,
		chunkSize:  pipeline.DefaultChunkSize,
		logger:     logger,
	}
}

// Execute crawls the job's URL and replaces the version's document set.
// Returns the number of documents persisted.
func (e *Executor) Execute(ctx context.Context, job *models.Job, libraryID, versionID int64, progress scraper.ProgressFunc) (int, error) {
	strategy := scraper.SelectStrategy(e.strategies, job.Options.URL)
	if strategy == nil {
		return 0, models.NewToolError("no strategy can handle URL %s", job.Options.URL)
	}

	// Buffer the crawl output; storage sees it only after a full crawl
	var collected []*models.Document
	sink := func(ctx context.Context, doc *models.Document) error {
		doc.Metadata.Library = job.Library
		doc.Metadata.Version = job.Version
		collected = append(collected, doc)
		return nil
	}

	opts := job.Options
	if err := strategy.Scrape(ctx, &opts, sink, progress); err != nil {
		return 0, err
	}

	chunked := e.chunkAll(collected)
	e.embedAll(ctx, chunked)

	if err := ctx.Err(); err != nil {
		return 0, &models.CancellationError{Cause: err}
	}
	if err := e.storage.Documents.ReplaceDocuments(ctx, libraryID, versionID, chunked); err != nil {
		return 0, err
	}

	e.logger.Info().
		Str("job_id", job.ID).
		Str("library", job.Library).
		Int("pages", len(collected)).
		Int("chunks", len(chunked)).
		Msg("Scrape job persisted")
	return len(chunked), nil
}

func (e *Executor) chunkAll(docs []*models.Document) []*models.Document {
	var chunked []*models.Document
	for _, doc := range docs {
		chunked = append(chunked, pipeline.ChunkDocument(doc, e.chunkSize)...)
	}
	return chunked
}

// embedAll populates document embeddings in batches. Embedding failures do
// not abort the job; affected documents stay searchable via full text only.
func (e *Executor) embedAll(ctx context.Context, docs []*models.Document) {
	if e.embedder == nil || len(docs) == 0 {
		return
	}

	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = embeddingText(doc)
		}

		vectors, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if models.IsCancellation(err) || ctx.Err() != nil {
				return
			}
			e.logger.Warn().
				Err(err).
				Int("batch_start", start).
				Int("batch_size", len(batch)).
				Msg("Embedding batch failed, documents will be full-text only")
			continue
		}
		for i, vec := range vectors {
			batch[i].Embedding = vec
		}
	}
}

// embeddingText weights the title alongside the content
func embeddingText(doc *models.Document) string {
	if doc.Metadata.Title == "" {
		return doc.Content
	}
	return fmt.Sprintf("%s\n\n%s", doc.Metadata.Title, doc.Content)
}
