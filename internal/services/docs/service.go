// -----------------------------------------------------------------------
// Docs Service - the facade behind every external adapter
// -----------------------------------------------------------------------

package docs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/embeddings"
	"github.com/ternarybob/doctrina/internal/fetcher"
	"github.com/ternarybob/doctrina/internal/jobs"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/pipeline"
	"github.com/ternarybob/doctrina/internal/storage/sqlite"
)

// DefaultSearchLimit bounds a search when the caller passes no limit
const DefaultSearchLimit = 10

// VersionNotFound is the structured "no match" answer for version
// resolution. It is a response, not an error: callers list what exists.
type VersionNotFound struct {
	Requested      string   `json:"requested"`
	Available      []string `json:"available,omitempty"`
	HasUnversioned bool     `json:"has_unversioned"`
}

// SearchResponse is the envelope returned by Search
type SearchResponse struct {
	Library  string                `json:"library"`
	Version  string                `json:"version"` // resolved version, "" = unversioned
	Query    string                `json:"query"`
	Results  []models.SearchResult `json:"results,omitempty"`
	NotFound *VersionNotFound      `json:"not_found,omitempty"`
}

// Service is the thin facade over storage, jobs and pipelines that the MCP
// and CLI adapters expose
type Service struct {
	storage   *sqlite.Manager
	jobs      *jobs.Manager
	embedder  embeddings.Embedder // nil = full-text only
	fetchers  []fetcher.Fetcher
	pipelines []pipeline.Pipeline
	logger    arbor.ILogger
}

// NewService creates the docs facade
func NewService(storage *sqlite.Manager, jobManager *jobs.Manager, embedder embeddings.Embedder,
	fetchers []fetcher.Fetcher, pipelines []pipeline.Pipeline, logger arbor.ILogger) *Service {
	return &Service{
		storage:   storage,
		jobs:      jobManager,
		embedder:  embedder,
		fetchers:  fetchers,
		pipelines: pipelines,
		logger:    logger,
	}
}

// Search resolves the version and runs hybrid search. A version that cannot
// be resolved produces a NotFound envelope rather than an error; only
// invalid input and storage failures surface as errors.
func (s *Service) Search(ctx context.Context, library, version, query string, limit int) (*SearchResponse, error) {
	if library == "" {
		return nil, models.NewToolError("library is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	resp := &SearchResponse{Library: library, Query: query}

	match, err := s.storage.Libraries.FindBestVersion(ctx, library, version)
	if err != nil {
		var notFound *models.VersionNotFoundError
		if errors.As(err, &notFound) {
			resp.NotFound = &VersionNotFound{
				Requested:      version,
				Available:      notFound.Available,
				HasUnversioned: notFound.HasUnversioned,
			}
			return resp, nil
		}
		return nil, err
	}
	resp.Version = match.BestMatch

	row, err := s.storage.Libraries.GetVersion(ctx, library, resp.Version)
	if err != nil {
		return nil, err
	}
	if row == nil {
		resp.NotFound = &VersionNotFound{Requested: version, HasUnversioned: match.HasUnversioned}
		return resp, nil
	}

	results, err := s.storage.Search.HybridSearch(ctx, row.LibraryID, row.ID, query, s.queryVector(ctx, query), limit)
	if err != nil {
		return nil, err
	}
	resp.Results = results
	return resp, nil
}

// queryVector embeds the query, degrading to full-text search when the
// provider is unavailable
func (s *Service) queryVector(ctx context.Context, query string) []float32 {
	if s.embedder == nil || query == "" {
		return nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		s.logger.Warn().Err(err).Msg("Query embedding failed, searching full-text only")
		return nil
	}
	return vectors[0]
}

// FindVersion resolves a target version to the best indexed match
func (s *Service) FindVersion(ctx context.Context, library, target string) (string, *VersionNotFound, error) {
	if library == "" {
		return "", nil, models.NewToolError("library is required")
	}

	match, err := s.storage.Libraries.FindBestVersion(ctx, library, target)
	if err != nil {
		var notFound *models.VersionNotFoundError
		if errors.As(err, &notFound) {
			return "", &VersionNotFound{
				Requested:      target,
				Available:      notFound.Available,
				HasUnversioned: notFound.HasUnversioned,
			}, nil
		}
		return "", nil, err
	}
	return match.BestMatch, nil, nil
}

// ListLibraries returns every indexed library with its versions
func (s *Service) ListLibraries(ctx context.Context) ([]models.LibrarySummary, error) {
	return s.storage.Libraries.ListLibraries(ctx)
}

// Scrape enqueues a crawl job
func (s *Service) Scrape(ctx context.Context, opts models.ScrapeOptions) (*models.Job, error) {
	return s.jobs.Enqueue(ctx, opts)
}

// GetJob returns a snapshot of one job
func (s *Service) GetJob(id string) (*models.Job, bool) {
	return s.jobs.GetJob(id)
}

// ListJobs returns all jobs, optionally filtered by status
func (s *Service) ListJobs(statuses ...models.JobStatus) []*models.Job {
	return s.jobs.ListJobs(statuses...)
}

// CancelJob cancels a queued or running job
func (s *Service) CancelJob(ctx context.Context, id string) error {
	return s.jobs.Cancel(ctx, id)
}

// WaitForJob blocks until the job reaches a terminal state
func (s *Service) WaitForJob(ctx context.Context, id string) error {
	return s.jobs.WaitForCompletion(ctx, id)
}

// ClearCompletedJobs drops terminal jobs from the runtime registry
func (s *Service) ClearCompletedJobs() int {
	return s.jobs.ClearCompleted()
}

// RemoveVersion deletes a version and its documents
func (s *Service) RemoveVersion(ctx context.Context, library, version string) error {
	if library == "" {
		return models.NewToolError("library is required")
	}
	return s.storage.Libraries.RemoveVersion(ctx, library, version)
}

// FetchURL retrieves one URL and runs it through the content pipeline
// without writing anything to the store. Returns the extracted markdown.
func (s *Service) FetchURL(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	if rawURL == "" {
		return "", models.NewToolError("url is required")
	}

	f := fetcher.Select(s.fetchers, rawURL)
	if f == nil {
		return "", models.NewToolError("no fetcher can handle URL %s", rawURL)
	}

	raw, err := f.Fetch(ctx, rawURL, &fetcher.Options{FollowRedirects: true, Headers: headers})
	if err != nil {
		return "", err
	}

	p := pipeline.Select(s.pipelines, raw.MimeType)
	if p == nil {
		return "", models.NewToolError("unsupported content type %s", raw.MimeType)
	}
	processed, err := p.Process(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("failed to process %s: %w", rawURL, err)
	}
	return processed.TextContent, nil
}
