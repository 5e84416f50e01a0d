// -----------------------------------------------------------------------
// App - dependency wiring for the doctrina binaries
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
	"github.com/ternarybob/doctrina/internal/embeddings"
	"github.com/ternarybob/doctrina/internal/fetcher"
	"github.com/ternarybob/doctrina/internal/jobs"
	"github.com/ternarybob/doctrina/internal/pipeline"
	"github.com/ternarybob/doctrina/internal/scraper"
	"github.com/ternarybob/doctrina/internal/services/docs"
	"github.com/ternarybob/doctrina/internal/storage/sqlite"
)

// App bundles every service the binaries need
type App struct {
	Config   *common.Config
	Logger   arbor.ILogger
	Storage  *sqlite.Manager
	Embedder embeddings.Embedder
	Jobs     *jobs.Manager
	Docs     *docs.Service

	renderer *pipeline.Renderer
}

// New wires storage, embeddings, strategies and the job pipeline from the
// loaded configuration
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	embedder, err := embeddings.NewEmbedder(config.Embeddings, logger)
	if err != nil {
		return nil, err
	}

	dimension := config.Embeddings.Dimension
	if embedder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		dim, err := embedder.Dimensions(ctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve embedding dimension: %w", err)
		}
		dimension = dim
	}
	if dimension <= 0 {
		dimension = 1536
	}

	storage, err := sqlite.NewManager(config.Storage, dimension, logger)
	if err != nil {
		return nil, err
	}

	httpFetcher := fetcher.NewHTTPFetcher(config.Crawler, logger)
	fileFetcher := fetcher.NewFileFetcher(logger)
	fetchers := []fetcher.Fetcher{httpFetcher, fileFetcher}

	pipelines := []pipeline.Pipeline{
		pipeline.NewHTMLPipeline(logger),
		pipeline.NewMarkdownPipeline(logger),
		pipeline.NewSourcePipeline(logger),
		pipeline.NewTextPipeline(logger),
	}

	var renderer *pipeline.Renderer
	if config.Crawler.ScrapeMode != "fetch" {
		renderer = pipeline.NewRenderer(config.Crawler, logger)
	}

	strategies := []scraper.Strategy{
		scraper.NewGitHubStrategy(httpFetcher, pipelines, os.Getenv("GITHUB_TOKEN"), logger),
		scraper.NewLocalStrategy(fileFetcher, pipelines, logger),
		scraper.NewWebStrategy(fetchers, pipelines, renderer, config.Crawler, logger),
	}

	executor := jobs.NewExecutor(strategies, storage, embedder, logger)
	jobManager := jobs.NewManager(config.Jobs, storage, executor, logger)

	service := docs.NewService(storage, jobManager, embedder, fetchers, pipelines, logger)

	return &App{
		Config:   config,
		Logger:   logger,
		Storage:  storage,
		Embedder: embedder,
		Jobs:     jobManager,
		Docs:     service,
		renderer: renderer,
	}, nil
}

// Start launches the job pipeline
func (a *App) Start(ctx context.Context) error {
	return a.Jobs.Start(ctx)
}

// Close stops the job pipeline and releases browsers and the database
func (a *App) Close() {
	a.Jobs.Stop()
	if a.renderer != nil {
		a.renderer.Close()
	}
	if err := a.Storage.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close storage")
	}
}
