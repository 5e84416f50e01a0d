package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
	"github.com/ternarybob/doctrina/internal/fetcher"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/pipeline"
)

// WebStrategy crawls http and https documentation sites
type WebStrategy struct {
	fetchers  []fetcher.Fetcher
	pipelines []pipeline.Pipeline
	renderer  *pipeline.Renderer
	config    common.CrawlerConfig
	logger    arbor.ILogger
}

// NewWebStrategy creates a web strategy. The renderer may be nil when browser
// rendering is unavailable; playwright and auto modes then fall back to plain
// fetches.
func NewWebStrategy(fetchers []fetcher.Fetcher, pipelines []pipeline.Pipeline, renderer *pipeline.Renderer, config common.CrawlerConfig, logger arbor.ILogger) *WebStrategy {
	return &WebStrategy{
		fetchers:  fetchers,
		pipelines: pipelines,
		renderer:  renderer,
		config:    config,
		logger:    logger,
	}
}

// CanHandle accepts any http or https URL
func (s *WebStrategy) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Scrape runs the BFS crawl from the start URL
func (s *WebStrategy) Scrape(ctx context.Context, opts *models.ScrapeOptions, sink Sink, progress ProgressFunc) error {
	c, err := newCrawl(opts, s.processItem(opts), sink, progress, s.logger)
	if err != nil {
		return err
	}
	return c.run(ctx)
}

// processItem fetches one page, dispatches it to a pipeline and builds the
// document
func (s *WebStrategy) processItem(opts *models.ScrapeOptions) itemProcessor {
	return func(ctx context.Context, item queueItem) (*processResult, error) {
		f := fetcher.Select(s.fetchers, item.url)
		if f == nil {
			return nil, models.NewScraperError("no fetcher for "+item.url, false, nil)
		}

		raw, err := f.Fetch(ctx, item.url, &fetcher.Options{
			FollowRedirects: opts.FollowRedirects,
			Headers:         opts.Headers,
		})
		if err != nil {
			return nil, err
		}

		if s.shouldRender(raw, opts.ScrapeMode) {
			html, err := s.renderer.Render(ctx, raw.Source, opts.Headers)
			if err != nil {
				if models.IsCancellation(err) {
					return nil, err
				}
				s.logger.Warn().Str("url", raw.Source).Err(err).Msg("Browser render failed, using fetched HTML")
			} else {
				raw.Content = []byte(html)
				raw.Charset = "utf-8"
			}
		}

		p := pipeline.Select(s.pipelines, raw.MimeType)
		if p == nil {
			s.logger.Debug().Str("url", item.url).Str("mime_type", raw.MimeType).Msg("No pipeline for content type")
			return &processResult{finalURL: raw.Source}, nil
		}

		processed, err := p.Process(ctx, raw)
		if err != nil {
			return nil, err
		}
		for _, procErr := range processed.Errors {
			s.logger.Debug().Str("url", item.url).Str("error", procErr.Message).Msg("Non-fatal processing issue")
		}

		doc := &models.Document{
			URL:     raw.Source,
			Content: processed.TextContent,
			Metadata: models.DocumentMetadata{
				Title:       processed.Title,
				Description: processed.Description,
				Path:        pathOf(raw.Source),
				Library:     opts.Library,
				Version:     opts.Version,
				ContentType: raw.MimeType,
			},
		}
		return &processResult{document: doc, links: processed.Links, finalURL: raw.Source}, nil
	}
}

// shouldRender applies the scrape mode: fetch never renders, playwright and
// auto render every HTML page
func (s *WebStrategy) shouldRender(raw *models.RawContent, mode models.ScrapeMode) bool {
	if s.renderer == nil || raw.MimeType != "text/html" {
		return false
	}
	return mode != models.ScrapeModeFetch
}

// pathOf extracts the path component for metadata
func pathOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return u.Path
	}
	if idx := strings.Index(rawURL, "://"); idx >= 0 {
		return rawURL[idx+3:]
	}
	return rawURL
}
