package scraper

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/fetcher"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/pipeline"
)

// LocalStrategy indexes files and directory trees from the local filesystem
type LocalStrategy struct {
	fetcher   fetcher.Fetcher
	pipelines []pipeline.Pipeline
	logger    arbor.ILogger
}

// NewLocalStrategy creates a local filesystem strategy
func NewLocalStrategy(fileFetcher fetcher.Fetcher, pipelines []pipeline.Pipeline, logger arbor.ILogger) *LocalStrategy {
	return &LocalStrategy{
		fetcher:   fileFetcher,
		pipelines: pipelines,
		logger:    logger,
	}
}

// CanHandle accepts file:// URLs
func (s *LocalStrategy) CanHandle(rawURL string) bool {
	return strings.HasPrefix(rawURL, "file://")
}

// Scrape walks the directory tree (or single file) under the start URL
func (s *LocalStrategy) Scrape(ctx context.Context, opts *models.ScrapeOptions, sink Sink, progress ProgressFunc) error {
	c, err := newCrawl(opts, s.processItem(opts), sink, progress, s.logger)
	if err != nil {
		return err
	}
	return c.run(ctx)
}

// processItem lists a directory as links or processes a single file into a
// document
func (s *LocalStrategy) processItem(opts *models.ScrapeOptions) itemProcessor {
	return func(ctx context.Context, item queueItem) (*processResult, error) {
		localPath, err := localPathOf(item.url)
		if err != nil {
			return nil, models.NewToolError("%s", err.Error())
		}

		info, err := os.Stat(localPath)
		if err != nil {
			return nil, models.NewScraperError("cannot stat "+localPath, false, err)
		}

		if info.IsDir() {
			return s.listDirectory(localPath)
		}
		return s.processFile(ctx, opts, item.url, localPath)
	}
}

// listDirectory emits each entry as a file:// link. Hidden entries are
// skipped; everything else goes through the normal pattern filter.
func (s *LocalStrategy) listDirectory(dir string) (*processResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, models.NewScraperError("cannot read directory "+dir, false, err)
	}

	var links []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		child := filepath.Join(dir, entry.Name())
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(child)}
		links = append(links, u.String())
	}

	s.logger.Debug().Str("dir", dir).Int("entries", len(links)).Msg("Directory listed")
	return &processResult{links: links}, nil
}

func (s *LocalStrategy) processFile(ctx context.Context, opts *models.ScrapeOptions, fileURL, localPath string) (*processResult, error) {
	raw, err := s.fetcher.Fetch(ctx, fileURL, nil)
	if err != nil {
		return nil, err
	}

	p := pipeline.Select(s.pipelines, raw.MimeType)
	if p == nil {
		return &processResult{}, nil
	}

	processed, err := p.Process(ctx, raw)
	if err != nil {
		return nil, err
	}

	title := processed.Title
	if title == "" {
		title = filepath.Base(localPath)
	}

	doc := &models.Document{
		URL:     fileURL,
		Content: processed.TextContent,
		Metadata: models.DocumentMetadata{
			Title:       title,
			Description: processed.Description,
			Path:        localPath,
			Library:     opts.Library,
			Version:     opts.Version,
			ContentType: raw.MimeType,
		},
	}
	// Local markdown cross-links are reached through the directory walk, so
	// pipeline links are not followed here
	return &processResult{document: doc}, nil
}

// localPathOf converts a file:// URL to a filesystem path
func localPathOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid file URL %q: %w", rawURL, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file URL: %s", rawURL)
	}
	p := u.Path
	if u.Host != "" && u.Host != "localhost" {
		p = "/" + u.Host + u.Path
	}
	return p, nil
}
