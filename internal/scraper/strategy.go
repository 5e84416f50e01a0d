// -----------------------------------------------------------------------
// Scraper Strategies - BFS URL walk under a scope, feeding pipelines
// -----------------------------------------------------------------------

package scraper

import (
	"context"

	"github.com/ternarybob/doctrina/internal/models"
)

// Sink receives each scraped document in BFS visitation order
type Sink func(ctx context.Context, doc *models.Document) error

// ProgressFunc is invoked once per scraped document
type ProgressFunc func(progress models.JobProgress)

// Strategy crawls one class of source URL
type Strategy interface {
	CanHandle(rawURL string) bool
	Scrape(ctx context.Context, opts *models.ScrapeOptions, sink Sink, progress ProgressFunc) error
}

// SelectStrategy returns the first strategy in order that can handle the URL
func SelectStrategy(strategies []Strategy, rawURL string) Strategy {
	for _, s := range strategies {
		if s.CanHandle(rawURL) {
			return s
		}
	}
	return nil
}
