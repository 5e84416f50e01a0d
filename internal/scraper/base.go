// -----------------------------------------------------------------------
// Crawl driver - bounded-concurrency BFS shared by all strategies
// -----------------------------------------------------------------------

package scraper

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/models"
)

// syntheticScheme marks GitHub tree entries that bypass the scope filter
const syntheticScheme = "github-file://"

// queueItem is one pending BFS entry
type queueItem struct {
	url   string
	depth int
}

// processResult is what a strategy produced for one item
type processResult struct {
	document *models.Document
	links    []string
	finalURL string
}

// itemProcessor is the per-strategy work for one queue item
type itemProcessor func(ctx context.Context, item queueItem) (*processResult, error)

// crawl drives one BFS traversal: a FIFO queue of {url, depth}, a visited set
// keyed by normalized URL, and batches of at most maxConcurrency items
type crawl struct {
	opts     *models.ScrapeOptions
	process  itemProcessor
	sink     Sink
	progress ProgressFunc
	logger   arbor.ILogger

	queue           []queueItem
	visited         map[string]bool
	totalDiscovered int
	effectiveTotal  int
	pagesScraped    int
	startURL        string
	canonicalBase   *url.URL
	scope           *ScopeFilter
	patterns        *PatternFilter
	normOpts        NormalizeOptions
}

// newCrawl seeds the traversal with the start URL at depth 0
func newCrawl(opts *models.ScrapeOptions, process itemProcessor, sink Sink, progress ProgressFunc, logger arbor.ILogger) (*crawl, error) {
	normalized := opts.Normalized()
	opts = &normalized

	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, models.NewToolError("invalid start URL: %s", opts.URL)
	}

	patterns, err := NewPatternFilter(opts.IncludePatterns, opts.ExcludePatterns)
	if err != nil {
		return nil, models.NewToolError("%s", err.Error())
	}

	c := &crawl{
		opts:          opts,
		process:       process,
		sink:          sink,
		progress:      progress,
		logger:        logger,
		visited:       make(map[string]bool),
		startURL:      opts.URL,
		canonicalBase: base,
		scope:         NewScopeFilter(opts.Scope, base),
		patterns:      patterns,
	}

	c.queue = append(c.queue, queueItem{url: opts.URL, depth: 0})
	c.visited[Normalize(opts.URL, c.normOpts)] = true
	c.totalDiscovered = 1
	c.effectiveTotal = 1
	return c, nil
}

// run walks the queue to exhaustion or the page budget. Cancellation is
// checked at the top of each iteration and before each batch item.
func (c *crawl) run(ctx context.Context) error {
	for len(c.queue) > 0 && c.pagesScraped < c.opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return &models.CancellationError{Cause: err}
		}

		batchSize := min(c.opts.MaxConcurrency, c.opts.MaxPages-c.pagesScraped, len(c.queue))
		batch := c.queue[:batchSize]
		c.queue = c.queue[batchSize:]

		results := make([]*processResult, batchSize)
		errs := make([]error, batchSize)

		var wg sync.WaitGroup
		for i, item := range batch {
			wg.Add(1)
			go func(i int, item queueItem) {
				defer wg.Done()
				if err := ctx.Err(); err != nil {
					errs[i] = &models.CancellationError{Cause: err}
					return
				}
				results[i], errs[i] = c.process(ctx, item)
			}(i, item)
		}
		wg.Wait()

		// Gather in item order so documents land in BFS visitation order
		for i, item := range batch {
			if err := errs[i]; err != nil {
				if models.IsCancellation(err) {
					return err
				}
				if !c.opts.IgnoreErrors {
					return err
				}
				c.logger.Warn().Str("url", item.url).Int("depth", item.depth).Err(err).Msg("Skipping failed page")
				continue
			}
			result := results[i]
			if result == nil {
				continue
			}

			if item.depth == 0 {
				c.adoptCanonicalBase(result.finalURL)
			}

			if result.document != nil && c.pagesScraped < c.opts.MaxPages {
				if err := c.sink(ctx, result.document); err != nil {
					return err
				}
				c.pagesScraped++
				if c.progress != nil {
					c.progress(models.JobProgress{
						Pages:      c.pagesScraped,
						TotalPages: c.effectiveTotal,
						Discovered: c.totalDiscovered,
						CurrentURL: item.url,
					})
				}
			}

			c.enqueueLinks(item, result.links)
		}
	}

	c.logger.Info().
		Str("url", c.startURL).
		Int("pages_scraped", c.pagesScraped).
		Int("discovered", c.totalDiscovered).
		Msg("Crawl finished")
	return nil
}

// adoptCanonicalBase re-bases link resolution and scope on the post-redirect
// URL of the start page. Only http and https finals qualify.
func (c *crawl) adoptCanonicalBase(finalURL string) {
	if finalURL == "" || finalURL == c.startURL {
		return
	}
	final, err := url.Parse(finalURL)
	if err != nil || (final.Scheme != "http" && final.Scheme != "https") {
		return
	}
	c.canonicalBase = final
	c.scope = NewScopeFilter(c.opts.Scope, final)
	c.logger.Debug().Str("start_url", c.startURL).Str("canonical_base", finalURL).Msg("Canonical base updated after redirect")
}

// enqueueLinks filters, deduplicates and enqueues the links of one item
func (c *crawl) enqueueLinks(item queueItem, links []string) {
	childDepth := item.depth + 1
	if childDepth > c.opts.MaxDepth {
		return
	}

	for _, link := range links {
		target, ok := c.filterLink(link)
		if !ok {
			continue
		}

		normalized := Normalize(target, c.normOpts)
		if c.visited[normalized] {
			continue
		}
		c.visited[normalized] = true
		c.totalDiscovered++
		if c.effectiveTotal < c.opts.MaxPages {
			c.effectiveTotal++
		}
		c.queue = append(c.queue, queueItem{url: target, depth: childDepth})
	}
}

// filterLink resolves a link against the canonical base and applies scope and
// pattern filters. Synthetic github-file links bypass scope but still pass
// the pattern filter against the file path.
func (c *crawl) filterLink(link string) (string, bool) {
	if strings.HasPrefix(link, syntheticScheme) {
		return link, c.patterns.Allowed(link)
	}

	target, err := c.canonicalBase.Parse(link)
	if err != nil {
		return "", false
	}
	if !c.scope.InScope(target) {
		return "", false
	}
	resolved := target.String()
	return resolved, c.patterns.Allowed(resolved)
}
