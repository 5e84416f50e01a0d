// -----------------------------------------------------------------------
// Renderer - headless Chrome pool for JavaScript-rendered pages
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
	"github.com/ternarybob/doctrina/internal/models"
)

// settleDelay gives client-side routers time to paint after load
const settleDelay = 500 * time.Millisecond

// Renderer manages a pool of headless browser contexts with round-robin
// allocation. Instances start lazily on first Render call.
type Renderer struct {
	config common.CrawlerConfig
	logger arbor.ILogger

	mu               sync.Mutex
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	currentIndex     int
	initialized      bool
}

// NewRenderer creates a renderer using the crawler configuration for pool
// size, user agent and timeouts
func NewRenderer(config common.CrawlerConfig, logger arbor.ILogger) *Renderer {
	return &Renderer{
		config: config,
		logger: logger,
	}
}

// Render loads the URL in a pooled browser and returns the DOM serialized
// after JavaScript execution. Extra headers are applied to every request the
// page makes.
func (r *Renderer) Render(ctx context.Context, pageURL string, headers map[string]string) (string, error) {
	browserCtx, err := r.acquire()
	if err != nil {
		return "", err
	}

	timeout := r.config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	taskCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	// Propagate caller cancellation into the browser task
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	tasks := chromedp.Tasks{network.Enable()}
	if len(headers) > 0 {
		extra := make(network.Headers, len(headers))
		for name, value := range headers {
			extra[name] = value
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(extra))
	}

	var html string
	tasks = append(tasks,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	err = chromedp.Run(taskCtx, tasks)
	if err != nil {
		if ctx.Err() != nil {
			return "", &models.CancellationError{Cause: ctx.Err()}
		}
		return "", models.NewScraperError(fmt.Sprintf("browser render of %s failed", pageURL), true, err)
	}

	r.logger.Debug().Str("url", pageURL).Int("html_length", len(html)).Msg("Page rendered in browser")
	return html, nil
}

// acquire returns a browser context from the pool, initializing on first use
func (r *Renderer) acquire() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		if err := r.initLocked(); err != nil {
			return nil, err
		}
	}
	if len(r.browsers) == 0 {
		return nil, models.NewScraperError("no browser instances available", false, nil)
	}

	index := r.currentIndex % len(r.browsers)
	r.currentIndex = (r.currentIndex + 1) % len(r.browsers)
	return r.browsers[index], nil
}

// initLocked starts the browser instances (mutex held)
func (r *Renderer) initLocked() error {
	size := r.config.BrowserPool
	if size <= 0 {
		size = 1
	}

	r.logger.Info().Int("pool_size", size).Msg("Starting headless browser pool")

	var lastErr error
	for i := 0; i < size; i++ {
		if err := r.startInstance(); err != nil {
			lastErr = err
			r.logger.Warn().Err(err).Int("browser_index", i).Msg("Failed to start browser instance")
		}
	}

	if len(r.browsers) == 0 {
		return models.NewScraperError("failed to start any browser instance", false, lastErr)
	}
	r.initialized = true
	return nil
}

// startInstance launches one browser and verifies it responds
func (r *Renderer) startInstance() error {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(r.config.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	r.browsers = append(r.browsers, browserCtx)
	r.browserCancels = append(r.browserCancels, browserCancel)
	r.allocatorCancels = append(r.allocatorCancels, allocatorCancel)
	return nil
}

// Close shuts down all browser instances
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cancel := range r.browserCancels {
		cancel()
	}
	for _, cancel := range r.allocatorCancels {
		cancel()
	}
	r.browsers = nil
	r.browserCancels = nil
	r.allocatorCancels = nil
	r.currentIndex = 0

	if r.initialized {
		r.logger.Info().Msg("Headless browser pool shut down")
	}
	r.initialized = false
}
