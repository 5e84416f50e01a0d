package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/doctrina/internal/common"
	"github.com/ternarybob/doctrina/internal/fetcher"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/pipeline"
)

// docCollector is a Sink that records documents in arrival order
type docCollector struct {
	mu   sync.Mutex
	docs []*models.Document
}

func (c *docCollector) sink(ctx context.Context, doc *models.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, doc)
	return nil
}

func newTestWebStrategy(t *testing.T) *WebStrategy {
	t.Helper()
	logger := common.GetLogger()
	cfg := common.DefaultConfig().Crawler
	cfg.MaxRetries = 0
	cfg.RequestDelay = 0
	cfg.RequestTimeout = 5 * time.Second

	fetchers := []fetcher.Fetcher{fetcher.NewHTTPFetcher(cfg, logger)}
	pipelines := []pipeline.Pipeline{
		pipeline.NewHTMLPipeline(logger),
		pipeline.NewMarkdownPipeline(logger),
		pipeline.NewSourcePipeline(logger),
		pipeline.NewTextPipeline(logger),
	}
	return NewWebStrategy(fetchers, pipelines, nil, cfg, logger)
}

func webOpts(startURL string) *models.ScrapeOptions {
	opts := models.DefaultScrapeOptions()
	opts.URL = startURL
	opts.Library = "test-lib"
	opts.Version = "1.0.0"
	opts.ScrapeMode = models.ScrapeModeFetch
	opts.ExcludePatterns = []string{}
	return &opts
}

func TestWebStrategyRedirectCanonicalization(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/en-us/azure/bot-service", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery == "" {
			http.Redirect(w, r, "/en-us/azure/bot-service/?view=azure-bot-service-4.0", http.StatusMovedPermanently)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/en-us/azure/bot-service/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><title>Bot Service</title><body>
			<a href="bot-overview?view=azure-bot-service-4.0">Overview</a>
		</body></html>`))
	})
	mux.HandleFunc("/en-us/azure/bot-service/bot-overview", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><title>Overview</title><body>overview body</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestWebStrategy(t)
	collector := &docCollector{}
	opts := webOpts(server.URL + "/en-us/azure/bot-service")

	err := s.Scrape(context.Background(), opts, collector.sink, nil)
	require.NoError(t, err)

	require.Len(t, collector.docs, 2)
	// The relative link resolved against the post-redirect URL
	assert.Equal(t, server.URL+"/en-us/azure/bot-service/bot-overview?view=azure-bot-service-4.0",
		collector.docs[1].URL)
}

func TestWebStrategySubpagesScope(t *testing.T) {
	var fetched []string
	var mu sync.Mutex

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetched = append(fetched, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/api/index.html":
			w.Write([]byte(`<html><body>
				<a href="aiq/agent/index.html">In scope</a>
				<a href="../shared/index.html">Out of scope</a>
			</body></html>`))
		default:
			w.Write([]byte(`<html><body>leaf</body></html>`))
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestWebStrategy(t)
	collector := &docCollector{}
	err := s.Scrape(context.Background(), webOpts(server.URL+"/api/index.html"), collector.sink, nil)
	require.NoError(t, err)

	require.Len(t, collector.docs, 2)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, fetched, "/api/aiq/agent/index.html")
	assert.NotContains(t, fetched, "/shared/index.html")
}

func TestWebStrategyMaxPagesOne(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/a">a</a><a href="/b">b</a></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestWebStrategy(t)
	collector := &docCollector{}
	opts := webOpts(server.URL + "/")
	opts.MaxPages = 1

	err := s.Scrape(context.Background(), opts, collector.sink, nil)
	require.NoError(t, err)
	assert.Len(t, collector.docs, 1)
}

func TestWebStrategyMaxDepthZero(t *testing.T) {
	var requests int
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/next">next</a></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestWebStrategy(t)
	collector := &docCollector{}
	opts := webOpts(server.URL + "/")
	opts.MaxDepth = 0

	err := s.Scrape(context.Background(), opts, collector.sink, nil)
	require.NoError(t, err)

	assert.Len(t, collector.docs, 1)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, requests)
}

func TestWebStrategyVisitedDeduplication(t *testing.T) {
	var requests []string
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
			<a href="/page">one</a>
			<a href="/page#section">two</a>
			<a href="/page/">three</a>
		</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestWebStrategy(t)
	collector := &docCollector{}
	opts := webOpts(server.URL + "/")
	opts.MaxDepth = 1

	err := s.Scrape(context.Background(), opts, collector.sink, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	count := 0
	for _, p := range requests {
		if p == "/page" || p == "/page/" {
			count++
		}
	}
	assert.Equal(t, 1, count, "normalized duplicates fetched once")
}

func TestWebStrategyIgnoreErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/missing">gone</a><a href="/ok">ok</a></body></html>`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>fine</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestWebStrategy(t)

	collector := &docCollector{}
	err := s.Scrape(context.Background(), webOpts(server.URL+"/"), collector.sink, nil)
	require.NoError(t, err)
	assert.Len(t, collector.docs, 2)

	strict := webOpts(server.URL + "/")
	strict.IgnoreErrors = false
	err = s.Scrape(context.Background(), strict, (&docCollector{}).sink, nil)
	require.Error(t, err)
	var scraperErr *models.ScraperError
	assert.ErrorAs(t, err, &scraperErr)
}

func TestWebStrategyCancellation(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/slow">slow</a></body></html>`))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	s := newTestWebStrategy(t)
	err := s.Scrape(ctx, webOpts(server.URL+"/"), (&docCollector{}).sink, nil)
	require.Error(t, err)
	assert.True(t, models.IsCancellation(err))
}

func TestWebStrategyProgressReporting(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/a">a</a></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	var updates []models.JobProgress
	s := newTestWebStrategy(t)
	err := s.Scrape(context.Background(), webOpts(server.URL+"/"), (&docCollector{}).sink,
		func(p models.JobProgress) { updates = append(updates, p) })
	require.NoError(t, err)

	require.Len(t, updates, 2)
	assert.Equal(t, 1, updates[0].Pages)
	assert.Equal(t, 2, updates[1].Pages)
	// Pages are monotonic and discovered never shrinks
	assert.GreaterOrEqual(t, updates[1].Discovered, updates[0].Discovered)
}
