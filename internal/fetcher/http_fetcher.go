package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
	"github.com/ternarybob/doctrina/internal/models"
	"golang.org/x/time/rate"
)

// retryableStatusCodes lists HTTP statuses worth another attempt
var retryableStatusCodes = map[int]bool{
	408: true, // Request Timeout
	429: true, // Too Many Requests
	500: true, // Internal Server Error
	502: true, // Bad Gateway
	503: true, // Service Unavailable
	504: true, // Gateway Timeout
	525: true, // Cloudflare SSL handshake failure
}

// fingerprintHeaders mimic a desktop browser; servers behind bot protection
// reject the Go default User-Agent outright.
var fingerprintHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	// zstd is deliberately absent: the client cannot transparently decode it
	"Accept-Encoding":           "gzip, deflate, br",
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"Windows"`,
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Upgrade-Insecure-Requests": "1",
}

const maxRedirectHops = 5

// HTTPFetcher fetches http and https URLs with retry, redirect control and
// per-host politeness delay.
type HTTPFetcher struct {
	transport http.RoundTripper
	config    common.CrawlerConfig
	logger    arbor.ILogger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates an HTTP fetcher using the crawler configuration for
// timeouts, retries and politeness delay.
func NewHTTPFetcher(config common.CrawlerConfig, logger arbor.ILogger) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Decompression is handled here, not by the transport
	transport.DisableCompression = true

	return &HTTPFetcher{
		transport: transport,
		config:    config,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// CanHandle accepts http and https URLs
func (f *HTTPFetcher) CanHandle(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Fetch retrieves the URL, retrying retryable failures with exponential
// backoff. The returned RawContent.Source is the final post-redirect URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, source string, opts *Options) (*models.RawContent, error) {
	if opts == nil {
		opts = &Options{FollowRedirects: true}
	}

	if err := f.waitPoliteness(ctx, source); err != nil {
		return nil, &models.CancellationError{Cause: err}
	}

	client := f.newClient(opts)

	maxAttempts := f.config.MaxRetries + 1
	baseDelay := f.config.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		raw, retryable, err := f.fetchOnce(ctx, client, source, opts)
		if err == nil {
			return raw, nil
		}
		if models.IsCancellation(err) || !retryable {
			return nil, err
		}
		lastErr = err

		if attempt < maxAttempts-1 {
			backoff := baseDelay * (1 << attempt)
			f.logger.Debug().
				Str("url", source).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(err).
				Msg("Retrying fetch after backoff")

			select {
			case <-ctx.Done():
				return nil, &models.CancellationError{Cause: ctx.Err()}
			case <-time.After(backoff):
			}
		}
	}

	f.logger.Warn().Str("url", source).Int("attempts", maxAttempts).Err(lastErr).Msg("All fetch attempts exhausted")
	return nil, lastErr
}

// fetchOnce performs a single request. The second return reports whether the
// failure is retryable.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, client *http.Client, source string, opts *Options) (*models.RawContent, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, false, models.NewScraperError(fmt.Sprintf("invalid URL %s", source), false, err)
	}

	for name, value := range fingerprintHeaders {
		req.Header.Set(name, value)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	// User headers win over the fingerprint set
	for name, value := range opts.Headers {
		req.Header.Set(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, false, &models.CancellationError{Cause: err}
		}
		var redirectErr *models.RedirectError
		if errors.As(err, &redirectErr) {
			return nil, false, redirectErr
		}
		// Network-level failure with undefined status: retryable
		return nil, true, models.NewScraperError(fmt.Sprintf("request to %s failed", source), true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 && !opts.FollowRedirects {
		if location := resp.Header.Get("Location"); location != "" {
			return nil, false, &models.RedirectError{
				OriginalURL: source,
				RedirectURL: location,
				StatusCode:  resp.StatusCode,
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := retryableStatusCodes[resp.StatusCode]
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, retryable, models.NewScraperError(
			fmt.Sprintf("HTTP %d fetching %s", resp.StatusCode, source), retryable, nil)
	}

	body, err := decodeBody(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, &models.CancellationError{Cause: ctx.Err()}
		}
		return nil, true, models.NewScraperError(fmt.Sprintf("reading body of %s", source), true, err)
	}

	mimeType, charset := parseContentType(resp.Header.Get("Content-Type"))

	return &models.RawContent{
		Content:  body,
		MimeType: mimeType,
		Charset:  charset,
		Encoding: resp.Header.Get("Content-Encoding"),
		Source:   resp.Request.URL.String(),
	}, false, nil
}

// newClient builds a client with the redirect policy for this fetch
func (f *HTTPFetcher) newClient(opts *Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.config.RequestTimeout
	}

	client := &http.Client{
		Transport: f.transport,
		Timeout:   timeout,
	}

	if opts.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirectHops {
				return fmt.Errorf("stopped after %d redirects", maxRedirectHops)
			}
			return nil
		}
	} else {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client
}

// waitPoliteness enforces the per-host request delay
func (f *HTTPFetcher) waitPoliteness(ctx context.Context, source string) error {
	if f.config.RequestDelay <= 0 {
		return nil
	}
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return nil
	}

	f.mu.Lock()
	limiter, ok := f.limiters[u.Host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(f.config.RequestDelay), 1)
		f.limiters[u.Host] = limiter
	}
	f.mu.Unlock()

	return limiter.Wait(ctx)
}

// decodeBody reads the response body, reversing the Content-Encoding
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	return io.ReadAll(reader)
}

// parseContentType splits a Content-Type header into mime type and charset.
// A missing or unparsable header yields application/octet-stream.
func parseContentType(header string) (mimeType, charset string) {
	if header == "" {
		return "application/octet-stream", ""
	}
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		return "application/octet-stream", ""
	}
	return mediaType, params["charset"]
}
