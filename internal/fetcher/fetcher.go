// -----------------------------------------------------------------------
// Fetchers - retrieve raw bytes from a URL (http/https, file, GitHub API)
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"time"

	"github.com/ternarybob/doctrina/internal/models"
)

// Options configures a single fetch
type Options struct {
	FollowRedirects bool              // follow up to 5 hops; false fails with RedirectError on 3xx
	Headers         map[string]string // user headers, override the fingerprint set
	Timeout         time.Duration     // per-request timeout (0 = fetcher default)
}

// Fetcher retrieves raw content for a source it can handle
type Fetcher interface {
	CanHandle(source string) bool
	Fetch(ctx context.Context, source string, opts *Options) (*models.RawContent, error)
}

// Select returns the first fetcher in order that can handle the source
func Select(fetchers []Fetcher, source string) Fetcher {
	for _, f := range fetchers {
		if f.CanHandle(source) {
			return f
		}
	}
	return nil
}
