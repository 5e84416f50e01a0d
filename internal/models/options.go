package models

// ScopeMode decides whether a discovered URL may be followed
type ScopeMode string

const (
	ScopeSubpages ScopeMode = "subpages" // same host, under the start directory
	ScopeHostname ScopeMode = "hostname" // exact hostname match
	ScopeDomain   ScopeMode = "domain"   // same registrable domain
)

// ScrapeMode selects how HTML content is obtained
type ScrapeMode string

const (
	ScrapeModeFetch      ScrapeMode = "fetch"      // plain HTTP body
	ScrapeModePlaywright ScrapeMode = "playwright" // headless browser render
	ScrapeModeAuto       ScrapeMode = "auto"       // defaults to full render
)

// ScrapeOptions configures one crawl. Construct with DefaultScrapeOptions and
// override; zero values for MaxPages and MaxConcurrency mean "use default",
// while MaxDepth keeps its literal value so a depth of 0 stays expressible.
//
// ExcludePatterns semantics: nil applies the built-in default excludes, an
// explicit empty slice disables them.
type ScrapeOptions struct {
	URL             string            `json:"url" validate:"required"`
	Library         string            `json:"library" validate:"required"`
	Version         string            `json:"version,omitempty"`
	Scope           ScopeMode         `json:"scope,omitempty"`
	MaxPages        int               `json:"max_pages,omitempty"`
	MaxDepth        int               `json:"max_depth"` // 0 is meaningful: crawl only the start URL
	MaxConcurrency  int               `json:"max_concurrency,omitempty"`
	FollowRedirects bool              `json:"follow_redirects"`
	IgnoreErrors    bool              `json:"ignore_errors"`
	ScrapeMode      ScrapeMode        `json:"scrape_mode,omitempty"`
	IncludePatterns []string          `json:"include_patterns,omitempty"`
	ExcludePatterns []string          `json:"exclude_patterns,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

const (
	// DefaultMaxPages bounds a crawl when the caller does not
	DefaultMaxPages = 1000
	// DefaultMaxDepth bounds BFS recursion
	DefaultMaxDepth = 3
	// DefaultMaxConcurrency bounds fetches in flight per crawl
	DefaultMaxConcurrency = 3
)

// DefaultScrapeOptions returns options with every default applied. Adapters
// must start from this and overlay caller-provided values; Normalized cannot
// restore FollowRedirects or IgnoreErrors because a zero bool is
// indistinguishable from an explicit false.
func DefaultScrapeOptions() ScrapeOptions {
	return ScrapeOptions{
		Scope:           ScopeSubpages,
		MaxPages:        DefaultMaxPages,
		MaxDepth:        DefaultMaxDepth,
		MaxConcurrency:  DefaultMaxConcurrency,
		FollowRedirects: true,
		IgnoreErrors:    true,
		ScrapeMode:      ScrapeModeAuto,
	}
}

// Normalized returns a copy with zero-valued fields replaced by defaults
func (o ScrapeOptions) Normalized() ScrapeOptions {
	out := o
	if out.Scope == "" {
		out.Scope = ScopeSubpages
	}
	if out.MaxPages <= 0 {
		out.MaxPages = DefaultMaxPages
	}
	if out.MaxDepth < 0 {
		out.MaxDepth = 0
	}
	if out.MaxConcurrency <= 0 {
		out.MaxConcurrency = DefaultMaxConcurrency
	}
	if out.ScrapeMode == "" {
		out.ScrapeMode = ScrapeModeAuto
	}
	return out
}
