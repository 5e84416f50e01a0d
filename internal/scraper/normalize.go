package scraper

import (
	"net/url"
	"regexp"
	"strings"
)

// indexFileRe matches directory index files dropped during normalization
var indexFileRe = regexp.MustCompile(`(?i)^index\.(html|htm|asp|php|jsp)$`)

// NormalizeOptions flips individual normalization rules. The zero value is
// the default behavior.
type NormalizeOptions struct {
	KeepCase          bool // preserve original letter case
	KeepFragment      bool // preserve #fragment
	KeepTrailingSlash bool // preserve a trailing slash
	KeepIndexFiles    bool // preserve index.(html|htm|asp|php|jsp) segments
	StripQuery        bool // drop ?query (kept by default)
}

// Normalize produces the deterministic form of a URL used for visited-set
// deduplication. Normalization is idempotent.
func Normalize(rawURL string, opts NormalizeOptions) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		if opts.KeepCase {
			return strings.TrimSpace(rawURL)
		}
		return strings.ToLower(strings.TrimSpace(rawURL))
	}

	if !opts.KeepFragment {
		u.Fragment = ""
		u.RawFragment = ""
	}
	if opts.StripQuery {
		u.RawQuery = ""
	}

	if !opts.KeepIndexFiles {
		if idx := strings.LastIndex(u.Path, "/"); idx >= 0 && indexFileRe.MatchString(u.Path[idx+1:]) {
			u.Path = u.Path[:idx+1]
			u.RawPath = ""
		}
	}
	if !opts.KeepTrailingSlash {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}

	normalized := u.String()
	if !opts.KeepCase {
		normalized = strings.ToLower(normalized)
	}
	return normalized
}
