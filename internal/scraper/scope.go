package scraper

import (
	"net/url"
	"strings"

	"github.com/ternarybob/doctrina/internal/models"
	"golang.org/x/net/publicsuffix"
)

// ScopeFilter decides whether a discovered URL may be followed. It is rebuilt
// whenever the canonical base URL changes.
type ScopeFilter struct {
	mode    models.ScopeMode
	base    *url.URL
	baseDir string
}

// NewScopeFilter builds a filter around the base URL
func NewScopeFilter(mode models.ScopeMode, base *url.URL) *ScopeFilter {
	return &ScopeFilter{
		mode:    mode,
		base:    base,
		baseDir: baseDirectory(base.Path),
	}
}

// InScope reports whether the target may be followed. Cross-protocol targets
// are always out of scope.
func (f *ScopeFilter) InScope(target *url.URL) bool {
	if target.Scheme != f.base.Scheme {
		return false
	}

	if f.base.Scheme == "file" {
		return strings.HasPrefix(target.Path, f.baseDir)
	}

	switch f.mode {
	case models.ScopeDomain:
		return sameRegistrableDomain(f.base.Hostname(), target.Hostname())
	case models.ScopeHostname:
		return strings.EqualFold(f.base.Hostname(), target.Hostname())
	default: // subpages
		return strings.EqualFold(f.base.Hostname(), target.Hostname()) &&
			strings.HasPrefix(target.Path, f.baseDir)
	}
}

// baseDirectory derives the directory that bounds the subpages scope: a path
// ending in a slash is used as-is, a last segment with a dot is treated as a
// file, anything else is treated as a directory.
func baseDirectory(path string) string {
	if path == "" {
		return "/"
	}
	if strings.HasSuffix(path, "/") {
		return path
	}
	idx := strings.LastIndex(path, "/")
	last := path[idx+1:]
	if strings.Contains(last, ".") {
		return path[:idx+1]
	}
	return path + "/"
}

// sameRegistrableDomain compares registrable domains, so docs.example.com and
// api.example.com match while user1.github.io and user2.github.io do not
func sameRegistrableDomain(a, b string) bool {
	domainA, errA := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(a))
	domainB, errB := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(b))
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return domainA == domainB
}
