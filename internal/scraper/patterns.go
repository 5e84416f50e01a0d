package scraper

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// compiledPattern is one include or exclude rule: a regex when the source was
// wrapped in /…/, otherwise a glob matched against the basename (patterns
// without a slash) or the full target (patterns with one)
type compiledPattern struct {
	re           *regexp.Regexp
	basenameOnly bool
}

func (p *compiledPattern) matches(target string) bool {
	if p.basenameOnly {
		target = path.Base(target)
	}
	return p.re.MatchString(target)
}

// PatternFilter applies include and exclude pattern lists. Exclude wins.
type PatternFilter struct {
	include []compiledPattern
	exclude []compiledPattern
}

// NewPatternFilter compiles the pattern lists. A nil exclude list applies the
// built-in defaults; an explicit empty list disables them.
func NewPatternFilter(include, exclude []string) (*PatternFilter, error) {
	if exclude == nil {
		exclude = DefaultExcludePatterns
	}

	f := &PatternFilter{}
	var err error
	if f.include, err = compilePatterns(include); err != nil {
		return nil, err
	}
	if f.exclude, err = compilePatterns(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

// Allowed reports whether the URL passes the filter. HTTP URLs are matched on
// path?query; file and github-file URLs on their path (basename handled by
// slash-free patterns).
func (f *PatternFilter) Allowed(rawURL string) bool {
	target := matchTarget(rawURL)

	for _, p := range f.exclude {
		if p.matches(target) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, p := range f.include {
		if p.matches(target) {
			return true
		}
	}
	return false
}

// matchTarget extracts the portion of the URL patterns match against
func matchTarget(rawURL string) string {
	if after, ok := strings.CutPrefix(rawURL, "github-file://"); ok {
		return after
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	switch u.Scheme {
	case "http", "https":
		target := u.Path
		if u.RawQuery != "" {
			target += "?" + u.RawQuery
		}
		return target
	case "file":
		return u.Path
	default:
		return rawURL
	}
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		p, err := compilePattern(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, p)
	}
	return compiled, nil
}

func compilePattern(pattern string) (compiledPattern, error) {
	if len(pattern) > 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		re, err := regexp.Compile(pattern[1 : len(pattern)-1])
		if err != nil {
			return compiledPattern{}, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		return compiledPattern{re: re}, nil
	}

	re, err := regexp.Compile(globToRegexp(pattern))
	if err != nil {
		return compiledPattern{}, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return compiledPattern{re: re, basenameOnly: !strings.Contains(pattern, "/")}, nil
}

// globToRegexp translates a glob to an anchored regex: ** crosses path
// segments, * stays within one
func globToRegexp(glob string) string {
	var sb strings.Builder
	sb.WriteString("^")

	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				i++
				// Collapse "**/" so it also matches zero segments
				if i+1 < len(glob) && glob[i+1] == '/' {
					i++
					sb.WriteString(`(?:[^/]*/)*`)
				} else {
					sb.WriteString(`.*`)
				}
			} else {
				sb.WriteString(`[^/]*`)
			}
		case '?':
			sb.WriteString(`[^/]`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	sb.WriteString("$")
	return sb.String()
}
