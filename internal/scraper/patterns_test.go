package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobPatterns(t *testing.T) {
	f, err := NewPatternFilter([]string{"**/guide/**"}, []string{})
	require.NoError(t, err)

	assert.True(t, f.Allowed("https://example.com/docs/guide/intro.html"))
	assert.True(t, f.Allowed("https://example.com/guide/intro.html"))
	assert.False(t, f.Allowed("https://example.com/docs/reference/intro.html"))
}

func TestGlobSingleStarStaysInSegment(t *testing.T) {
	f, err := NewPatternFilter([]string{"/docs/*.html"}, []string{})
	require.NoError(t, err)

	assert.True(t, f.Allowed("https://example.com/docs/intro.html"))
	assert.False(t, f.Allowed("https://example.com/docs/sub/intro.html"))
}

func TestRegexPatterns(t *testing.T) {
	f, err := NewPatternFilter(nil, []string{`/v[0-9]+\.[0-9]+/`})
	require.NoError(t, err)

	assert.False(t, f.Allowed("https://example.com/docs/v1.2/guide"))
	assert.True(t, f.Allowed("https://example.com/docs/latest/guide"))
}

func TestExcludeWinsOverInclude(t *testing.T) {
	f, err := NewPatternFilter([]string{"**/docs/**"}, []string{"**/docs/private/**"})
	require.NoError(t, err)

	assert.True(t, f.Allowed("https://example.com/docs/public/a"))
	assert.False(t, f.Allowed("https://example.com/docs/private/a"))
}

func TestDefaultExcludes(t *testing.T) {
	f, err := NewPatternFilter(nil, nil)
	require.NoError(t, err)

	assert.False(t, f.Allowed("github-file://CHANGELOG.md"))
	assert.False(t, f.Allowed("github-file://LICENSE"))
	assert.False(t, f.Allowed("github-file://package-lock.json"))
	assert.False(t, f.Allowed("github-file://src/app.test.js"))
	assert.False(t, f.Allowed("github-file://docs/archive/old.md"))
	assert.False(t, f.Allowed("https://example.com/dist/bundle.min.js"))
	assert.False(t, f.Allowed("https://example.com/zh-cn/guide"))
	assert.False(t, f.Allowed("https://example.com/docs/i18n/fr/guide"))

	assert.True(t, f.Allowed("github-file://README.md"))
	assert.True(t, f.Allowed("https://example.com/docs/i18n/en/guide"))
	assert.True(t, f.Allowed("https://example.com/docs/guide"))
}

func TestExplicitEmptyDisablesDefaults(t *testing.T) {
	f, err := NewPatternFilter(nil, []string{})
	require.NoError(t, err)

	assert.True(t, f.Allowed("github-file://CHANGELOG.md"))
	assert.True(t, f.Allowed("github-file://package-lock.json"))
}

func TestFileURLMatchesBasename(t *testing.T) {
	f, err := NewPatternFilter([]string{"*.md"}, []string{})
	require.NoError(t, err)

	assert.True(t, f.Allowed("file:///home/user/docs/readme.md"))
	assert.False(t, f.Allowed("file:///home/user/docs/app.py"))
}

func TestHTTPMatchTargetIncludesQuery(t *testing.T) {
	f, err := NewPatternFilter(nil, []string{`/view=legacy/`})
	require.NoError(t, err)

	assert.False(t, f.Allowed("https://example.com/docs?view=legacy"))
	assert.True(t, f.Allowed("https://example.com/docs?view=current"))
}

func TestInvalidPatternErrors(t *testing.T) {
	_, err := NewPatternFilter([]string{`/[unclosed/`}, []string{})
	assert.Error(t, err)
}
