package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaults(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"https://Example.COM/Docs/", "https://example.com/docs"},
		{"https://example.com/docs#section", "https://example.com/docs"},
		{"https://example.com/docs/index.html", "https://example.com/docs"},
		{"https://example.com/docs/Index.HTM", "https://example.com/docs"},
		{"https://example.com/docs/index.php", "https://example.com/docs"},
		{"https://example.com/page?a=1&b=2", "https://example.com/page?a=1&b=2"},
		{"https://example.com/", "https://example.com"},
		{"https://example.com/indexes.html", "https://example.com/indexes.html"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Normalize(tt.in, NormalizeOptions{}), tt.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	urls := []string{
		"https://Example.com/A/B/index.html?x=1#frag",
		"https://example.com/docs/",
		"file:///home/user/docs/readme.md",
	}
	for _, u := range urls {
		once := Normalize(u, NormalizeOptions{})
		assert.Equal(t, once, Normalize(once, NormalizeOptions{}), u)
	}
}

func TestNormalizeOptionFlips(t *testing.T) {
	u := "https://Example.com/Docs/index.html?q=1#top"

	assert.Equal(t, "https://Example.com/Docs?q=1",
		Normalize(u, NormalizeOptions{KeepCase: true}))
	assert.Equal(t, "https://example.com/docs?q=1#top",
		Normalize(u, NormalizeOptions{KeepFragment: true}))
	assert.Equal(t, "https://example.com/docs/?q=1",
		Normalize(u, NormalizeOptions{KeepTrailingSlash: true, KeepIndexFiles: false}))
	assert.Equal(t, "https://example.com/docs/index.html?q=1",
		Normalize(u, NormalizeOptions{KeepIndexFiles: true}))
	assert.Equal(t, "https://example.com/docs",
		Normalize(u, NormalizeOptions{StripQuery: true}))
}
