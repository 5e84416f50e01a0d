package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/doctrina/internal/common"
	"github.com/ternarybob/doctrina/internal/models"
)

func htmlRaw(html, source string) *models.RawContent {
	return &models.RawContent{
		Content:  []byte(html),
		MimeType: "text/html",
		Source:   source,
	}
}

func TestHTMLPipelineBasics(t *testing.T) {
	html := `<html lang="en"><head>
		<title>API Reference</title>
		<meta name="description" content="All the endpoints.">
	</head><body>
		<nav><a href="/nav-link">Nav</a></nav>
		<main>
			<h1>Endpoints</h1>
			<p>See <a href="/docs/auth">authentication</a> and <a href="https://other.example.com/x">external</a>.</p>
			<pre><code>GET /v1/users</code></pre>
		</main>
		<footer>copyright</footer>
	</body></html>`

	p := NewHTMLPipeline(common.GetLogger())
	result, err := p.Process(context.Background(), htmlRaw(html, "https://docs.example.com/api/"))
	require.NoError(t, err)

	assert.Equal(t, "API Reference", result.Title)
	assert.Equal(t, "All the endpoints.", result.Description)

	// Links resolve against the page URL; nav links are still discovered
	assert.Contains(t, result.Links, "https://docs.example.com/docs/auth")
	assert.Contains(t, result.Links, "https://docs.example.com/nav-link")
	assert.Contains(t, result.Links, "https://other.example.com/x")

	// Markdown from the main region only
	assert.Contains(t, result.TextContent, "# Endpoints")
	assert.Contains(t, result.TextContent, "GET /v1/users")
	assert.NotContains(t, result.TextContent, "copyright")
}

func TestHTMLPipelineBaseHref(t *testing.T) {
	html := `<html><head><base href="/v2/"></head><body>
		<a href="guide">Guide</a>
	</body></html>`

	p := NewHTMLPipeline(common.GetLogger())
	result, err := p.Process(context.Background(), htmlRaw(html, "https://docs.example.com/v1/index.html"))
	require.NoError(t, err)

	assert.Contains(t, result.Links, "https://docs.example.com/v2/guide")
}

func TestHTMLPipelineTitleFallbacks(t *testing.T) {
	p := NewHTMLPipeline(common.GetLogger())

	og := `<html><head><meta property="og:title" content="OG Title"></head><body></body></html>`
	result, err := p.Process(context.Background(), htmlRaw(og, "https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, "OG Title", result.Title)

	h1 := `<html><body><h1>Heading Title</h1></body></html>`
	result, err = p.Process(context.Background(), htmlRaw(h1, "https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, "Heading Title", result.Title)
}

func TestHTMLPipelineSkipsNonContentSchemes(t *testing.T) {
	html := `<body>
		<a href="javascript:void(0)">js</a>
		<a href="mailto:a@b.c">mail</a>
		<a href="#section">anchor</a>
		<a href="/real">real</a>
	</body>`

	p := NewHTMLPipeline(common.GetLogger())
	result, err := p.Process(context.Background(), htmlRaw(html, "https://example.com/page"))
	require.NoError(t, err)

	require.Len(t, result.Links, 1)
	assert.Equal(t, "https://example.com/real", result.Links[0])
}

func TestMarkdownPipeline(t *testing.T) {
	md := `# Getting Started

Install via [the CLI](./cli.md) or see [hosted docs](https://docs.example.com/hosted).

Skip [this](#anchor).`

	p := NewMarkdownPipeline(common.GetLogger())
	raw := &models.RawContent{
		Content:  []byte(md),
		MimeType: "text/markdown",
		Source:   "https://raw.example.com/repo/main/README.md",
	}
	result, err := p.Process(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "Getting Started", result.Title)
	assert.Equal(t, strings.TrimSpace(md), result.TextContent)
	assert.Contains(t, result.Links, "https://raw.example.com/repo/main/cli.md")
	assert.Contains(t, result.Links, "https://docs.example.com/hosted")
	assert.NotContains(t, result.Links, "#anchor")
}

func TestMarkdownPipelineFrontMatterTitle(t *testing.T) {
	md := `---
layout: docs
title: "Configuration Guide"
---

# Something Else`

	p := NewMarkdownPipeline(common.GetLogger())
	result, err := p.Process(context.Background(), &models.RawContent{
		Content:  []byte(md),
		MimeType: "text/markdown",
		Source:   "file:///docs/config.md",
	})
	require.NoError(t, err)
	assert.Equal(t, "Configuration Guide", result.Title)
}

func TestTextPipeline(t *testing.T) {
	p := NewTextPipeline(common.GetLogger())
	result, err := p.Process(context.Background(), &models.RawContent{
		Content:  []byte("\n\nRelease Notes 2.1\n\nFixed things."),
		MimeType: "text/plain",
		Source:   "https://example.com/CHANGELOG",
	})
	require.NoError(t, err)

	assert.Equal(t, "Release Notes 2.1", result.Title)
	assert.Empty(t, result.Links)
}

func TestSourcePipelineFencesContent(t *testing.T) {
	p := NewSourcePipeline(common.GetLogger())
	result, err := p.Process(context.Background(), &models.RawContent{
		Content:  []byte("def hello():\n    return 1\n"),
		MimeType: "text/x-python",
		Source:   "https://raw.example.com/repo/main/src/hello.py",
	})
	require.NoError(t, err)

	assert.Equal(t, "hello.py", result.Title)
	assert.True(t, strings.HasPrefix(result.TextContent, "```python\n"))
	assert.True(t, strings.HasSuffix(result.TextContent, "\n```"))
}

func TestSourcePipelineWidensFence(t *testing.T) {
	p := NewSourcePipeline(common.GetLogger())
	result, err := p.Process(context.Background(), &models.RawContent{
		Content:  []byte("Example:\n```js\nx()\n```\n"),
		MimeType: "text/markdown",
		Source:   "file:///notes.txt",
	})
	// MarkdownPipeline owns text/markdown; Process still works when called directly
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.TextContent, "````"))
}

func TestSelectPipeline(t *testing.T) {
	logger := common.GetLogger()
	pipelines := []Pipeline{
		NewHTMLPipeline(logger),
		NewMarkdownPipeline(logger),
		NewSourcePipeline(logger),
		NewTextPipeline(logger),
	}

	assert.IsType(t, &HTMLPipeline{}, Select(pipelines, "text/html"))
	assert.IsType(t, &MarkdownPipeline{}, Select(pipelines, "text/markdown"))
	assert.IsType(t, &SourcePipeline{}, Select(pipelines, "text/x-go"))
	assert.IsType(t, &SourcePipeline{}, Select(pipelines, "application/json"))
	assert.IsType(t, &TextPipeline{}, Select(pipelines, "text/plain"))
	assert.Nil(t, Select(pipelines, "application/octet-stream"))
}
