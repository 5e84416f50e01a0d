package pipeline

import (
	"context"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownPipeline indexes markdown as-is, pulling the title and links from
// the document structure
type MarkdownPipeline struct {
	parser goldmark.Markdown
	logger arbor.ILogger
}

// NewMarkdownPipeline creates a markdown pipeline
func NewMarkdownPipeline(logger arbor.ILogger) *MarkdownPipeline {
	return &MarkdownPipeline{
		parser: goldmark.New(),
		logger: logger,
	}
}

// CanProcess accepts markdown
func (p *MarkdownPipeline) CanProcess(mimeType string) bool {
	return mimeType == "text/markdown"
}

// Process keeps the markdown text unchanged. The title comes from YAML front
// matter or the first level-1 heading; links come from the parsed AST,
// resolved against the source URL.
func (p *MarkdownPipeline) Process(ctx context.Context, raw *models.RawContent) (*models.ProcessedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.CancellationError{Cause: err}
	}

	content, _ := DecodeText(raw.Content, raw.Charset)

	result := &models.ProcessedContent{
		TextContent: strings.TrimSpace(content),
	}

	source := []byte(content)
	root := p.parser.Parser().Parse(text.NewReader(source))

	result.Title = frontMatterTitle(content)

	var baseURL *url.URL
	if u, err := url.Parse(raw.Source); err == nil {
		baseURL = u
	}

	seen := make(map[string]bool)
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 && result.Title == "" {
				result.Title = strings.TrimSpace(string(node.Text(source)))
			}
		case *ast.Link:
			addMarkdownLink(result, string(node.Destination), baseURL, seen)
		case *ast.AutoLink:
			addMarkdownLink(result, string(node.URL(source)), baseURL, seen)
		}
		return ast.WalkContinue, nil
	})

	p.logger.Debug().
		Str("source", raw.Source).
		Str("title", result.Title).
		Int("links_found", len(result.Links)).
		Msg("Markdown document processed")

	return result, nil
}

// addMarkdownLink resolves and deduplicates one link destination
func addMarkdownLink(result *models.ProcessedContent, dest string, baseURL *url.URL, seen map[string]bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.HasPrefix(dest, "#") {
		return
	}
	lower := strings.ToLower(dest)
	for _, scheme := range skippedLinkSchemes {
		if strings.HasPrefix(lower, scheme) {
			return
		}
	}
	if baseURL != nil {
		u, err := baseURL.Parse(dest)
		if err != nil {
			return
		}
		dest = u.String()
	}
	if !seen[dest] {
		seen[dest] = true
		result.Links = append(result.Links, dest)
	}
}

// frontMatterTitle reads a title key from a leading YAML front matter block
func frontMatterTitle(content string) string {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return ""
	}
	lines := strings.Split(content, "\n")
	for _, line := range lines[1:] {
		trimmed := strings.TrimRight(line, "\r")
		if trimmed == "---" || trimmed == "..." {
			return ""
		}
		if value, ok := strings.CutPrefix(trimmed, "title:"); ok {
			return strings.Trim(strings.TrimSpace(value), `"'`)
		}
	}
	return ""
}
