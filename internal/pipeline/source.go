package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/fetcher"
	"github.com/ternarybob/doctrina/internal/models"
)

// SourcePipeline wraps source and config files in a fenced code block so
// indexed snippets keep their language tag
type SourcePipeline struct {
	logger arbor.ILogger
}

// NewSourcePipeline creates a source-code pipeline
func NewSourcePipeline(logger arbor.ILogger) *SourcePipeline {
	return &SourcePipeline{logger: logger}
}

// CanProcess accepts the source and structured-text MIME family
func (p *SourcePipeline) CanProcess(mimeType string) bool {
	return isSourceMimeType(mimeType)
}

// Process fences the file content with its language tag. The title is the
// file basename.
func (p *SourcePipeline) Process(ctx context.Context, raw *models.RawContent) (*models.ProcessedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.CancellationError{Cause: err}
	}

	content, _ := DecodeText(raw.Content, raw.Charset)
	content = strings.TrimRight(content, "\n")

	filePath := sourcePath(raw.Source)
	language := fetcher.LanguageForPath(filePath)

	fence := "```"
	// Widen the fence when the content itself contains one
	for strings.Contains(content, fence) {
		fence += "`"
	}

	return &models.ProcessedContent{
		TextContent: fmt.Sprintf("%s%s\n%s\n%s", fence, language, content, fence),
		Title:       path.Base(filePath),
	}, nil
}

// sourcePath extracts the path component of the source URL
func sourcePath(source string) string {
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		return u.Path
	}
	return source
}
