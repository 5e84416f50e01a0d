package pipeline

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/models"
)

// maxDerivedTitleLength caps titles taken from the first content line
const maxDerivedTitleLength = 80

// TextPipeline indexes plain text verbatim
type TextPipeline struct {
	logger arbor.ILogger
}

// NewTextPipeline creates a plain-text pipeline
func NewTextPipeline(logger arbor.ILogger) *TextPipeline {
	return &TextPipeline{logger: logger}
}

// CanProcess accepts plain text
func (p *TextPipeline) CanProcess(mimeType string) bool {
	return mimeType == "text/plain"
}

// Process decodes the text and derives a title from the first non-empty line
func (p *TextPipeline) Process(ctx context.Context, raw *models.RawContent) (*models.ProcessedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.CancellationError{Cause: err}
	}

	content, _ := DecodeText(raw.Content, raw.Charset)
	content = strings.TrimSpace(content)

	return &models.ProcessedContent{
		TextContent: content,
		Title:       firstLineTitle(content),
	}, nil
}

// firstLineTitle takes the first non-empty line, truncated on a rune boundary
func firstLineTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > maxDerivedTitleLength {
			return string(runes[:maxDerivedTitleLength])
		}
		return line
	}
	return ""
}
