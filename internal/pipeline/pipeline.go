// -----------------------------------------------------------------------
// Pipelines - turn raw fetched bytes into indexable text and links
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"strings"

	"github.com/ternarybob/doctrina/internal/models"
)

// Pipeline converts raw content of the MIME types it claims into processed
// text plus discovered links
type Pipeline interface {
	CanProcess(mimeType string) bool
	Process(ctx context.Context, raw *models.RawContent) (*models.ProcessedContent, error)
}

// Select returns the first pipeline in order that claims the MIME type
func Select(pipelines []Pipeline, mimeType string) Pipeline {
	for _, p := range pipelines {
		if p.CanProcess(mimeType) {
			return p
		}
	}
	return nil
}

// isSourceMimeType matches the text/x-* family plus the handful of
// application types the extension table emits for code and config files
func isSourceMimeType(mimeType string) bool {
	switch mimeType {
	case "application/json", "application/xml", "text/css", "text/javascript",
		"text/csv", "text/tab-separated-values", "text/asciidoc":
		return true
	}
	return strings.HasPrefix(mimeType, "text/x-")
}
