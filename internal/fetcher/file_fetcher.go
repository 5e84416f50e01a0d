package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/models"
)

// FileFetcher reads file:// URLs from the local filesystem
type FileFetcher struct {
	logger arbor.ILogger
}

// NewFileFetcher creates a file fetcher
func NewFileFetcher(logger arbor.ILogger) *FileFetcher {
	return &FileFetcher{logger: logger}
}

// CanHandle accepts only file:// URLs
func (f *FileFetcher) CanHandle(source string) bool {
	return strings.HasPrefix(source, "file://")
}

// Fetch reads the file. The MIME type comes from the extension table; a NUL
// byte anywhere in the content forces application/octet-stream. Charset is
// left empty so the pipeline detects it.
func (f *FileFetcher) Fetch(ctx context.Context, source string, opts *Options) (*models.RawContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.CancellationError{Cause: err}
	}

	u, err := url.Parse(source)
	if err != nil || u.Scheme != "file" {
		return nil, models.NewScraperError(fmt.Sprintf("invalid file URL %s", source), false, err)
	}

	// url.Parse already percent-decodes the path
	filePath := u.Path
	if u.Host != "" && u.Host != "localhost" {
		filePath = "/" + u.Host + u.Path
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, models.NewScraperError(fmt.Sprintf("failed to read %s", filePath), false, err)
	}

	mimeType := MimeTypeForPath(filePath)
	if bytes.IndexByte(content, 0) >= 0 {
		mimeType = "application/octet-stream"
	}

	f.logger.Debug().Str("path", filePath).Str("mime_type", mimeType).Int("bytes", len(content)).Msg("Read local file")

	return &models.RawContent{
		Content:  content,
		MimeType: mimeType,
		Source:   source,
	}, nil
}
