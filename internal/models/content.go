package models

// RawContent is the output of a fetcher: the undecoded payload plus everything
// the transport layer learned about it.
type RawContent struct {
	Content  []byte `json:"-"`
	MimeType string `json:"mime_type"` // e.g. "text/html"; application/octet-stream when unknown
	Charset  string `json:"charset"`   // from Content-Type, may be empty
	Encoding string `json:"encoding"`  // from Content-Encoding, may be empty
	Source   string `json:"source"`    // final URL after redirects
}

// ProcessingError records a non-fatal issue encountered by a pipeline. The
// pipeline continues; the error travels with the processed content.
type ProcessingError struct {
	Message string `json:"message"`
}

// ProcessedContent is the normalized output of a content pipeline
type ProcessedContent struct {
	TextContent string            `json:"text_content"` // markdown (or passthrough text)
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Links       []string          `json:"links"` // absolute URLs resolved against the effective base
	Errors      []ProcessingError `json:"errors,omitempty"`
}

// AddError appends a non-fatal processing issue
func (p *ProcessedContent) AddError(message string) {
	p.Errors = append(p.Errors, ProcessingError{Message: message})
}
