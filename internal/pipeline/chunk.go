// -----------------------------------------------------------------------
// Chunking - split long markdown into indexable sections
// -----------------------------------------------------------------------

package pipeline

import (
	"strings"

	"github.com/ternarybob/doctrina/internal/models"
)

// DefaultChunkSize is the target upper bound for one indexed chunk in bytes
const DefaultChunkSize = 8000

// ChunkDocument splits a document into chunks at markdown heading boundaries,
// then by size for oversized sections. Short documents pass through as a
// single chunk. Chunk order follows source order.
func ChunkDocument(doc *models.Document, maxSize int) []*models.Document {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}

	pieces := ChunkMarkdown(doc.Content, maxSize)
	if len(pieces) <= 1 {
		return []*models.Document{doc}
	}

	chunks := make([]*models.Document, len(pieces))
	for i, piece := range pieces {
		chunk := *doc
		chunk.Content = piece
		chunks[i] = &chunk
	}
	return chunks
}

// ChunkMarkdown splits markdown into chunks of at most maxSize bytes,
// preferring heading boundaries, then blank lines, then a hard split.
// Headings inside fenced code blocks do not start a new section.
func ChunkMarkdown(content string, maxSize int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= maxSize {
		return []string{content}
	}

	sections := splitSections(content)

	// Greedily pack adjacent sections into chunks up to maxSize
	var chunks []string
	var current strings.Builder
	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			chunks = append(chunks, text)
		}
		current.Reset()
	}

	for _, section := range sections {
		if len(section) > maxSize {
			flush()
			chunks = append(chunks, splitOversized(section, maxSize)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(section)+2 > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(section)
	}
	flush()
	return chunks
}

// splitSections cuts the markdown at heading lines, tracking code fences so
// a "# comment" inside a fence is not treated as a heading
func splitSections(content string) []string {
	lines := strings.Split(content, "\n")

	var sections []string
	var current []string
	inFence := false
	fenceMarker := ""

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if inFence {
			if strings.HasPrefix(trimmed, fenceMarker) {
				inFence = false
			}
		} else if marker := fencePrefix(trimmed); marker != "" {
			inFence = true
			fenceMarker = marker
		} else if isHeading(trimmed) && len(current) > 0 {
			sections = append(sections, strings.TrimSpace(strings.Join(current, "\n")))
			current = current[:0]
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.TrimSpace(strings.Join(current, "\n")))
	}

	// Drop sections that trimmed to nothing
	out := sections[:0]
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func fencePrefix(line string) string {
	if strings.HasPrefix(line, "```") {
		return "```"
	}
	if strings.HasPrefix(line, "~~~") {
		return "~~~"
	}
	return ""
}

func isHeading(line string) bool {
	if !strings.HasPrefix(line, "#") {
		return false
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	return level <= 6 && level < len(line) && line[level] == ' '
}

// splitOversized breaks one section on blank lines, hard-splitting any single
// paragraph that still exceeds maxSize
func splitOversized(section string, maxSize int) []string {
	paragraphs := strings.Split(section, "\n\n")

	var chunks []string
	var current strings.Builder
	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			chunks = append(chunks, text)
		}
		current.Reset()
	}

	for _, para := range paragraphs {
		if len(para) > maxSize {
			flush()
			chunks = append(chunks, hardSplit(para, maxSize)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(para)+2 > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}

// hardSplit cuts text into maxSize pieces at line boundaries where possible
func hardSplit(text string, maxSize int) []string {
	var chunks []string
	for len(text) > maxSize {
		cut := strings.LastIndexByte(text[:maxSize], '\n')
		if cut <= 0 {
			cut = maxSize
		}
		if chunk := strings.TrimSpace(text[:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = text[cut:]
	}
	if chunk := strings.TrimSpace(text); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}
