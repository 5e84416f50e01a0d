// -----------------------------------------------------------------------
// HTML Pipeline - markdown conversion, metadata and link extraction
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/models"
)

// skippedLinkSchemes are never followed
var skippedLinkSchemes = []string{"javascript:", "mailto:", "tel:", "data:", "about:"}

// HTMLPipeline converts HTML pages to markdown and extracts page links
type HTMLPipeline struct {
	logger arbor.ILogger
}

// NewHTMLPipeline creates an HTML pipeline
func NewHTMLPipeline(logger arbor.ILogger) *HTMLPipeline {
	return &HTMLPipeline{logger: logger}
}

// CanProcess accepts HTML and XHTML
func (p *HTMLPipeline) CanProcess(mimeType string) bool {
	return mimeType == "text/html" || mimeType == "application/xhtml+xml"
}

// Process decodes the page, extracts title, description and links, and
// converts the main content region to markdown.
func (p *HTMLPipeline) Process(ctx context.Context, raw *models.RawContent) (*models.ProcessedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.CancellationError{Cause: err}
	}

	html, charset := DecodeText(raw.Content, raw.Charset)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewScraperError(fmt.Sprintf("failed to parse HTML from %s", raw.Source), false, err)
	}

	result := &models.ProcessedContent{}

	baseURL := p.effectiveBase(doc, raw.Source, result)

	result.Title = p.extractTitle(doc)
	if description, exists := doc.Find("meta[name='description']").Attr("content"); exists {
		result.Description = strings.TrimSpace(description)
	}
	result.Links = p.extractLinks(doc, baseURL)

	// Chrome, navigation and page furniture never make useful search text
	doc.Find("script, style, noscript, nav, footer, aside").Remove()

	content := doc.Find("main, article, [role='main'], .content, .main-content, #content, #main").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}
	if content.Length() == 0 {
		content = doc.Selection
	}

	converter := md.NewConverter(hostOf(baseURL), true, nil)
	converter.Use(plugin.GitHubFlavored())
	result.TextContent = strings.TrimSpace(converter.Convert(content))

	p.logger.Debug().
		Str("source", raw.Source).
		Str("title", result.Title).
		Str("charset", charset).
		Int("links_found", len(result.Links)).
		Int("text_length", len(result.TextContent)).
		Msg("HTML page processed")

	return result, nil
}

// effectiveBase resolves a <base href> against the source URL. An unparsable
// base href is recorded as a processing error and the source URL is used.
func (p *HTMLPipeline) effectiveBase(doc *goquery.Document, source string, result *models.ProcessedContent) *url.URL {
	sourceURL, err := url.Parse(source)
	if err != nil {
		result.AddError(fmt.Sprintf("unparsable source URL %s: %v", source, err))
		return nil
	}

	if href, exists := doc.Find("base[href]").First().Attr("href"); exists && href != "" {
		if base, err := sourceURL.Parse(href); err == nil {
			return base
		}
		result.AddError(fmt.Sprintf("ignoring unparsable base href %q", href))
	}
	return sourceURL
}

// extractTitle tries the title tag, then Open Graph, then the first h1
func (p *HTMLPipeline) extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
		if title := strings.TrimSpace(ogTitle); title != "" {
			return title
		}
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return ""
}

// extractLinks collects followable links in document order, resolved against
// the effective base and deduplicated
func (p *HTMLPipeline) extractLinks(doc *goquery.Document, baseURL *url.URL) []string {
	var links []string
	seen := make(map[string]bool)

	collect := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			return
		}
		lower := strings.ToLower(raw)
		for _, scheme := range skippedLinkSchemes {
			if strings.HasPrefix(lower, scheme) {
				return
			}
		}
		resolved := raw
		if baseURL != nil {
			u, err := baseURL.Parse(raw)
			if err != nil {
				return
			}
			resolved = u.String()
		}
		if !seen[resolved] {
			seen[resolved] = true
			links = append(links, resolved)
		}
	}

	doc.Find("a[href], area[href]").Each(func(i int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists {
			collect(href)
		}
	})
	doc.Find("iframe[src], frame[src]").Each(func(i int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists {
			collect(src)
		}
	})

	return links
}

func hostOf(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Host
}
