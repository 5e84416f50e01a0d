package pipeline

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// sniffLimit bounds the meta-tag scan to the document prologue
const sniffLimit = 1024

var (
	metaCharsetRe   = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?\s*([a-zA-Z0-9_.:-]+)`)
	xmlEncodingRe   = regexp.MustCompile(`(?i)<\?xml[^>]+encoding\s*=\s*["']([a-zA-Z0-9_.:-]+)["']`)
	utf8CharsetName = map[string]bool{"utf-8": true, "utf8": true, "us-ascii": true, "ascii": true}
)

// DecodeText converts raw bytes to a UTF-8 string. The charset is resolved in
// priority order: byte-order mark, in-document declaration (meta tag or XML
// prologue within the first 1024 bytes), transport-declared charset, then
// UTF-8 validation with a Windows-1252 fallback for documents that lie about
// their encoding. The in-document declaration outranks the transport header
// because servers commonly apply one blanket charset to every page they serve.
// The second return is the charset actually applied.
func DecodeText(content []byte, declaredCharset string) (string, string) {
	if text, ok := decodeBOM(content); ok {
		return text, "utf-8"
	}

	name := sniffCharset(content)
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(declaredCharset))
	}

	if name == "" || utf8CharsetName[name] {
		if utf8.Valid(content) {
			return string(content), "utf-8"
		}
		// Declared or assumed UTF-8 but invalid bytes present
		name = "windows-1252"
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		enc = charmap.Windows1252
		name = "windows-1252"
	}

	decoded, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		decoded, _ = charmap.Windows1252.NewDecoder().Bytes(content)
		name = "windows-1252"
	}
	return string(decoded), name
}

// decodeBOM handles a leading UTF-8 byte-order mark
func decodeBOM(content []byte) (string, bool) {
	if bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}) {
		return string(content[3:]), true
	}
	return "", false
}

// sniffCharset scans the document prologue for a charset declaration
func sniffCharset(content []byte) string {
	head := content
	if len(head) > sniffLimit {
		head = head[:sniffLimit]
	}

	if m := metaCharsetRe.FindSubmatch(head); m != nil {
		return strings.ToLower(string(m[1]))
	}
	if m := xmlEncodingRe.FindSubmatch(head); m != nil {
		return strings.ToLower(string(m[1]))
	}
	return ""
}
