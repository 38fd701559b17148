package classifier

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// ContentType labels the filter path a fetched body should take.
type ContentType string

const (
	TypeHTML  ContentType = "html"
	TypeJSON  ContentType = "json"
	TypeText  ContentType = "text"
	TypeRSS   ContentType = "rss"
	TypeXML   ContentType = "xml"
	TypeCSV   ContentType = "csv"
	TypeYAML  ContentType = "yaml"
	TypePDF   ContentType = "pdf"
)

// Classify decides the content type from the response Content-Type header
// first, falling back to content sniffing when the header is absent or
// generic.
func Classify(contentTypeHeader string, body []byte) ContentType {
	header := strings.ToLower(contentTypeHeader)
	if idx := strings.Index(header, ";"); idx >= 0 {
		header = header[:idx]
	}
	header = strings.TrimSpace(header)

	switch {
	case strings.Contains(header, "application/pdf"):
		return TypePDF
	case strings.Contains(header, "application/rss+xml"), strings.Contains(header, "application/atom+xml"):
		return TypeRSS
	case strings.Contains(header, "json"):
		return TypeJSON
	case strings.Contains(header, "xml"):
		return classifyXML(body)
	case strings.Contains(header, "text/html"), strings.Contains(header, "application/xhtml"):
		return TypeHTML
	case strings.Contains(header, "text/csv"):
		return TypeCSV
	case strings.Contains(header, "yaml"):
		return TypeYAML
	}

	return sniff(body)
}

// sniff inspects the body when headers gave no answer.
func sniff(body []byte) ContentType {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return TypeText
	}

	if bytes.HasPrefix(trimmed, []byte("%PDF-")) {
		return TypePDF
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		if json.Valid(trimmed) {
			return TypeJSON
		}
	}

	if trimmed[0] == '<' {
		if looksLikeRSS(trimmed) {
			return TypeRSS
		}
		if looksLikeHTML(trimmed) {
			return TypeHTML
		}
		return TypeXML
	}

	return TypeText
}

func classifyXML(body []byte) ContentType {
	if looksLikeRSS(bytes.TrimSpace(body)) {
		return TypeRSS
	}
	return TypeXML
}

func looksLikeRSS(body []byte) bool {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte("<rss")) || bytes.Contains(lower, []byte("<feed")) ||
		bytes.Contains(lower, []byte("<rdf:rdf"))
}

// looksLikeHTML walks the first few parsed tokens looking for HTML
// structure rather than generic XML.
func looksLikeHTML(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, marker := range [][]byte{[]byte("<!doctype html"), []byte("<html"), []byte("<body"), []byte("<head"), []byte("<div"), []byte("<p>"), []byte("<br")} {
		if bytes.Contains(lower, marker) {
			return true
		}
	}

	// Tokenize a short prefix as a tie-breaker for fragments.
	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	tokenizer := html.NewTokenizer(bytes.NewReader(head))
	for i := 0; i < 10; i++ {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.StartTagToken {
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "span", "a", "table", "ul", "li", "h1", "h2", "h3":
				return true
			}
		}
	}
	return false
}
