package filter

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/aleister1102/driftwatch/internal/classifier"
	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Input carries everything the filter stage needs for one run.
type Input struct {
	Watch       *models.Watch
	ContentType classifier.ContentType
	Body        []byte
}

// Result is the filtered text plus the line-level markers the pipeline
// checksums over.
type Result struct {
	Text         string   // filtered, ignore-stripped text
	IgnoredLines int      // lines removed by ignore rules
	TriggerHits  []string // trigger-text rules found in the text
}

// Filter turns a fetched body into comparable text. Implementations are a
// black box to the pipeline; the default applies the watch's CSS include
// filters and ignore rules.
type Filter interface {
	Apply(input Input) (Result, error)
}

// TextFilter is the default filter implementation.
type TextFilter struct {
	logger zerolog.Logger
}

// NewTextFilter creates the default filter.
func NewTextFilter(logger zerolog.Logger) *TextFilter {
	return &TextFilter{
		logger: logger.With().Str("component", "TextFilter").Logger(),
	}
}

// Apply extracts comparable text per the content type, applies the watch's
// include filters and ignore rules, and records trigger hits.
func (f *TextFilter) Apply(input Input) (Result, error) {
	var text string
	var err error

	switch input.ContentType {
	case classifier.TypeHTML, classifier.TypeRSS, classifier.TypeXML:
		text, err = f.extractMarkupText(input)
		if err != nil {
			return Result{}, err
		}
	case classifier.TypeJSON:
		text = normalizeJSON(input.Body)
	default:
		text = string(input.Body)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		filterMissing := len(input.Watch.IncludeFilters) > 0
		return Result{}, models.NewContentButNoTextError(filterMissing)
	}

	result := Result{}
	result.Text, result.IgnoredLines = stripIgnoredLines(text, input.Watch.IgnoreText)
	result.TriggerHits = findTriggers(result.Text, input.Watch.TriggerText)
	return result, nil
}

// extractMarkupText renders markup to text, honoring include filters when
// the watch has any.
func (f *TextFilter) extractMarkupText(input Input) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(input.Body))
	if err != nil {
		return "", models.WrapError(err, "parsing markup for "+input.Watch.URL)
	}

	doc.Find("script, style, noscript").Remove()

	if len(input.Watch.IncludeFilters) == 0 {
		return collapseWhitespace(doc.Text()), nil
	}

	var parts []string
	matchedAny := false
	for _, selector := range input.Watch.IncludeFilters {
		selection := doc.Find(selector)
		if selection.Length() == 0 {
			f.logger.Debug().Str("selector", selector).Str("url", input.Watch.URL).Msg("Include filter matched nothing")
			continue
		}
		matchedAny = true
		selection.Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, collapseWhitespace(s.Text()))
		})
	}

	if !matchedAny {
		return "", models.NewContentButNoTextError(true)
	}
	return strings.Join(parts, "\n"), nil
}

// normalizeJSON reindents JSON so formatting noise never looks like a
// content change.
func normalizeJSON(body []byte) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}
	normalized, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(normalized)
}

func stripIgnoredLines(text string, ignoreRules []string) (string, int) {
	if len(ignoreRules) == 0 {
		return text, 0
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	ignored := 0
	for _, line := range lines {
		if lineMatchesAny(line, ignoreRules) {
			ignored++
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), ignored
}

func findTriggers(text string, triggerRules []string) []string {
	if len(triggerRules) == 0 {
		return nil
	}
	lowerText := strings.ToLower(text)
	var hits []string
	for _, rule := range triggerRules {
		if strings.Contains(lowerText, strings.ToLower(rule)) {
			hits = append(hits, rule)
		}
	}
	return hits
}

func lineMatchesAny(line string, rules []string) bool {
	lowerLine := strings.ToLower(line)
	for _, rule := range rules {
		if rule == "" {
			continue
		}
		if strings.Contains(lowerLine, strings.ToLower(rule)) {
			return true
		}
	}
	return false
}

// collapseWhitespace flattens runs of blank lines and intra-line spacing so
// DOM reflow doesn't register as change.
func collapseWhitespace(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
