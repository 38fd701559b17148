package differ

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stats summarizes one diff.
type Stats struct {
	LinesAdded   int
	LinesRemoved int
	IsIdentical  bool
}

// ContentDiffer renders line-oriented diffs between two snapshot texts for
// notification bodies.
type ContentDiffer struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewContentDiffer creates a differ with semantic cleanup enabled.
func NewContentDiffer() *ContentDiffer {
	return &ContentDiffer{dmp: diffmatchpatch.New()}
}

// Diff computes the line-level diff between before and after.
func (cd *ContentDiffer) Diff(before, after string) []diffmatchpatch.Diff {
	// line-mode diff: map lines to runes first so hunks stay line-aligned
	beforeRunes, afterRunes, lines := cd.dmp.DiffLinesToRunes(before, after)
	diffs := cd.dmp.DiffMainRunes(beforeRunes, afterRunes, false)
	return cd.dmp.DiffCharsToLines(diffs, lines)
}

// Render produces a plain unified-style text rendering of the diff,
// prefixing added lines with "+" and removed lines with "-".
func (cd *ContentDiffer) Render(before, after string) (string, Stats) {
	diffs := cd.Diff(before, after)

	var b strings.Builder
	stats := Stats{IsIdentical: true}
	for _, diff := range diffs {
		prefix := " "
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
			stats.IsIdentical = false
		case diffmatchpatch.DiffDelete:
			prefix = "-"
			stats.IsIdentical = false
		}
		for _, line := range splitKeptLines(diff.Text) {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
			switch diff.Type {
			case diffmatchpatch.DiffInsert:
				stats.LinesAdded++
			case diffmatchpatch.DiffDelete:
				stats.LinesRemoved++
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), stats
}

func splitKeptLines(text string) []string {
	trimmed := strings.TrimSuffix(text, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
