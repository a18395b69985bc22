package replizer

import (
	"sort"
	"strings"
)

// edit is a disjoint range replacement over the original source. Overlaps
// are not supported; zero-width edits (From == To) are pure insertions.
type edit struct {
	From, To int
	Repl     string
}

// applyEdits rewrites source by applying edits left to right, padding each
// replacement with trailing newlines so it never has fewer embedded
// newlines than the span it replaces — the line-count-preservation
// invariant (spec §3, "A rewrite of source never changes its line count").
func applyEdits(source string, edits []edit) string {
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		return (sorted[i].To - sorted[i].From) < (sorted[j].To - sorted[j].From)
	})

	var b strings.Builder
	cursor := 0
	for _, e := range sorted {
		if e.From < cursor {
			// Overlapping edit — drop it rather than corrupt output; this
			// should not happen given how the rule set is constructed.
			continue
		}
		b.WriteString(source[cursor:e.From])
		orig := source[e.From:e.To]
		origLines := strings.Count(orig, "\n")
		replLines := strings.Count(e.Repl, "\n")
		repl := e.Repl
		if replLines < origLines {
			repl += strings.Repeat("\n", origLines-replLines)
		}
		b.WriteString(repl)
		cursor = e.To
	}
	b.WriteString(source[cursor:])
	return b.String()
}
