package pairs

import "strings"

// CountOverrideTags tallies ASS override blocks ({\i1}, {\b1}, ...) in
// subtitle text. Corrections must leave these untouched, so the counts act as
// a cheap integrity check.
func CountOverrideTags(text string) map[string]int {
	counts := map[string]int{}
	for {
		start := strings.IndexByte(text, '{')
		if start < 0 {
			return counts
		}
		end := strings.IndexByte(text[start:], '}')
		if end < 0 {
			return counts
		}
		tag := text[start : start+end+1]
		counts[tag]++
		text = text[start+end+1:]
	}
}

// TagsPreserved reports whether a correction kept every override tag of the
// original text with the same multiplicity.
func TagsPreserved(original, modified string) bool {
	before := CountOverrideTags(original)
	after := CountOverrideTags(modified)
	if len(before) != len(after) {
		return false
	}
	for tag, n := range before {
		if after[tag] != n {
			return false
		}
	}
	return true
}
