package prompt

import (
	"regexp"
	"strings"

	"subfix/internal/glossary"
)

// glossaryLinePattern matches user glossary bullets: "* Term -> 译名".
var glossaryLinePattern = regexp.MustCompile(`^[*-]\s+(.+?)\s+->\s+(.+?)\s*$`)

// htmlCommentPattern strips comments after multi-line blocks are joined.
var htmlCommentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)

// ParseGlossaryLines extracts glossary entries from "* Term -> 译名" bullet
// lines. A trailing parenthesized category annotation is honored when it
// names a known category; entries default to category other with full
// confidence since they come from the user, not the extractor.
func ParseGlossaryLines(text string) []glossary.Entry {
	var entries []glossary.Entry
	for _, line := range strings.Split(text, "\n") {
		m := glossaryLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		source := strings.TrimSpace(m[1])
		target := strings.TrimSpace(m[2])
		category := glossary.CategoryOther
		if open := strings.LastIndex(target, "("); open > 0 && strings.HasSuffix(target, ")") {
			if parsed, ok := glossary.ParseCategory(target[open+1 : len(target)-1]); ok {
				category = parsed
				target = strings.TrimSpace(target[:open])
			}
		}
		if source == "" || target == "" {
			continue
		}
		entries = append(entries, glossary.Entry{
			Source:     source,
			Target:     target,
			Category:   category,
			Confidence: 1,
		})
	}
	return entries
}

// SplitInstructions separates a user-supplied prompt file into free-form
// instruction text and authoritative glossary entries. HTML comments are
// removed entirely, glossary bullets become entries, and header lines that
// only introduce a glossary block (a line ending in ':' directly above
// bullets) are dropped from the instructions.
func SplitInstructions(text string) (string, []glossary.Entry) {
	text = htmlCommentPattern.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	var kept []string
	var entries []glossary.Entry

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if m := glossaryLinePattern.FindStringSubmatch(trimmed); m != nil {
			entries = append(entries, ParseGlossaryLines(trimmed)...)
			continue
		}
		if strings.HasSuffix(trimmed, ":") && nextIsGlossaryBullet(lines, i+1) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}

	instructions := strings.TrimSpace(strings.Join(kept, "\n"))
	instructions = collapseBlankRuns(instructions)
	return instructions, entries
}

func nextIsGlossaryBullet(lines []string, from int) bool {
	for _, line := range lines[min(from, len(lines)):] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		return glossaryLinePattern.MatchString(trimmed)
	}
	return false
}

// collapseBlankRuns squeezes runs of blank lines left behind by removed
// comments and glossary blocks down to a single blank line.
func collapseBlankRuns(text string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
