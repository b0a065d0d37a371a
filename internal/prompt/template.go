package prompt

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed base_template.md
var baseTemplate string

// Default returns the built-in refinement template.
func Default() string {
	return baseTemplate
}

// titlePattern matches a section heading, with or without an enumeration
// prefix: "## 3. Terminology Reference" or "## Terminology Reference".
var titlePattern = regexp.MustCompile(`^##\s+(?:\d+[.)]\s+)?(.*?)\s*$`)

// Section is one titled span of a template. Title carries no enumeration
// prefix; numbering is assigned at render time.
type Section struct {
	Title string
	Body  string
}

// Template is the parsed section index of a prompt document.
type Template struct {
	Preamble string
	Sections []Section
}

// Parse splits a template into its preamble and titled sections. The body of
// a section runs from just after its heading to the next heading or end of
// text, verbatim.
func Parse(text string) Template {
	var t Template
	lines := strings.SplitAfter(text, "\n")

	var preamble strings.Builder
	var body strings.Builder
	current := -1

	flush := func() {
		if current >= 0 {
			t.Sections[current].Body = body.String()
			body.Reset()
		}
	}

	for _, line := range lines {
		if m := titlePattern.FindStringSubmatch(strings.TrimRight(line, "\n")); m != nil {
			flush()
			t.Sections = append(t.Sections, Section{Title: m[1]})
			current = len(t.Sections) - 1
			continue
		}
		if current < 0 {
			preamble.WriteString(line)
		} else {
			body.WriteString(line)
		}
	}
	flush()
	t.Preamble = preamble.String()
	return t
}

// Render serializes the template with headings renumbered sequentially from 1
// in document order.
func (t Template) Render() string {
	var b strings.Builder
	b.WriteString(t.Preamble)
	for i, s := range t.Sections {
		fmt.Fprintf(&b, "## %d. %s\n", i+1, s.Title)
		b.WriteString(s.Body)
	}
	return b.String()
}

// NormalizeTitle reduces a heading to its comparable form: enumeration
// prefix stripped (by Parse), lowercased, trailing colon removed.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.TrimSuffix(title, ":")
	return strings.ToLower(strings.TrimSpace(title))
}

// FindSection returns the index of the first section whose normalized title
// matches, or -1.
func (t Template) FindSection(normalizedTitle string) int {
	for i, s := range t.Sections {
		if NormalizeTitle(s.Title) == normalizedTitle {
			return i
		}
	}
	return -1
}
