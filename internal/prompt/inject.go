package prompt

import (
	"strings"

	"subfix/internal/glossary"
	"subfix/internal/memory"
)

// TerminologyTitle is the normalized title of the section that receives the
// glossary injection.
const TerminologyTitle = "terminology reference"

// instructionsTitle is the normalized title of the section that carries
// user-supplied instructions.
const instructionsTitle = "additional instructions"

// learnedHeading delimits the unverified learned supplement from the
// authoritative glossary above it.
const learnedHeading = "Learned terms (pending confirmation):"

// MemoryBlock renders a memory state into the exact text injected into the
// terminology section. Size estimation goes through this same function, so
// the estimate can never diverge from what is sent. An empty state renders
// to the empty string.
func MemoryBlock(state memory.State) string {
	return renderMemoryBody(state.Authoritative, state)
}

func renderMemoryBody(authoritative []glossary.Entry, state memory.State) string {
	var blocks []string

	if len(authoritative) > 0 {
		lines := make([]string, 0, len(authoritative))
		for _, e := range authoritative {
			lines = append(lines, "* "+e.Source+" -> "+e.Target)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	if len(state.Learned) > 0 {
		lines := make([]string, 0, len(state.Learned)+1)
		lines = append(lines, learnedHeading)
		for _, e := range state.Learned {
			lines = append(lines, "* "+e.Source+" -> "+e.Target+" ("+string(e.Category)+")")
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	if notes := strings.TrimSpace(state.StyleNotes); notes != "" {
		blocks = append(blocks, "Style guidelines:\n"+notes)
	}
	if summary := strings.TrimSpace(state.Summary); summary != "" {
		blocks = append(blocks, "Context summary:\n"+summary)
	}

	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// Render injects the memory state into the template's terminology section and
// renumbers all headings. Entries declared in the template's own terminology
// body are merged with the runtime authoritative glossary: runtime wins on a
// source-term collision, template order is preserved for unchanged entries,
// and new runtime entries are appended.
//
// The second return value is false when the template has no terminology
// section; the template then comes back with renumbering only and callers
// should surface a warning rather than fail.
func Render(template string, state memory.State) (string, bool) {
	parsed := Parse(template)
	idx := parsed.FindSection(TerminologyTitle)
	if idx < 0 {
		return template, false
	}

	declared := ParseGlossaryLines(parsed.Sections[idx].Body)
	merged := mergeAuthoritative(declared, state.Authoritative)

	body := renderMemoryBody(merged, state)
	if body != "" {
		body = "\n" + body + "\n"
	}
	parsed.Sections[idx].Body = body

	return parsed.Render(), true
}

// mergeAuthoritative overlays runtime entries onto template-declared ones.
func mergeAuthoritative(declared, runtime []glossary.Entry) []glossary.Entry {
	replaced := make(map[string]glossary.Entry, len(runtime))
	for _, e := range runtime {
		replaced[strings.ToLower(e.Source)] = e
	}

	out := make([]glossary.Entry, 0, len(declared)+len(runtime))
	used := make(map[string]struct{}, len(runtime))
	for _, d := range declared {
		key := strings.ToLower(d.Source)
		if r, ok := replaced[key]; ok {
			out = append(out, r)
			used[key] = struct{}{}
			continue
		}
		out = append(out, d)
	}
	for _, e := range runtime {
		if _, ok := used[strings.ToLower(e.Source)]; ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// BuildSystemPrompt assembles the full per-batch system prompt: user
// instructions placed in their own section, memory injected into the
// terminology section, headings renumbered. Warnings are non-fatal notes for
// the run log.
func BuildSystemPrompt(template, instructions string, state memory.State) (string, []string) {
	var warnings []string

	if instructions = strings.TrimSpace(instructions); instructions != "" {
		parsed := Parse(template)
		body := "\n" + instructions + "\n"
		if idx := parsed.FindSection(instructionsTitle); idx >= 0 {
			parsed.Sections[idx].Body = body
		} else {
			parsed.Sections = append(parsed.Sections, Section{Title: "Additional Instructions", Body: body})
		}
		template = parsed.Render()
	}

	rendered, found := Render(template, state)
	if !found {
		warnings = append(warnings, "template has no terminology section; glossary not injected")
	}
	return rendered, warnings
}
