package prompt

import (
	"strings"
	"testing"

	"subfix/internal/glossary"
)

const samplePrompt = `You are a professional translator.

<!--
This whole block
should be ignored
-->

Use the following name translations consistently:
* Admiral -> 将军
* JAG -> 军法署
Line kept before inline comment <!-- comment inside line -->
* NCIS -> 海军刑事调查局

Use the following institutional correspondences:
* Navy's Judge Advocate General Corps -> 海军军法署
`

func TestSplitInstructions(t *testing.T) {
	instructions, entries := SplitInstructions(samplePrompt)

	if strings.Contains(instructions, "Admiral -> 将军") {
		t.Fatal("glossary bullet leaked into instructions")
	}
	if strings.Contains(instructions, "Use the following name translations consistently:") {
		t.Fatal("glossary header leaked into instructions")
	}
	if strings.Contains(instructions, "This whole block") {
		t.Fatal("comment block leaked into instructions")
	}
	if !strings.Contains(instructions, "Line kept before inline comment") {
		t.Fatal("non-glossary line was dropped")
	}

	sources := make(map[string]bool, len(entries))
	for _, e := range entries {
		sources[e.Source] = true
		if e.Confidence != 1 || e.Category != glossary.CategoryOther {
			t.Fatalf("user entry should default to confidence 1 / other: %+v", e)
		}
	}
	for _, want := range []string{"Admiral", "JAG", "NCIS", "Navy's Judge Advocate General Corps"} {
		if !sources[want] {
			t.Fatalf("missing glossary entry %q in %v", want, entries)
		}
	}
}

func TestParseGlossaryLines(t *testing.T) {
	entries := ParseGlossaryLines("* Chris -> 克里斯\n- Enterprise -> 企业号 (ship)\nnot a bullet\n* broken ->\n")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[0].Source != "Chris" || entries[0].Target != "克里斯" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Category != glossary.CategoryShip || entries[1].Target != "企业号" {
		t.Fatalf("category annotation not parsed: %+v", entries[1])
	}
}

func TestSplitInstructionsEmpty(t *testing.T) {
	instructions, entries := SplitInstructions("")
	if instructions != "" || len(entries) != 0 {
		t.Fatalf("empty input should yield nothing, got %q / %v", instructions, entries)
	}
}
