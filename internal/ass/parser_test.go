package ass

import (
	"strings"
	"testing"
)

const sampleASS = "\uFEFF" + `[Script Info]
Title: Sample Episode
ScriptType: v4.00+

[V4+ Styles]
Format: Name, Fontname
Style: English3,Arial
Style: Chinese3,SimHei

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:03.00,English3,,0,0,0,,hello, world
Dialogue: 0,0:00:01.00,0:00:03.00,Chinese3,,0,0,0,,你好，世界
Comment: 0,0:00:03.00,0:00:04.00,English3,,0,0,0,,editor note
Dialogue: 0,0:00:05.00,0:00:07.00,English3,,0,0,0,,{\i1}goodbye{\i0}
Dialogue: 0,0:00:05.00,0:00:07.00,Chinese3,,0,0,0,,再见
Dialogue: 0,0:00:08.00,0:00:09.00,English3,,0,0,0,,lonely line
`

func parseSample(t *testing.T) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(sampleASS))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestParse(t *testing.T) {
	doc := parseSample(t)
	if !strings.Contains(doc.Header, "Title: Sample Episode") {
		t.Fatal("header lost script info")
	}
	if !strings.Contains(doc.Header, "Format: Layer, Start") {
		t.Fatal("header lost events format line")
	}
	if len(doc.Events) != 6 {
		t.Fatalf("expected 6 events, got %d", len(doc.Events))
	}
	first := doc.Events[0]
	if !first.Dialogue || first.Style != "English3" || first.Text != "hello, world" {
		t.Fatalf("comma-bearing text mangled: %+v", first)
	}
	if doc.Events[2].Dialogue {
		t.Fatal("comment line misparsed as dialogue")
	}
}

func TestRenderRoundTrip(t *testing.T) {
	doc := parseSample(t)
	var out strings.Builder
	if err := doc.Render(&out); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.String() != sampleASS {
		t.Fatalf("round trip diverged:\n--- want ---\n%q\n--- got ---\n%q", sampleASS, out.String())
	}
}

func TestBuildPairs(t *testing.T) {
	doc := parseSample(t)
	items := BuildPairs(doc, PairOptions{})
	if len(items) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(items))
	}
	if items[0].Source != "hello, world" || items[0].Target != "你好，世界" {
		t.Fatalf("unexpected first pair: %+v", items[0])
	}
	if items[1].Source != `{\i1}goodbye{\i0}` || items[1].Target != "再见" {
		t.Fatalf("unexpected second pair: %+v", items[1])
	}
	if items[2].Source != "lonely line" || items[2].Target != "" {
		t.Fatalf("source-only line should pair with empty target: %+v", items[2])
	}
	for i, p := range items {
		if p.ID != i {
			t.Fatalf("pair ids must be sequential from zero: %+v", items)
		}
	}
}

func TestApplyPairs(t *testing.T) {
	doc := parseSample(t)
	items := BuildPairs(doc, PairOptions{})
	items[0].Source = "Hello, world."
	items[0].Target = "你好，世界。"
	ApplyPairs(doc, items)

	var out strings.Builder
	if err := doc.Render(&out); err != nil {
		t.Fatalf("Render: %v", err)
	}
	rendered := out.String()
	if !strings.Contains(rendered, ",Hello, world.") || !strings.Contains(rendered, ",你好，世界。") {
		t.Fatalf("corrections not applied:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Comment: 0,0:00:03.00") {
		t.Fatal("comment line lost on render")
	}
}

func TestBuildPairsCustomStyles(t *testing.T) {
	raw := "[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n" +
		"Dialogue: 0,0:00:01.00,0:00:02.00,SrcTop,,0,0,0,,bonjour\n" +
		"Dialogue: 0,0:00:01.00,0:00:02.00,DstBottom,,0,0,0,,你好\n"
	doc, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	items := BuildPairs(doc, PairOptions{SourceStyle: "src", TargetStyle: "dst"})
	if len(items) != 1 || items[0].Source != "bonjour" || items[0].Target != "你好" {
		t.Fatalf("custom style matching failed: %+v", items)
	}
}
