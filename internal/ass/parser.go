package ass

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Event is one line inside the [Events] section. Non-dialogue lines
// (comments, unknown directives) keep their raw text and round-trip
// untouched.
type Event struct {
	Raw      string
	Dialogue bool

	// Dialogue fields, populated when Dialogue is true.
	Index   int
	Layer   string
	Start   string
	End     string
	Style   string
	Name    string
	MarginL string
	MarginR string
	MarginV string
	Effect  string
	Text    string
}

// Document is a parsed subtitle file: the opaque header (everything through
// the [Events] Format line) plus the ordered event list.
type Document struct {
	Header string
	Events []Event
}

// ParseFile reads and parses a subtitle file from disk.
func ParseFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subtitle file: %w", err)
	}
	defer file.Close()
	doc, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// Parse reads a subtitle document. A UTF-8 BOM is tolerated and re-emitted
// on render.
func Parse(r io.Reader) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	doc := &Document{}
	var header strings.Builder
	inEvents := false
	dialogueIndex := 0
	first := true

	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "\uFEFF") {
				line = strings.TrimPrefix(line, "\uFEFF")
				header.WriteString("\uFEFF")
			}
		}
		stripped := strings.TrimSpace(line)

		if stripped == "[Events]" {
			inEvents = true
			header.WriteString(line + "\n")
			continue
		}
		if !inEvents || strings.HasPrefix(stripped, "Format:") {
			header.WriteString(line + "\n")
			continue
		}
		if dialogue, ok := parseDialogue(stripped, dialogueIndex); ok {
			doc.Events = append(doc.Events, dialogue)
			dialogueIndex++
			continue
		}
		doc.Events = append(doc.Events, Event{Raw: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read subtitle data: %w", err)
	}
	doc.Header = header.String()
	return doc, nil
}

// parseDialogue splits a "Dialogue:" line into its ten fields. Only the first
// nine commas delimit fields; the text keeps the rest.
func parseDialogue(line string, index int) (Event, bool) {
	if !strings.HasPrefix(line, "Dialogue:") {
		return Event{}, false
	}
	content := strings.TrimSpace(line[len("Dialogue:"):])
	parts := strings.SplitN(content, ",", 10)
	if len(parts) < 10 {
		return Event{}, false
	}
	return Event{
		Raw:      line,
		Dialogue: true,
		Index:    index,
		Layer:    parts[0],
		Start:    parts[1],
		End:      parts[2],
		Style:    parts[3],
		Name:     parts[4],
		MarginL:  parts[5],
		MarginR:  parts[6],
		MarginV:  parts[7],
		Effect:   parts[8],
		Text:     parts[9],
	}, true
}

// Render writes the document back out. Dialogue lines are reassembled from
// their fields so text corrections take effect; everything else is emitted
// verbatim.
func (d *Document) Render(w io.Writer) error {
	if _, err := io.WriteString(w, d.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, ev := range d.Events {
		var line string
		if ev.Dialogue {
			line = fmt.Sprintf("Dialogue: %s,%s,%s,%s,%s,%s,%s,%s,%s,%s",
				ev.Layer, ev.Start, ev.End, ev.Style, ev.Name,
				ev.MarginL, ev.MarginR, ev.MarginV, ev.Effect, ev.Text)
		} else {
			line = ev.Raw
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	return nil
}

// WriteFile renders the document to disk.
func WriteFile(path string, doc *Document) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer file.Close()
	if err := doc.Render(file); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}
