package ass

import (
	"strconv"
	"strings"

	"subfix/internal/pairs"
)

// PairOptions controls how dialogue lines are matched into bilingual pairs.
// Styles are matched by case-insensitive substring, so "English3" and
// "EnglishTop" both count as source lines under the default keywords.
type PairOptions struct {
	SourceStyle string
	TargetStyle string
}

func (o PairOptions) withDefaults() PairOptions {
	if strings.TrimSpace(o.SourceStyle) == "" {
		o.SourceStyle = "english"
	}
	if strings.TrimSpace(o.TargetStyle) == "" {
		o.TargetStyle = "chinese"
	}
	return o
}

const (
	metaStart      = "start"
	metaEnd        = "end"
	metaSourceLine = "source_line"
	metaTargetLine = "target_line"
)

// BuildPairs matches dialogue lines that share a start/end timestamp into
// bilingual pairs, in order of first appearance. A source line without a
// matching target still forms a pair (with empty target); target-only groups
// are skipped. Pair IDs are assigned sequentially from zero.
func BuildPairs(doc *Document, opts PairOptions) []pairs.Pair {
	opts = opts.withDefaults()
	sourceKey := strings.ToLower(opts.SourceStyle)
	targetKey := strings.ToLower(opts.TargetStyle)

	type group struct {
		source *Event
		target *Event
	}
	groups := map[[2]string]*group{}
	var order [][2]string

	for i := range doc.Events {
		ev := &doc.Events[i]
		if !ev.Dialogue {
			continue
		}
		style := strings.ToLower(ev.Style)
		key := [2]string{ev.Start, ev.End}
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		switch {
		case strings.Contains(style, sourceKey):
			if g.source == nil {
				g.source = ev
			}
		case strings.Contains(style, targetKey):
			if g.target == nil {
				g.target = ev
			}
		}
	}

	var out []pairs.Pair
	for _, key := range order {
		g := groups[key]
		if g.source == nil {
			continue
		}
		meta := map[string]string{
			metaStart:      g.source.Start,
			metaEnd:        g.source.End,
			metaSourceLine: strconv.Itoa(g.source.Index),
			metaTargetLine: "-1",
		}
		target := ""
		if g.target != nil {
			target = g.target.Text
			meta[metaTargetLine] = strconv.Itoa(g.target.Index)
		}
		out = append(out, pairs.Pair{
			ID:     len(out),
			Source: g.source.Text,
			Target: target,
			Meta:   meta,
		})
	}
	return out
}

// ApplyPairs copies corrected pair text back onto the dialogue lines the
// pairs were built from. Pairs without line metadata are ignored.
func ApplyPairs(doc *Document, items []pairs.Pair) {
	byIndex := map[int]*Event{}
	for i := range doc.Events {
		if doc.Events[i].Dialogue {
			byIndex[doc.Events[i].Index] = &doc.Events[i]
		}
	}
	for _, p := range items {
		if p.Meta == nil {
			continue
		}
		if idx, err := strconv.Atoi(p.Meta[metaSourceLine]); err == nil {
			if ev, ok := byIndex[idx]; ok {
				ev.Text = p.Source
			}
		}
		if idx, err := strconv.Atoi(p.Meta[metaTargetLine]); err == nil && idx >= 0 {
			if ev, ok := byIndex[idx]; ok {
				ev.Text = p.Target
			}
		}
	}
}
