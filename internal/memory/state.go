package memory

import (
	"fmt"
	"strings"

	"subfix/internal/glossary"
	"subfix/internal/tokens"
)

// localCompressionCharCap bounds StyleNotes and Summary after a local
// (non-oracle) compression pass.
const localCompressionCharCap = 500

// State is the global memory carried from batch to batch. Learned is kept in
// insertion order; insertion order is what the eviction rule means by
// recency. The zero value is a valid empty state.
type State struct {
	Authoritative []glossary.Entry
	Learned       []glossary.Entry
	StyleNotes    string
	Summary       string
}

// NewState returns an empty memory state.
func NewState() State {
	return State{}
}

// Clone deep-copies the state so callers can mutate a candidate without
// touching the original.
func (s State) Clone() State {
	out := State{StyleNotes: s.StyleNotes, Summary: s.Summary}
	if len(s.Authoritative) > 0 {
		out.Authoritative = append([]glossary.Entry(nil), s.Authoritative...)
	}
	if len(s.Learned) > 0 {
		out.Learned = append([]glossary.Entry(nil), s.Learned...)
	}
	return out
}

// Validate checks the structural invariants a state must satisfy. It is the
// acceptance gate for oracle compression output: every field present, every
// glossary entry well-formed, and no source term duplicated across the two
// glossaries (case-insensitive).
func Validate(s State) error {
	auth := make(map[string]struct{}, len(s.Authoritative))
	for _, e := range s.Authoritative {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("authoritative glossary: %w", err)
		}
		key := strings.ToLower(e.Source)
		if _, dup := auth[key]; dup {
			return fmt.Errorf("authoritative glossary: duplicate source term %q", e.Source)
		}
		auth[key] = struct{}{}
	}
	for _, e := range s.Learned {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("learned glossary: %w", err)
		}
		if _, clash := auth[strings.ToLower(e.Source)]; clash {
			return fmt.Errorf("learned glossary: %q shadows an authoritative term", e.Source)
		}
	}
	return nil
}

// EvictLearned drops the oldest learned entries until at most max remain.
// Recency is insertion order; confidence and evidence play no part. A max of
// zero or less disables the bound.
func EvictLearned(s State, max int) State {
	if max <= 0 || len(s.Learned) <= max {
		return s
	}
	s.Learned = append([]glossary.Entry(nil), s.Learned[len(s.Learned)-max:]...)
	return s
}

// EstimateSize renders the state with the supplied renderer and estimates its
// token count. The renderer must be the same function used to inject memory
// into prompts, so the estimate can never drift from what is actually sent.
func EstimateSize(s State, render func(State) string, est tokens.Estimator) int {
	if render == nil {
		return 0
	}
	return tokens.Count(est, render(s))
}

// NeedsCompression reports whether the rendered state exceeds the budget.
func NeedsCompression(s State, budget int, render func(State) string, est tokens.Estimator) bool {
	if budget <= 0 {
		return false
	}
	return EstimateSize(s, render, est) > budget
}

// CompressLocal is the non-oracle fallback: keep only the most recent
// keepEntries learned entries and cap the free-form fields. The authoritative
// glossary is never touched.
func CompressLocal(s State, keepEntries int) State {
	out := s.Clone()
	if keepEntries > 0 && len(out.Learned) > keepEntries {
		out.Learned = append([]glossary.Entry(nil), out.Learned[len(out.Learned)-keepEntries:]...)
	}
	out.StyleNotes = truncateRunes(out.StyleNotes, localCompressionCharCap)
	out.Summary = truncateRunes(out.Summary, localCompressionCharCap)
	return out
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
