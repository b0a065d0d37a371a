package glossary

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category classifies what kind of thing a glossary term names.
type Category string

const (
	CategoryPerson       Category = "person"
	CategoryPlace        Category = "place"
	CategoryOrganization Category = "organization"
	CategoryTitle        Category = "title"
	CategoryAcronym      Category = "acronym"
	CategoryUnit         Category = "unit"
	CategoryShip         Category = "ship"
	CategoryProject      Category = "project"
	CategoryLaw          Category = "law"
	CategoryOther        Category = "other"
)

// maxEvidenceIDs caps how many observation sites an entry records.
const maxEvidenceIDs = 5

// ParseCategory normalizes a raw category string. The second return value is
// false for values outside the fixed set.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CategoryPerson, CategoryPlace, CategoryOrganization, CategoryTitle,
		CategoryAcronym, CategoryUnit, CategoryShip, CategoryProject,
		CategoryLaw, CategoryOther:
		return c, true
	}
	return "", false
}

// Entry is one terminology mapping. EvidenceIDs lists up to five pair IDs
// where the term was observed, in discovery order.
type Entry struct {
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Category    Category `json:"category"`
	Confidence  float64  `json:"confidence"`
	EvidenceIDs []int    `json:"evidence_ids,omitempty"`
}

// Validate checks the structural invariants every entry must satisfy before
// it participates in a merge.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Source) == "" {
		return fmt.Errorf("glossary entry: empty source term")
	}
	if strings.TrimSpace(e.Target) == "" {
		return fmt.Errorf("glossary entry %q: empty target term", e.Source)
	}
	if _, ok := ParseCategory(string(e.Category)); !ok {
		return fmt.Errorf("glossary entry %q: unknown category %q", e.Source, e.Category)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("glossary entry %q: confidence %v out of range", e.Source, e.Confidence)
	}
	return nil
}

// NormalizeEvidence deduplicates evidence IDs, preserves first-seen order,
// and caps the list at five entries. Negative IDs are dropped.
func NormalizeEvidence(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, maxEvidenceIDs)
	for _, id := range ids {
		if id < 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == maxEvidenceIDs {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Sanitize applies the pre-merge filter: entries below the confidence
// threshold, with an unknown category, or with empty terms are dropped, and
// evidence lists are normalized. The extraction model returns entries raw and
// unfiltered so the threshold can change without re-querying it.
func Sanitize(raw []Entry, minConfidence float64) []Entry {
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		e.Source = strings.TrimSpace(e.Source)
		e.Target = strings.TrimSpace(e.Target)
		category, ok := ParseCategory(string(e.Category))
		if !ok {
			continue
		}
		e.Category = category
		if e.Source == "" || e.Target == "" {
			continue
		}
		if e.Confidence < minConfidence || e.Confidence > 1 {
			continue
		}
		e.EvidenceIDs = NormalizeEvidence(e.EvidenceIDs)
		out = append(out, e)
	}
	return out
}

// DecodeEntries parses a JSON array of raw extraction output. Non-object
// items and entries with an unparseable confidence are skipped rather than
// failing the whole array; a malformed top-level document is an error.
func DecodeEntries(data []byte) ([]Entry, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, fmt.Errorf("decode glossary entries: %w", err)
	}
	entries := make([]Entry, 0, len(rawItems))
	for _, item := range rawItems {
		var e Entry
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
