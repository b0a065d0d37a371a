package pairs

import (
	"encoding/json"
	"fmt"
)

// Pair is one matched source/target subtitle record. The ID is assigned once
// at ingestion and never changes for the duration of a run; Source and Target
// are overwritten in place when a batch of corrections comes back. Meta holds
// round-trip fields (timestamps, styles, original line indices) that the
// pipeline passes through untouched.
type Pair struct {
	ID     int
	Source string
	Target string
	Meta   map[string]string
}

// wirePair is the JSON shape sent to and received from the LLM. Metadata is
// deliberately excluded so prompts stay small.
type wirePair struct {
	ID     int    `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Validate reports whether the pair is structurally usable.
func (p Pair) Validate() error {
	if p.ID < 0 {
		return fmt.Errorf("pair id must be non-negative, got %d", p.ID)
	}
	return nil
}

// MarshalWire serializes pairs into the JSON array form used in prompts.
// The same serialization feeds token estimation so batch sizing never
// diverges from what is actually sent.
func MarshalWire(items []Pair) ([]byte, error) {
	wire := make([]wirePair, 0, len(items))
	for _, p := range items {
		wire = append(wire, wirePair{ID: p.ID, Source: p.Source, Target: p.Target})
	}
	encoded, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal pairs: %w", err)
	}
	return encoded, nil
}

// MarshalPairWire serializes a single pair into its wire form.
func MarshalPairWire(p Pair) ([]byte, error) {
	encoded, err := json.Marshal(wirePair{ID: p.ID, Source: p.Source, Target: p.Target})
	if err != nil {
		return nil, fmt.Errorf("marshal pair %d: %w", p.ID, err)
	}
	return encoded, nil
}

// UnmarshalWire decodes a JSON array of corrected pairs. Metadata is left
// empty; callers match records back to the store by ID.
func UnmarshalWire(data []byte) ([]Pair, error) {
	var wire []wirePair
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal pairs: %w", err)
	}
	items := make([]Pair, 0, len(wire))
	for _, w := range wire {
		items = append(items, Pair{ID: w.ID, Source: w.Source, Target: w.Target})
	}
	return items, nil
}

// ApplyCorrections copies corrected text onto the matching records in the
// store, keyed by ID. Corrections for unknown IDs are ignored; the store's
// order and membership never change.
func ApplyCorrections(store []Pair, corrected []Pair) {
	byID := make(map[int]Pair, len(corrected))
	for _, c := range corrected {
		byID[c.ID] = c
	}
	for i := range store {
		if c, ok := byID[store[i].ID]; ok {
			store[i].Source = c.Source
			store[i].Target = c.Target
		}
	}
}
