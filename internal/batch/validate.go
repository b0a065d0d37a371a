package batch

import (
	"fmt"

	"subfix/internal/pairs"
)

// Validate checks the coverage invariant: the union of batch contents (by ID)
// equals the input's ID set with no duplicates and no omissions. A failure
// here is a programming error in the batcher and must stop the run.
func Validate(input []pairs.Pair, batches [][]pairs.Pair) error {
	want := make(map[int]struct{}, len(input))
	for _, p := range input {
		if _, dup := want[p.ID]; dup {
			return fmt.Errorf("batch validation: input contains duplicate pair id %d", p.ID)
		}
		want[p.ID] = struct{}{}
	}

	seen := make(map[int]struct{}, len(input))
	total := 0
	for i, b := range batches {
		for _, p := range b {
			if _, ok := want[p.ID]; !ok {
				return fmt.Errorf("batch validation: batch %d contains unknown pair id %d", i, p.ID)
			}
			if _, dup := seen[p.ID]; dup {
				return fmt.Errorf("batch validation: pair id %d appears in more than one batch", p.ID)
			}
			seen[p.ID] = struct{}{}
			total++
		}
	}
	if total != len(input) {
		return fmt.Errorf("batch validation: batches hold %d pairs, input has %d", total, len(input))
	}
	return nil
}
