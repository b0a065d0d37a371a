package batch

import (
	"fmt"

	"subfix/internal/pairs"
	"subfix/internal/tokens"
)

// Policy selects how pairs are grouped into batches.
type Policy interface {
	split(items []pairs.Pair, baseOverhead int, est tokens.Estimator) [][]pairs.Pair
	// Describe returns a short human-readable policy summary for logs.
	Describe() string
}

// FixedCount batches exactly N pairs per batch, with the remainder in the
// final batch.
type FixedCount struct {
	N int
}

// Describe implements Policy.
func (p FixedCount) Describe() string {
	return fmt.Sprintf("fixed count (%d pairs per batch)", p.N)
}

func (p FixedCount) split(items []pairs.Pair, _ int, _ tokens.Estimator) [][]pairs.Pair {
	var out [][]pairs.Pair
	for start := 0; start < len(items); start += p.N {
		end := min(start+p.N, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// TokenBudget greedily accumulates pairs while the running estimate stays
// within SoftLimit minus the base prompt overhead and the safety margin.
type TokenBudget struct {
	SoftLimit    int
	SafetyMargin int
}

// Describe implements Policy.
func (p TokenBudget) Describe() string {
	return fmt.Sprintf("token budget (soft limit %d, safety margin %d)", p.SoftLimit, p.SafetyMargin)
}

func (p TokenBudget) split(items []pairs.Pair, baseOverhead int, est tokens.Estimator) [][]pairs.Pair {
	available := p.SoftLimit - baseOverhead - p.SafetyMargin

	var out [][]pairs.Pair
	var current []pairs.Pair
	running := 0

	for _, item := range items {
		cost := PairTokens(item, est)
		// A pair that alone exceeds the budget still ships, in its own batch.
		if len(current) > 0 && running+cost > available {
			out = append(out, current)
			current = nil
			running = 0
		}
		current = append(current, item)
		running += cost
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

// Split divides the pair sequence into ordered batches under the given
// policy. Empty input yields an empty batch list. The result is fully
// deterministic for a given input, policy, and estimator.
func Split(items []pairs.Pair, policy Policy, baseOverhead int, est tokens.Estimator) ([][]pairs.Pair, error) {
	if policy == nil {
		return nil, fmt.Errorf("split: nil policy")
	}
	if fixed, ok := policy.(FixedCount); ok && fixed.N <= 0 {
		return nil, fmt.Errorf("split: fixed count must be positive, got %d", fixed.N)
	}
	if budget, ok := policy.(TokenBudget); ok && budget.SoftLimit <= 0 {
		return nil, fmt.Errorf("split: token soft limit must be positive, got %d", budget.SoftLimit)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return policy.split(items, baseOverhead, est), nil
}

// PairTokens estimates one pair's wire-form token cost. Serialization errors
// fall back to the raw text length so sizing never aborts the run.
func PairTokens(p pairs.Pair, est tokens.Estimator) int {
	encoded, err := pairs.MarshalPairWire(p)
	if err != nil {
		return tokens.Count(est, p.Source+p.Target)
	}
	return tokens.Count(est, string(encoded))
}

// BatchTokens estimates a whole batch's wire-form token cost.
func BatchTokens(items []pairs.Pair, est tokens.Estimator) int {
	encoded, err := pairs.MarshalWire(items)
	if err != nil {
		total := 0
		for _, p := range items {
			total += PairTokens(p, est)
		}
		return total
	}
	return tokens.Count(est, string(encoded))
}
