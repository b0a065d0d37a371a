package batch

import (
	"subfix/internal/pairs"
	"subfix/internal/tokens"
)

// Stats summarizes a batch split for reporting. All numbers are derivable
// from the batches and the estimator alone, so identical inputs always
// reproduce identical statistics.
type Stats struct {
	Batches    int
	TotalPairs int
	MinPairs   int
	MaxPairs   int
	AvgPairs   float64
	MinTokens  int
	MaxTokens  int
	AvgTokens  float64
}

// Statistics computes per-batch pair and token distribution figures.
func Statistics(batches [][]pairs.Pair, est tokens.Estimator) Stats {
	var s Stats
	if len(batches) == 0 {
		return s
	}
	s.Batches = len(batches)

	totalTokens := 0
	for i, b := range batches {
		n := len(b)
		t := BatchTokens(b, est)
		s.TotalPairs += n
		totalTokens += t
		if i == 0 || n < s.MinPairs {
			s.MinPairs = n
		}
		if n > s.MaxPairs {
			s.MaxPairs = n
		}
		if i == 0 || t < s.MinTokens {
			s.MinTokens = t
		}
		if t > s.MaxTokens {
			s.MaxTokens = t
		}
	}
	s.AvgPairs = float64(s.TotalPairs) / float64(s.Batches)
	s.AvgTokens = float64(totalTokens) / float64(s.Batches)
	return s
}
