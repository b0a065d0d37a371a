package tokens

import (
	"strings"

	"golang.org/x/text/width"
)

const latinCharsPerToken = 4

// Estimator estimates the token count of a piece of text for a specific
// model. Implementations must be deterministic and monotonic: the estimate
// for a string is never smaller than the estimate for any of its prefixes.
type Estimator interface {
	Estimate(text string) (int, error)
}

// Heuristic is a model-tagged character-count estimator. It does not consult
// a real tokenizer; it exists so budgeting works offline and never blocks on
// a tokenizer dependency.
type Heuristic struct {
	model string
}

// NewHeuristic returns a heuristic estimator for the given model identifier.
// The identifier is kept for determinism bookkeeping; unknown models use the
// default ratios.
func NewHeuristic(model string) *Heuristic {
	return &Heuristic{model: strings.TrimSpace(model)}
}

// Model returns the model identifier this estimator was built for.
func (h *Heuristic) Model() string {
	return h.model
}

// Estimate counts wide East Asian runes as one token each and batches the
// remaining bytes at four characters per token.
func (h *Heuristic) Estimate(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	wide := 0
	narrow := 0
	for _, r := range text {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			wide++
		default:
			narrow++
		}
	}
	total := wide + (narrow+latinCharsPerToken-1)/latinCharsPerToken
	if total == 0 {
		total = 1
	}
	return total, nil
}

// Count runs the estimator and falls back to a coarse character heuristic if
// it fails. Budgeting must keep working even when the estimator cannot.
func Count(est Estimator, text string) int {
	if est != nil {
		if n, err := est.Estimate(text); err == nil {
			return n
		}
	}
	n := len(text) / latinCharsPerToken
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
