// Package tokens provides token-count estimation for prompt budgeting.
//
// The estimates drive batch sizing and memory compression thresholds, so they
// only need to be deterministic and monotonic, not exact. The heuristic
// estimator is CJK-aware: wide East Asian runes tokenize close to one token
// each, while Latin text averages about four characters per token.
package tokens
