// Package stats accumulates token usage across LLM calls and estimates run
// cost from per-thousand-token prices.
package stats
