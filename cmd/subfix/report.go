package main

import (
	"fmt"
	"io"
	"strconv"

	"subfix/internal/batch"
	"subfix/internal/config"
	"subfix/internal/refine"
)

func printBatchStats(out io.Writer, s batch.Stats, policy batch.Policy) {
	fmt.Fprintf(out, "Batch plan (%s)\n", policy.Describe())
	headers := []string{"Metric", "Min", "Max", "Avg"}
	rows := [][]string{
		{"Pairs per batch", strconv.Itoa(s.MinPairs), strconv.Itoa(s.MaxPairs), formatFloat(s.AvgPairs)},
		{"Tokens per batch", strconv.Itoa(s.MinTokens), strconv.Itoa(s.MaxTokens), formatFloat(s.AvgTokens)},
	}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight}
	fmt.Fprintln(out, renderFor(isTerminal(out), headers, rows, aligns))
	fmt.Fprintf(out, "%d batches, %d pairs total\n", s.Batches, s.TotalPairs)
}

func printRunReport(out io.Writer, cfg *config.Config, result *refine.Result) {
	headers := []string{"", "Count"}
	rows := [][]string{
		{"Batches", strconv.Itoa(result.BatchesTotal)},
		{"Refined", strconv.Itoa(result.BatchesDone)},
		{"Resumed", strconv.Itoa(result.BatchesResumed)},
		{"Failed", strconv.Itoa(result.BatchesFailed)},
		{"Learned terms", strconv.Itoa(len(result.Memory.Learned))},
		{"Prompt tokens", strconv.Itoa(result.Usage.PromptTokens)},
		{"Completion tokens", strconv.Itoa(result.Usage.CompletionTokens)},
		{"Total tokens", strconv.Itoa(result.Usage.TotalTokens)},
	}
	if cost := result.Usage.Cost(cfg.Pricing.PromptPer1K, cfg.Pricing.CompletionPer1K); cost > 0 {
		rows = append(rows, []string{"Estimated cost", fmt.Sprintf("%.4f", cost)})
	}
	aligns := []columnAlignment{alignLeft, alignRight}
	fmt.Fprintln(out, renderFor(isTerminal(out), headers, rows, aligns))

	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "%d warnings (see log for details)\n", len(result.Warnings))
	}
}
