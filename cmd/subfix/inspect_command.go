package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"subfix/internal/ass"
	"subfix/internal/batch"
	"subfix/internal/config"
	"subfix/internal/tokens"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file.ass>",
		Short: "Preview batch statistics for a subtitle file without API calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			doc, err := ass.ParseFile(input)
			if err != nil {
				return fmt.Errorf("parse subtitle file: %w", err)
			}
			items := ass.BuildPairs(doc, ass.PairOptions{
				SourceStyle: cfg.Styles.Source,
				TargetStyle: cfg.Styles.Target,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d events, %d pairs\n", input, len(doc.Events), len(items))
			if len(items) == 0 {
				return nil
			}

			policy, err := batchPolicy(cfg)
			if err != nil {
				return err
			}
			estimator := tokens.NewHeuristic(cfg.LLM.Model)
			batches, err := batch.Split(items, policy, 0, estimator)
			if err != nil {
				return err
			}
			if err := batch.Validate(items, batches); err != nil {
				return err
			}
			printBatchStats(out, batch.Statistics(batches, estimator), policy)
			return nil
		},
	}
	return cmd
}
