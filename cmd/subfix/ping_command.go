package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"subfix/internal/llm"
)

func newPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Verify API connectivity and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			client := llm.NewClient(llm.Config{
				APIKey:         cfg.LLM.APIKey,
				BaseURL:        cfg.LLM.BaseURL,
				Model:          cfg.LLM.Model,
				TimeoutSeconds: cfg.LLM.TimeoutSeconds,
			})

			pingCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			start := time.Now()
			if err := client.Ping(pingCtx); err != nil {
				return fmt.Errorf("ping %s: %w", cfg.LLM.Model, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s responded in %s\n", cfg.LLM.Model, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
