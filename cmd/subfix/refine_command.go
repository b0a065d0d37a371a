package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"subfix/internal/ass"
	"subfix/internal/batch"
	"subfix/internal/checkpoint"
	"subfix/internal/config"
	"subfix/internal/glossary"
	"subfix/internal/llm"
	"subfix/internal/logging"
	"subfix/internal/memory"
	"subfix/internal/pairs"
	"subfix/internal/prompt"
	"subfix/internal/refine"
	"subfix/internal/stats"
	"subfix/internal/tokens"
)

func newRefineCommand(ctx *commandContext) *cobra.Command {
	var (
		outputPath       string
		inPlace          bool
		dryRun           bool
		noResume         bool
		maxBatches       int
		templatePath     string
		instructionsPath string
	)

	cmd := &cobra.Command{
		Use:   "refine <file.ass>",
		Short: "Refine a bilingual subtitle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.buildLogger()
			if err != nil {
				return err
			}

			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			output, err := resolveOutputPath(input, outputPath, inPlace)
			if err != nil {
				return err
			}

			opts := refineOptions{
				cfg:              cfg,
				logger:           logger,
				input:            input,
				output:           output,
				dryRun:           dryRun,
				resume:           !noResume,
				maxBatches:       maxBatches,
				templatePath:     firstNonEmpty(templatePath, cfg.Prompt.TemplatePath),
				instructionsPath: firstNonEmpty(instructionsPath, cfg.Prompt.InstructionsPath),
			}
			return runRefine(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (default: <input>.refined.ass)")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "Overwrite the input file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan batches and report statistics without calling the API")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "Ignore checkpoints from interrupted runs")
	cmd.Flags().IntVar(&maxBatches, "max-batches", 0, "Stop after this many batches (0 = all)")
	cmd.Flags().StringVar(&templatePath, "template", "", "Prompt template file")
	cmd.Flags().StringVar(&instructionsPath, "instructions", "", "User instruction file")
	return cmd
}

type refineOptions struct {
	cfg              *config.Config
	logger           *slog.Logger
	input            string
	output           string
	dryRun           bool
	resume           bool
	maxBatches       int
	templatePath     string
	instructionsPath string
}

// journal adapts the checkpoint store to the runner's Journal interface,
// binding the run id.
type journal struct {
	store *checkpoint.Store
	runID string
}

func (j journal) SaveBatch(ctx context.Context, index int, corrected []pairs.Pair, usage stats.Usage, state memory.State) error {
	return j.store.SaveBatch(ctx, j.runID, index, corrected, usage, state)
}

func runRefine(cmd *cobra.Command, opts refineOptions) error {
	cfg := opts.cfg
	out := cmd.OutOrStdout()
	cmdCtx := cmd.Context()

	doc, err := ass.ParseFile(opts.input)
	if err != nil {
		return fmt.Errorf("parse subtitle file: %w", err)
	}
	items := ass.BuildPairs(doc, ass.PairOptions{
		SourceStyle: cfg.Styles.Source,
		TargetStyle: cfg.Styles.Target,
	})
	if len(items) == 0 {
		return fmt.Errorf("no dialogue pairs found in %s (styles %q/%q)", opts.input, cfg.Styles.Source, cfg.Styles.Target)
	}

	template, err := loadTemplate(opts.templatePath)
	if err != nil {
		return err
	}
	instructions, userGlossary, err := loadInstructions(opts.instructionsPath)
	if err != nil {
		return err
	}

	state := memory.NewState()
	state.Authoritative = userGlossary
	if err := memory.Validate(state); err != nil {
		return fmt.Errorf("user glossary: %w", err)
	}

	estimator := tokens.NewHeuristic(cfg.LLM.Model)
	policy, err := batchPolicy(cfg)
	if err != nil {
		return err
	}

	runnerOpts := refine.Options{
		Template:     template,
		Instructions: instructions,
		Policy:       policy,
		Estimator:    estimator,
		Terminology:  cfg.Terminology.Enabled,
		Merge: memory.MergeOptions{
			Policy:        memory.Policy(cfg.Terminology.MergePolicy),
			MinConfidence: cfg.Terminology.MinConfidence,
			MaxLearned:    cfg.Memory.MaxLearned,
		},
		MemoryBudget: cfg.Memory.BudgetTokens,
		CompressKeep: cfg.Memory.CompressKeepEntries,
		MaxBatches:   opts.maxBatches,
		DryRun:       opts.dryRun,
		Logger:       opts.logger,
	}

	if opts.dryRun {
		runner, err := refine.NewRunner(nil, nil, nil, runnerOpts)
		if err != nil {
			return err
		}
		result, err := runner.Run(cmdCtx, items, state)
		if err != nil {
			return err
		}
		printBatchStats(out, result.Batches, policy)
		return nil
	}

	store, err := checkpoint.Open(cfg.CheckpointPath())
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	fingerprint, err := fileFingerprint(opts.input)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	if opts.resume {
		prior, err := store.FindResumable(cmdCtx, opts.input, fingerprint)
		if err != nil {
			return fmt.Errorf("find resumable run: %w", err)
		}
		if prior != nil {
			runID = prior.ID
			state = prior.Memory
			completed, err := store.CompletedBatches(cmdCtx, runID)
			if err != nil {
				return fmt.Errorf("load checkpointed batches: %w", err)
			}
			runnerOpts.Completed = make(map[int][]pairs.Pair, len(completed))
			for index, b := range completed {
				runnerOpts.Completed[index] = b.Corrected
			}
			fmt.Fprintf(out, "Resuming run %s (%d batches checkpointed)\n", runID, len(completed))
		}
	}
	if runnerOpts.Completed == nil {
		if _, err := store.BeginRun(cmdCtx, runID, opts.input, fingerprint, 0, state); err != nil {
			return fmt.Errorf("begin run: %w", err)
		}
	}
	runnerOpts.Journal = journal{store: store, runID: runID}

	client := llm.NewClient(llm.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		TimeoutSeconds:  cfg.LLM.TimeoutSeconds,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
	})

	runner, err := refine.NewRunner(client, client, client, runnerOpts)
	if err != nil {
		return err
	}

	runCtx := logging.WithRunID(cmdCtx, runID)
	log := logging.WithContext(runCtx, opts.logger)
	log.Info("refinement started",
		slog.String("input", opts.input),
		slog.Int("pairs", len(items)),
		slog.String("policy", policy.Describe()))

	result, err := runner.Run(runCtx, items, state)
	if err != nil {
		_ = store.FinishRun(cmdCtx, runID, checkpoint.StatusFailed)
		return err
	}

	ass.ApplyPairs(doc, result.Pairs)
	if err := ass.WriteFile(opts.output, doc); err != nil {
		_ = store.FinishRun(cmdCtx, runID, checkpoint.StatusFailed)
		return fmt.Errorf("write output: %w", err)
	}

	if result.BatchesSkipped == 0 {
		if err := store.FinishRun(cmdCtx, runID, checkpoint.StatusCompleted); err != nil {
			log.Warn("finish run", logging.Error(err))
		}
	} else {
		// Partial run (max-batches); the run row stays resumable.
		fmt.Fprintf(out, "Stopped early, %d batches remaining; rerun to resume\n", result.BatchesSkipped)
	}

	printRunReport(out, cfg, result)
	fmt.Fprintf(out, "Wrote %s\n", opts.output)
	return nil
}

func resolveOutputPath(input, flag string, inPlace bool) (string, error) {
	if inPlace && flag != "" {
		return "", fmt.Errorf("--output and --in-place are mutually exclusive")
	}
	if inPlace {
		return input, nil
	}
	if flag != "" {
		return config.ExpandPath(flag)
	}
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".refined" + ext, nil
}

func loadTemplate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return prompt.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

func loadInstructions(path string) (string, []glossary.Entry, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read instructions: %w", err)
	}
	instructions, entries := prompt.SplitInstructions(string(data))
	return instructions, entries, nil
}

func batchPolicy(cfg *config.Config) (batch.Policy, error) {
	switch cfg.Batching.Mode {
	case "fixed":
		return batch.FixedCount{N: cfg.Batching.Count}, nil
	case "token":
		return batch.TokenBudget{
			SoftLimit:    cfg.Batching.SoftLimit,
			SafetyMargin: cfg.Batching.SafetyMargin,
		}, nil
	default:
		return nil, fmt.Errorf("batching.mode: unsupported value %q", cfg.Batching.Mode)
	}
}

func fileFingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint input: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
