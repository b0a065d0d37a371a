package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"subfix/internal/batch"
	"subfix/internal/glossary"
	"subfix/internal/logging"
	"subfix/internal/memory"
	"subfix/internal/pairs"
	"subfix/internal/prompt"
	"subfix/internal/stats"
	"subfix/internal/tokens"
)

// Refiner corrects one batch of subtitle pairs.
type Refiner interface {
	RefineBatch(ctx context.Context, systemPrompt string, batch []pairs.Pair) ([]pairs.Pair, stats.Usage, error)
}

// Extractor proposes glossary entries for one batch.
type Extractor interface {
	ExtractTerminology(ctx context.Context, batch []pairs.Pair, state memory.State) ([]glossary.Entry, stats.Usage, error)
}

// Compressor shrinks a memory state toward a token budget.
type Compressor interface {
	CompressMemory(ctx context.Context, state memory.State, budgetTokens int) (memory.State, stats.Usage, error)
}

// Journal checkpoints completed batches. Save failures do not stop the run.
type Journal interface {
	SaveBatch(ctx context.Context, index int, corrected []pairs.Pair, usage stats.Usage, state memory.State) error
}

// Options configures a run.
type Options struct {
	Template     string
	Instructions string
	Policy       batch.Policy
	Estimator    tokens.Estimator

	Terminology bool
	Merge       memory.MergeOptions

	MemoryBudget int
	CompressKeep int

	// Completed maps batch index to already-corrected pairs from a prior
	// interrupted run; those batches are applied without any model calls.
	Completed map[int][]pairs.Pair
	Journal   Journal

	MaxBatches int
	DryRun     bool

	Logger *slog.Logger
}

// Result summarizes a finished run.
type Result struct {
	Pairs   []pairs.Pair
	Memory  memory.State
	Usage   stats.Usage
	Batches batch.Stats

	BatchesTotal   int
	BatchesDone    int
	BatchesResumed int
	BatchesFailed  int
	BatchesSkipped int

	Warnings []string
}

// Runner executes the refinement loop over one subtitle file.
type Runner struct {
	refiner    Refiner
	extractor  Extractor
	compressor Compressor
	opts       Options
	logger     *slog.Logger
}

// NewRunner builds a runner. extractor and compressor may be nil; a nil
// compressor selects the local compression fallback.
func NewRunner(refiner Refiner, extractor Extractor, compressor Compressor, opts Options) (*Runner, error) {
	if refiner == nil && !opts.DryRun {
		return nil, errors.New("refine: refiner required")
	}
	if opts.Policy == nil {
		return nil, errors.New("refine: batch policy required")
	}
	if opts.Template == "" {
		opts.Template = prompt.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		refiner:    refiner,
		extractor:  extractor,
		compressor: compressor,
		opts:       opts,
		logger:     logger,
	}, nil
}

// Run processes every batch in order and returns the corrected pairs along
// with the final memory state. items is mutated in place as corrections are
// applied.
func (r *Runner) Run(ctx context.Context, items []pairs.Pair, initial memory.State) (*Result, error) {
	state := initial.Clone()
	result := &Result{Memory: state}

	systemPrompt, warns := prompt.BuildSystemPrompt(r.opts.Template, r.opts.Instructions, state)
	r.warnAll(ctx, result, warns)

	baseOverhead := tokens.Count(r.opts.Estimator, systemPrompt)
	batches, err := batch.Split(items, r.opts.Policy, baseOverhead, r.opts.Estimator)
	if err != nil {
		return nil, fmt.Errorf("split batches: %w", err)
	}
	if err := batch.Validate(items, batches); err != nil {
		return nil, fmt.Errorf("batch coverage: %w", err)
	}

	result.BatchesTotal = len(batches)
	result.Batches = batch.Statistics(batches, r.opts.Estimator)
	if r.opts.DryRun {
		result.Pairs = items
		return result, nil
	}

	for i, group := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.opts.MaxBatches > 0 && result.BatchesDone >= r.opts.MaxBatches {
			result.BatchesSkipped = len(batches) - i
			break
		}

		batchCtx := logging.WithBatch(ctx, i)
		log := logging.WithContext(batchCtx, r.logger)

		if corrected, ok := r.opts.Completed[i]; ok {
			pairs.ApplyCorrections(items, corrected)
			result.BatchesResumed++
			log.Info("batch restored from checkpoint", slog.Int("corrections", len(corrected)))
			continue
		}

		state, err = r.processBatch(batchCtx, log, items, group, i, state, result)
		if err != nil {
			return nil, err
		}
		result.Memory = state
	}

	result.Pairs = items
	result.Memory = state
	return result, nil
}

// processBatch runs one batch end to end and returns the memory state to
// carry forward. Oracle failures are downgraded to warnings; only context
// cancellation aborts the run.
func (r *Runner) processBatch(ctx context.Context, log *slog.Logger, items, group []pairs.Pair, index int, state memory.State, result *Result) (memory.State, error) {
	systemPrompt, warns := prompt.BuildSystemPrompt(r.opts.Template, r.opts.Instructions, state)
	r.warnAll(ctx, result, warns)

	corrected, usage, err := r.refiner.RefineBatch(ctx, systemPrompt, group)
	result.Usage = result.Usage.Add(usage)
	if err != nil {
		if ctx.Err() != nil {
			return state, ctx.Err()
		}
		result.BatchesFailed++
		r.warn(result, log, fmt.Sprintf("batch %d failed, continuing: %v", index, err))
		return state, nil
	}

	r.checkTags(log, result, group, corrected)
	pairs.ApplyCorrections(items, corrected)
	result.BatchesDone++
	log.Info("batch refined",
		slog.Int("pairs", len(group)),
		slog.Int("corrections", len(corrected)),
		slog.Int("tokens", usage.TotalTokens))

	if r.opts.Terminology && r.extractor != nil {
		state = r.extractAndMerge(ctx, log, group, state, result)
	}
	state = r.compressIfNeeded(ctx, log, state, result)

	if r.opts.Journal != nil {
		if err := r.opts.Journal.SaveBatch(ctx, index, corrected, usage, state); err != nil {
			r.warn(result, log, fmt.Sprintf("checkpoint batch %d: %v", index, err))
		}
	}
	return state, nil
}

func (r *Runner) extractAndMerge(ctx context.Context, log *slog.Logger, group []pairs.Pair, state memory.State, result *Result) memory.State {
	proposed, usage, err := r.extractor.ExtractTerminology(ctx, group, state)
	result.Usage = result.Usage.Add(usage)
	if err != nil {
		r.warn(result, log, fmt.Sprintf("terminology extraction failed, continuing: %v", err))
		return state
	}

	merged, report, err := memory.Merge(state, proposed, r.opts.Merge)
	if err != nil {
		r.warn(result, log, fmt.Sprintf("terminology merge failed, continuing: %v", err))
		return state
	}
	for _, conflict := range report.Conflicts {
		r.warn(result, log, "terminology conflict: "+conflict)
	}
	if report.Accepted > 0 || report.Conflicting > 0 {
		log.Info("terminology merged",
			slog.Int("accepted", report.Accepted),
			slog.Int("conflicting", report.Conflicting),
			slog.Int("filtered", report.Filtered),
			slog.Int("learned", len(merged.Learned)))
	}
	return merged
}

func (r *Runner) compressIfNeeded(ctx context.Context, log *slog.Logger, state memory.State, result *Result) memory.State {
	if !memory.NeedsCompression(state, r.opts.MemoryBudget, prompt.MemoryBlock, r.opts.Estimator) {
		return state
	}

	if r.compressor == nil {
		compressed := memory.CompressLocal(state, r.opts.CompressKeep)
		log.Info("memory compressed locally",
			slog.Int("learned_before", len(state.Learned)),
			slog.Int("learned_after", len(compressed.Learned)))
		return compressed
	}

	candidate, usage, err := r.compressor.CompressMemory(ctx, state, r.opts.MemoryBudget)
	result.Usage = result.Usage.Add(usage)
	if err != nil {
		r.warn(result, log, fmt.Sprintf("memory compression failed, keeping prior state: %v", err))
		return state
	}
	if err := memory.Validate(candidate); err != nil {
		r.warn(result, log, fmt.Sprintf("memory compression produced invalid state, keeping prior state: %v", err))
		return state
	}
	if !authoritativePreserved(state, candidate) {
		r.warn(result, log, "memory compression altered the authoritative glossary, keeping prior state")
		return state
	}
	log.Info("memory compressed",
		slog.Int("learned_before", len(state.Learned)),
		slog.Int("learned_after", len(candidate.Learned)))
	return candidate
}

func (r *Runner) checkTags(log *slog.Logger, result *Result, group, corrected []pairs.Pair) {
	byID := make(map[int]pairs.Pair, len(group))
	for _, p := range group {
		byID[p.ID] = p
	}
	for _, c := range corrected {
		original, ok := byID[c.ID]
		if !ok {
			continue
		}
		if !pairs.TagsPreserved(original.Target, c.Target) {
			r.warn(result, log, fmt.Sprintf("pair %d: override tags changed by correction", c.ID))
		}
	}
}

func authoritativePreserved(prior, candidate memory.State) bool {
	if len(prior.Authoritative) != len(candidate.Authoritative) {
		return false
	}
	targets := make(map[string]string, len(prior.Authoritative))
	for _, e := range prior.Authoritative {
		targets[e.Source] = e.Target
	}
	for _, e := range candidate.Authoritative {
		if target, ok := targets[e.Source]; !ok || target != e.Target {
			return false
		}
	}
	return true
}

func (r *Runner) warn(result *Result, log *slog.Logger, message string) {
	result.Warnings = append(result.Warnings, message)
	log.Warn(message)
}

func (r *Runner) warnAll(ctx context.Context, result *Result, warns []string) {
	log := logging.WithContext(ctx, r.logger)
	for _, w := range warns {
		if slices.Contains(result.Warnings, w) {
			continue
		}
		r.warn(result, log, w)
	}
}
