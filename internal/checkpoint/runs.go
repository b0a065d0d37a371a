package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"subfix/internal/glossary"
	"subfix/internal/memory"
	"subfix/internal/pairs"
	"subfix/internal/stats"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one refinement attempt over an input file.
type Run struct {
	ID           string
	InputPath    string
	Fingerprint  string
	TotalBatches int
	Status       string
	Memory       memory.State
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Batch is a completed batch checkpoint.
type Batch struct {
	RunID       string
	Index       int
	Corrected   []pairs.Pair
	Usage       stats.Usage
	CompletedAt time.Time
}

type memoryDoc struct {
	Authoritative []glossary.Entry `json:"authoritative"`
	Learned       []glossary.Entry `json:"learned"`
	StyleNotes    string           `json:"style_notes"`
	Summary       string           `json:"summary"`
}

func encodeMemory(state memory.State) (string, error) {
	doc := memoryDoc{
		Authoritative: state.Authoritative,
		Learned:       state.Learned,
		StyleNotes:    state.StyleNotes,
		Summary:       state.Summary,
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode memory state: %w", err)
	}
	return string(encoded), nil
}

func decodeMemory(raw string) (memory.State, error) {
	var doc memoryDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return memory.State{}, fmt.Errorf("decode memory state: %w", err)
	}
	return memory.State{
		Authoritative: doc.Authoritative,
		Learned:       doc.Learned,
		StyleNotes:    doc.StyleNotes,
		Summary:       doc.Summary,
	}, nil
}

// BeginRun inserts a new run row in the running state.
func (s *Store) BeginRun(ctx context.Context, id, inputPath, fingerprint string, totalBatches int, state memory.State) (*Run, error) {
	memoryJSON, err := encodeMemory(state)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	err = s.execWithRetry(ctx,
		`INSERT INTO runs (id, input_path, fingerprint, total_batches, status, memory_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, inputPath, fingerprint, totalBatches, StatusRunning, memoryJSON, timestamp, timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, id)
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_path, fingerprint, total_batches, status, memory_json, created_at, updated_at
         FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// FindResumable returns the most recent running run for the given input, or
// nil when there is nothing to resume.
func (s *Store) FindResumable(ctx context.Context, inputPath, fingerprint string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_path, fingerprint, total_batches, status, memory_json, created_at, updated_at
         FROM runs WHERE input_path = ? AND fingerprint = ? AND status = ?
         ORDER BY created_at DESC LIMIT 1`,
		inputPath, fingerprint, StatusRunning)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_path, fingerprint, total_batches, status, memory_json, created_at, updated_at
         FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// SaveBatch records one completed batch and the memory state that resulted
// from it, atomically.
func (s *Store) SaveBatch(ctx context.Context, runID string, index int, corrected []pairs.Pair, usage stats.Usage, state memory.State) error {
	ctx = ensureContext(ctx)
	correctedJSON, err := pairs.MarshalWire(corrected)
	if err != nil {
		return fmt.Errorf("encode corrected pairs: %w", err)
	}
	memoryJSON, err := encodeMemory(state)
	if err != nil {
		return err
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO batches (run_id, batch_index, corrected_json, prompt_tokens, completion_tokens, total_tokens, completed_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT (run_id, batch_index) DO UPDATE SET
               corrected_json = excluded.corrected_json,
               prompt_tokens = excluded.prompt_tokens,
               completion_tokens = excluded.completion_tokens,
               total_tokens = excluded.total_tokens,
               completed_at = excluded.completed_at`,
			runID, index, string(correctedJSON),
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, timestamp); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE runs SET memory_json = ?, updated_at = ? WHERE id = ?",
			memoryJSON, timestamp, runID)
		if err != nil {
			return fmt.Errorf("update run memory: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return tx.Commit()
	})
}

// CompletedBatches returns the checkpointed batches for a run keyed by batch
// index.
func (s *Store) CompletedBatches(ctx context.Context, runID string) (map[int]Batch, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_index, corrected_json, prompt_tokens, completion_tokens, total_tokens, completed_at
         FROM batches WHERE run_id = ? ORDER BY batch_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	completed := make(map[int]Batch)
	for rows.Next() {
		var (
			batch         Batch
			correctedJSON string
			completedAt   string
		)
		if err := rows.Scan(&batch.Index, &correctedJSON,
			&batch.Usage.PromptTokens, &batch.Usage.CompletionTokens, &batch.Usage.TotalTokens,
			&completedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batch.RunID = runID
		if batch.Corrected, err = pairs.UnmarshalWire([]byte(correctedJSON)); err != nil {
			return nil, fmt.Errorf("decode corrected pairs: %w", err)
		}
		if batch.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
			return nil, fmt.Errorf("parse batch timestamp: %w", err)
		}
		completed[batch.Index] = batch
	}
	return completed, rows.Err()
}

// FinishRun marks a run completed or failed.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("invalid run status %q", status)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithRetry(ctx,
		"UPDATE runs SET status = ?, updated_at = ? WHERE id = ?",
		status, timestamp, runID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		memoryJSON string
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&run.ID, &run.InputPath, &run.Fingerprint, &run.TotalBatches,
		&run.Status, &memoryJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if run.Memory, err = decodeMemory(memoryJSON); err != nil {
		return nil, err
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse run created_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse run updated_at: %w", err)
	}
	return &run, nil
}
