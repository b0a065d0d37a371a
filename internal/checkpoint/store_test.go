package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"subfix/internal/glossary"
	"subfix/internal/memory"
	"subfix/internal/pairs"
	"subfix/internal/stats"
)

func mustOpen(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "checkpoint.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRunLifecycle(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()
	runID := uuid.NewString()

	state := memory.State{
		Authoritative: []glossary.Entry{{Source: "Chris", Target: "克里斯", Category: glossary.CategoryPerson, Confidence: 1}},
		Summary:       "Pilot episode.",
	}
	run, err := store.BeginRun(ctx, runID, "/videos/ep01.ass", "abc123", 4, state)
	if err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}
	if run.Status != StatusRunning || run.TotalBatches != 4 {
		t.Fatalf("unexpected run %+v", run)
	}
	if len(run.Memory.Authoritative) != 1 || run.Memory.Summary != "Pilot episode." {
		t.Fatalf("memory snapshot did not round-trip: %+v", run.Memory)
	}

	corrected := []pairs.Pair{{ID: 7, Source: "Hello there.", Target: "你好。"}}
	usage := stats.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}
	state.Learned = append(state.Learned, glossary.Entry{
		Source: "Bryer", Target: "布赖尔", Category: glossary.CategoryPerson, Confidence: 0.8,
	})
	if err := store.SaveBatch(ctx, runID, 0, corrected, usage, state); err != nil {
		t.Fatalf("SaveBatch returned error: %v", err)
	}

	completed, err := store.CompletedBatches(ctx, runID)
	if err != nil {
		t.Fatalf("CompletedBatches returned error: %v", err)
	}
	batch, ok := completed[0]
	if !ok {
		t.Fatalf("expected batch 0 in %v", completed)
	}
	if len(batch.Corrected) != 1 || batch.Corrected[0].ID != 7 || batch.Corrected[0].Target != "你好。" {
		t.Fatalf("unexpected corrected pairs %+v", batch.Corrected)
	}
	if batch.Usage.TotalTokens != 120 {
		t.Fatalf("unexpected usage %+v", batch.Usage)
	}

	run, err = store.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if len(run.Memory.Learned) != 1 || run.Memory.Learned[0].Source != "Bryer" {
		t.Fatalf("memory snapshot not updated: %+v", run.Memory)
	}

	if err := store.FinishRun(ctx, runID, StatusCompleted); err != nil {
		t.Fatalf("FinishRun returned error: %v", err)
	}
	run, err = store.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Fatalf("expected completed status, got %q", run.Status)
	}
}

func TestSaveBatchOverwritesPriorAttempt(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()
	runID := uuid.NewString()
	if _, err := store.BeginRun(ctx, runID, "/videos/ep02.ass", "def456", 1, memory.NewState()); err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}

	first := []pairs.Pair{{ID: 1, Source: "Hi", Target: "嗨"}}
	if err := store.SaveBatch(ctx, runID, 0, first, stats.Usage{}, memory.NewState()); err != nil {
		t.Fatalf("SaveBatch returned error: %v", err)
	}
	second := []pairs.Pair{{ID: 1, Source: "Hi", Target: "你好"}}
	if err := store.SaveBatch(ctx, runID, 0, second, stats.Usage{}, memory.NewState()); err != nil {
		t.Fatalf("SaveBatch (overwrite) returned error: %v", err)
	}

	completed, err := store.CompletedBatches(ctx, runID)
	if err != nil {
		t.Fatalf("CompletedBatches returned error: %v", err)
	}
	if len(completed) != 1 || completed[0].Corrected[0].Target != "你好" {
		t.Fatalf("expected overwritten batch, got %+v", completed)
	}
}

func TestFindResumable(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	run, err := store.FindResumable(ctx, "/videos/ep03.ass", "aaa")
	if err != nil {
		t.Fatalf("FindResumable returned error: %v", err)
	}
	if run != nil {
		t.Fatalf("expected no resumable run, got %+v", run)
	}

	runID := uuid.NewString()
	if _, err := store.BeginRun(ctx, runID, "/videos/ep03.ass", "aaa", 2, memory.NewState()); err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}
	run, err = store.FindResumable(ctx, "/videos/ep03.ass", "aaa")
	if err != nil {
		t.Fatalf("FindResumable returned error: %v", err)
	}
	if run == nil || run.ID != runID {
		t.Fatalf("expected run %s, got %+v", runID, run)
	}

	// A different fingerprint means a different input; never resumed.
	run, err = store.FindResumable(ctx, "/videos/ep03.ass", "bbb")
	if err != nil {
		t.Fatalf("FindResumable returned error: %v", err)
	}
	if run != nil {
		t.Fatalf("expected no run for other fingerprint, got %+v", run)
	}

	if err := store.FinishRun(ctx, runID, StatusFailed); err != nil {
		t.Fatalf("FinishRun returned error: %v", err)
	}
	run, err = store.FindResumable(ctx, "/videos/ep03.ass", "aaa")
	if err != nil {
		t.Fatalf("FindResumable returned error: %v", err)
	}
	if run != nil {
		t.Fatalf("finished run should not resume, got %+v", run)
	}
}

func TestGetRunMissing(t *testing.T) {
	store := mustOpen(t)
	if _, err := store.GetRun(context.Background(), uuid.NewString()); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestOpenRejectsSecondWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer first.Close()

	if _, err := Open(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
