// Package checkpoint persists per-run refinement progress in SQLite so a
// crashed or interrupted run can resume without re-paying for batches that
// already completed. Each run row carries the memory state snapshot taken
// after its latest completed batch; batch rows carry the corrected pairs.
//
// A flock companion file enforces a single writer per database.
package checkpoint
