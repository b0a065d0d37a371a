// Package refine drives the batch loop: render the system prompt with the
// current memory state, send the batch for correction, apply the result,
// extract and merge terminology, and compress memory when it outgrows its
// budget. A batch that fails is logged and skipped; the memory state is
// never touched by a failed batch.
package refine
