// Package memory owns the bounded cross-batch memory that keeps terminology
// and style consistent across an entire run.
//
// The State record holds the user-supplied authoritative glossary, the
// learned glossary proposed by extraction, free-form style notes, and a run
// summary. The merge engine reconciles extraction proposals against the
// state under the lock policy (authoritative entries always win), the
// eviction rule bounds the learned list by recency, and the compression
// helpers shrink the state when its rendered form outgrows its token budget.
//
// Everything here is pure computation over in-memory values: no I/O, no
// clocks, no goroutines. Oracle-backed compression lives with the LLM client;
// this package only validates and accepts (or rejects) its output.
package memory
