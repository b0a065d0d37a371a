// Package batch splits the subtitle pair sequence into the ordered batches
// sent to the LLM.
//
// Two policies exist: a fixed pair count, and a greedy token budget computed
// from the same wire serialization the prompts use. Splitting is
// deterministic and order-preserving, and the Validate check enforces the
// hard invariant that batches cover the input exactly once - a violation
// there means the batcher itself is broken, not the input.
package batch
