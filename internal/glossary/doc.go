// Package glossary defines terminology entries and the input-validation
// boundary applied before entries reach the merge engine.
//
// Two classes of entries flow through the pipeline: authoritative entries
// supplied by the user, which the pipeline never modifies, and learned
// entries proposed by the extraction model, which are confidence-filtered,
// deduplicated, and eventually evicted. Both share the Entry shape.
package glossary
