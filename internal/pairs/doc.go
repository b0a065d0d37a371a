// Package pairs defines the bilingual subtitle pair records the refinement
// pipeline operates over.
//
// A Pair carries a stable numeric identity assigned at ingestion, the source
// and target language text, and opaque metadata used to reconstruct the
// original file layout. The package also owns the JSON wire form exchanged
// with the LLM and the formatting-tag preservation check applied to
// corrections.
package pairs
