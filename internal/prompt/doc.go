// Package prompt assembles the system prompt sent ahead of every batch.
//
// Templates are markdown documents whose "## N. Title" headings divide them
// into an ordered list of titled sections. The template is parsed once into a
// section index; terminology injection and renumbering are then independent
// passes over that structure instead of repeated substring scanning. The
// designated terminology section receives the merged authoritative glossary
// and the learned supplement; after substitution all headings are renumbered
// sequentially from 1 so user-customized templates keep gap-free numbering.
//
// Rendering is pure: the same template and memory state always produce
// byte-identical output.
package prompt
