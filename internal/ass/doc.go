// Package ass reads and writes Advanced SubStation Alpha subtitle files.
//
// Parsing keeps everything outside the [Events] dialogue lines as an opaque
// header blob that round-trips byte for byte. Dialogue lines are split into
// their ten fields (the text field may itself contain commas) and matched
// into bilingual pairs by shared timestamps and style names.
package ass
