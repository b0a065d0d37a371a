// Package logging builds slog loggers with console or JSON output and
// standardized field names, plus context helpers that stamp run and batch
// identifiers onto every record emitted inside the refinement loop.
package logging
