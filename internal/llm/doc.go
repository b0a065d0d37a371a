// Package llm talks to an OpenAI-compatible chat-completions API and exposes
// the three oracles the refinement loop needs: batch refinement, terminology
// extraction, and memory compression.
//
// The client owns retry with exponential backoff (honoring Retry-After) and
// tolerant JSON decoding of model output. Failures are classified with the
// ErrTransport and ErrMalformed sentinels so the run loop can tell a dead
// network from a model that returned garbage; both are skip-and-continue
// conditions, but they are logged differently.
package llm
