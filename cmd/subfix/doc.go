// Package main hosts the subfix CLI entrypoint and command graph.
//
// The Cobra-based command tree covers refinement runs, batch planning
// previews, API connectivity checks, and configuration scaffolding. It
// centralizes configuration resolution and logger setup so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
