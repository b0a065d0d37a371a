// Package config loads, normalizes, and validates the TOML configuration
// that drives the refinement pipeline. Defaults live in defaults.go,
// environment fallbacks and path expansion in normalize.go, and startup
// validation in validate.go.
package config
