// Package config loads, normalizes, and validates wsiconvert configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies command-line overrides before the
// final normalization pass. The resulting Config is treated as an immutable run
// description: the CLI builds it once and hands a copy to the workflow.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical extensions, and clear validation errors.
package config
