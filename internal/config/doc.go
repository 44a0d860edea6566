// Package config loads, normalizes, and validates corpus toolkit
// configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the CLI and corpus build need, from corpus and artifact directories to
// alignment feature-extraction parameters.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
