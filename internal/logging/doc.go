// Package logging builds the slog loggers used across the corpus
// toolkit: a console handler that prefixes records with their component,
// a JSON handler for machine consumption, and retention pruning for the
// log directory.
package logging
