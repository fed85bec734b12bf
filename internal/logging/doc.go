// Package logging constructs the slog loggers used across the engine.
// It provides a console handler for interactive runs, a JSON handler for
// machine consumption, typed attribute helpers, and context-derived
// logger enrichment (run and candidate identifiers).
package logging
