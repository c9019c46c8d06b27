// Package logging assembles the structured slog loggers used across
// patchwatch components.
//
// It centralizes level and output plumbing, exposes typed attribute helpers,
// and provides context-aware constructors so sweep code automatically tags log
// lines with entity IDs, sweep IDs, and adapter names. A no-op logger is
// available for tests and wiring code that cannot fail.
package logging
