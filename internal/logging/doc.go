// Package logging assembles structured slog loggers and formatting helpers
// used across the subburn service.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so engine code tags log lines with
// job identifiers and components consistently. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
