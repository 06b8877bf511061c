// Package logging assembles structured slog loggers and formatting helpers used
// across clipwatch services.
//
// It owns the console (tint) and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so workers and HTTP handlers can
// tag log lines with job and correlation IDs. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
