// Package logging assembles structured slog loggers and formatting helpers used
// across songlens.
//
// It owns the console and JSON handlers, wires rotating file output, and
// exposes context-aware helpers so analysis code can tag log lines with song
// IDs, batch IDs, model names and session IDs without threading them through
// every call. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
