// Package logging assembles the structured slog loggers shared by the
// nemoship CLI and the nemoshipd inference server.
//
// It owns the console and JSON handlers, level parsing, output fan-out to
// stdout and log files, and context helpers that tag every line emitted while
// serving a request with its correlation id. A no-op logger is provided for
// tests and for wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits the same field names.
package logging
