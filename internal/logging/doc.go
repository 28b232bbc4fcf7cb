// Package logging wires slog handlers for console and JSON output and
// provides small helpers for building structured attributes with
// consistent field names across the application.
package logging
