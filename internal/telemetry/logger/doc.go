// Package logger provides structured logging for Strongbox.
//
// It wraps log/slog with JSON output by default, a process-wide level
// that can be adjusted at runtime, and automatic redaction of attributes
// whose keys suggest secret material. Nothing in this codebase should
// ever log a key, passphrase, or record payload; redaction is the last
// line of defense when something slips through.
package logger
