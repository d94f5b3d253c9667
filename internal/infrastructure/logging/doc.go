// Package logging provides structured logging for meetpilot.
//
// It wraps log/slog with configuration-driven setup and a custom Success
// level. A single Logger is constructed in main and injected into each
// component; no package installs a global logger.
package logging
