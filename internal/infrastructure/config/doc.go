// Package config loads and validates meetpilot configuration.
//
// Configuration comes from three layers, each overriding the last:
// hardcoded defaults, a YAML file, and MEETPILOT_* environment variables
// (plus PORT, kept for compatibility with the original demo pipeline).
//
// Load returns an error rather than partially-applied configuration when
// the file is unreadable, malformed, or fails validation.
package config
