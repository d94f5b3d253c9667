// Package database provides SQLite connection management and schema
// migrations for the persona store.
//
// Migrations are forward-only SQL files embedded into the binary by the
// top-level migrations package and applied at startup.
package database
