// Package storage persists the run log: one record per finished routine.
//
// Drivers:
//   - "file": JSON Lines file, no dependencies
//   - "sqlite": SQLite database (build with -tags sqlite)
package storage
