// Package store persists conversations and their messages.
//
// The store sits beside the streaming proxy, not inside it: the stream
// handler never reads or writes it, and the HTTP routes that expose it are
// only mounted when store.enabled is set.
//
// # Drivers
//
//   - sqlite:  modernc.org/sqlite, pure Go (default)
//   - sqlite3: github.com/mattn/go-sqlite3, requires cgo
//   - pgx:     PostgreSQL via github.com/jackc/pgx/v5/stdlib
//
// Queries are written once with ? placeholders and rebound to $n for
// PostgreSQL. SQLite stores timestamps as fixed-width UTC text so they sort
// and compare correctly.
//
// # Retention
//
// A Pruner deletes messages older than store.retention.days on the cron
// schedule in store.retention.schedule.
package store
