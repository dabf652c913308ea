// Package store provides SQL-backed durable storage for the loan service.
//
// Tables:
//   - idempotency_keys: one ledger row per (idempotency_key, route_path);
//     idempotency_key is also UNIQUE on its own so a key can never be
//     bound to a second route
//   - applications: the application document (applicant and decision data
//     stored as JSON text)
//   - audit_logs: append-only trail, one row per committed state change
//   - decision_plans: hash-pinned decision previews
//
// # Dialects
//
// Two drivers are supported through database/sql: "sqlite3"
// (github.com/mattn/go-sqlite3) and "postgres" (github.com/lib/pq). Queries
// are written with '?' placeholders and rebound per dialect. Unique
// constraint violations from either driver are reported as
// ErrUniqueViolation.
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: all reads inside a transaction must go through Tx
//
// Timestamps are RFC 3339 UTC text produced by the store's clock.
package store
