// Package store provides SQLite-backed durable storage for test runs.
//
// The store is an append-only log with two tables:
//   - runs: one row per executed test case (outcome, errors, steps, digest)
//   - events: the run trace, one row per recorded event
//
// # Ordering
//
// All event queries use ORDER BY seq ASC. Seq is the logical clock stamped
// by the harness, so a stored trace reads back exactly as it was recorded.
// Runs are listed by ID, which for UUIDv7 run IDs is creation order.
//
// # Encoding
//
// Event args and results are stored as RFC 8785 canonical JSON (see
// internal/ir/canonical.go). A SQL NULL means the event carried no value,
// which is distinct from a stored JSON null (an attribute that read null).
//
// # Migrations
//
// PRAGMA user_version records how far a run log has been migrated. Open
// applies the missing steps in order, so logs written by older builds stay
// listable; runs recorded before trace_schema existed read back as an
// unsupported schema instead of being misparsed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
