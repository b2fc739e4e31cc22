// Package store provides SQLite-backed durable storage for scheduling runs.
//
// The store keeps one row per run and, per round:
//   - Rounds: the workset, the next workset and trace digests
//   - Command rounds: each workset command's exit status and committed sets
//   - Dependencies: the forward dependencies the round observed
//   - Violations: commands whose sets changed between consecutive rounds
//
// # Critical Patterns
//
// Logical ordering:
//   - Runs are ordered by seq, rounds by round number, NEVER by timestamps
//   - created_at is informational only
//
// Atomic rounds:
//   - RecordRound writes a round and all of its rows in one transaction
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// List columns are stored as canonical JSON arrays via ir.MarshalCanonical.
package store
