// Package store provides SQLite-backed durable storage for exploration runs.
//
// The store is an append-only record of:
//   - Runs: one exploration of one model with its options
//   - States: considered states, keyed by content hash, with a readable summary
//   - Transitions: exploration edges labeled by the big step that made them
//   - Findings: evaluation problems reported while expanding a state
//
// # Critical Patterns
//
// Logical identity and time
//   - All ordering uses seq INTEGER (logical clock), never timestamps
//   - State keys, transition IDs and finding IDs are content addressed
//
// Deterministic query results
//   - Queries order by seq ASC, then id or key COLLATE BINARY ASC
//
// Idempotent writes
//   - Every insert uses ON CONFLICT DO NOTHING, so re-recording an edge or a
//     state keeps the first record
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All content-addressed IDs are computed via functions in internal/ir/hash.go
// using RFC 8785 canonical JSON and SHA-256 with domain separation.
package store
