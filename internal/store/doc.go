// Package store provides the SQLite journal of sandbox runs.
//
// The journal is an append-only audit trail:
//   - Runs: one row per System.Run, opened when the run starts and closed
//     with its outcome
//   - Transactions: every applied transaction, keyed by (run, seq)
//   - Events: the derived events of each transaction, in derivation order
//
// The journal is never read back into a System; it exists for the trace
// command and for inspecting runs after the fact.
//
// # Ordering
//
// Runs are ordered by insertion, transactions and events by seq and idx.
// Every query carries an explicit ORDER BY so results are identical
// across reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
