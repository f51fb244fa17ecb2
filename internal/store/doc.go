// Package store provides a SQLite-backed log of recorded candidate baselines.
//
// Every value a verification records is appended with:
//   - run_id: the run that observed it (UUIDv7, time-sortable)
//   - seq: logical clock position within the run
//   - key/path: the Differences property key and file path
//   - device: the device the value was observed on
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Queries
// order by seq ASC, id ASC so results are identical across reads. Runs are
// ordered by an ordinal assigned on insert.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The log complements the file-backed recording in package expected: the
// files hold the current candidate per key, the log holds every observation.
package store
