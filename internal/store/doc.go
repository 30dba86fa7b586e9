// Package store provides SQLite-backed storage for the trainer.
//
// Three tables:
//   - puzzles: every fetched puzzle record, the offline cache
//   - attempts: the append-only attempt log written by puzzle sessions
//   - games: ended free-play games
//
// Ordering uses the seq column (insertion order), never timestamps, so
// listings are stable across runs.
//
// Store implements puzzle.Cache, session.Recorder and freeplay.Recorder.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
