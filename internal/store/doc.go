// Package store provides SQLite-backed durable storage for recorded runs.
//
// A run is one execution of a compiled graph. The store keeps an
// append-only log with:
//   - Runs: graph hash, versions and the number of ticks taken
//   - Events: every event polled from a recorded channel, in poll order
//   - Evaluations: every dispatched evaluation, in dispatch order
//
// # Ordering
//
// All ordering uses logical time (tick, seq), never timestamps, so a
// recorded run can be replayed and compared exactly. Queries order by
// tick ASC, seq ASC.
//
// Values and event payloads are stored as RFC 8785 canonical JSON produced
// by internal/ir, so equal values always have equal text.
//
// # Schema
//
// The tables live in schema.sql. A new log is stamped with the schema
// version in PRAGMA user_version and Open refuses logs stamped with any
// other version. Connections run in WAL mode with foreign keys enforced.
package store
