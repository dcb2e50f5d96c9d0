/*
Package storage provides the pluggable retention store abstraction for
telemetry samples.

# Storage Interface

Two backends implement the Store interface:
  - sqlite: SQLite file (WAL mode) for durable storage, the default
  - badger: BadgerDB (LSM tree + Snappy compression) as an embedded alternative

# Retention Model

The store keeps a bounded recent history per telemetry key: after every
successful insert the key is pruned back to the retention cap (100 samples),
keeping the newest rows ordered by timestamp descending with row id as the
tie-break. Cap enforcement is eventual, not strict: a crash between an insert
and its prune simply leaves the cleanup to the next successful insert for that
key. A just-inserted sample is never dropped to satisfy the cap.

# Deduplication

At most one row exists per (key, timestamp) pair. The feed redelivers updates
and quantizes clocks to the millisecond, so a colliding insert is a successful
no-op rather than an error or an update.
*/
package storage
