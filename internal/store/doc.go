// Package store defines the durable side of segment leasing.
//
// A store holds one Record per sequence name. The allocator never reads or
// writes a row outside Store.InTx, and within a transaction it always calls
// Tx.QueryForUpdate before Tx.Update, so the backend's lock on the row is
// what makes each leased segment exclusive to one process.
//
// # Backends
//
//   - store/sqlite: database-wide write lock via BEGIN IMMEDIATE
//   - store/postgres: row lock via SELECT ... FOR UPDATE
//   - store/redis: optimistic WATCH/MULTI with bounded retry
//   - store/memory: single process, one mutex per store
//
// # Row Invariants
//
//   - step > 0 and count > 0
//   - min < max, and min <= current <= max
//   - current never decreases except when a looping sequence wraps to min
package store
