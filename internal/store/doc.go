// Package store persists crop sessions across runs.
//
// All sessions live in a single record, a JSON object keyed by file ID,
// stored under one key ("cropData" by default) in a Backend. A Backend is a
// minimal asynchronous key/value store with three operations: GetItem,
// SetItem and RemoveItem.
//
// # Backends
//
//   - MemoryBackend: process-local map, used by tests and dry runs
//   - FileBackend: one JSON file per key, replaced atomically on write
//   - SQLiteBackend: a kv_items table in a SQLite database
//
// # Semantics
//
// Load reads the record once and caches it. It never fails: an unreadable
// or undecodable record is logged and treated as empty. Save upserts one
// session and writes the whole map back. Saves are serialized by the Store,
// so concurrent callers never interleave partial writes.
//
// Every saved record is stamped with a logical sequence number. When a
// maximum entry count is configured, the lowest-stamped sessions are
// evicted first.
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
