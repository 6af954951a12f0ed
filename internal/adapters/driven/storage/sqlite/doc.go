// Package sqlite provides a SQLite-based implementation of the embedding
// and scheduler store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single connection pool:
//
//   - EmbeddingStore: Embedding records, one table keyed by (content_type, content_id)
//   - SchedulerStore: Scheduled maintenance tasks and their history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Vectors are stored as little-endian float32 blobs and timestamps as Unix
// nanoseconds.
//
// # Data Location
//
// By default, the database is stored at ~/.simmatch/data/vectors.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode, and the connection pool is bounded by the configured size.
package sqlite
