// Package postgres provides a PostgreSQL storage backend using the
// pgvector extension for the vector column.
//
// It implements driven.EmbeddingStore and, through SchedulerStore,
// driven.SchedulerStore. Connections go through database/sql with the
// pgx driver; the pool is bounded by the configured size.
//
// Schema changes are embedded SQL migrations applied on open, one
// transaction per version.
package postgres
