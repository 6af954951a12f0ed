// Package domain holds the similarity engine's types and errors:
// EmbeddingRecord and its RecordKey, ContentType partitions, SearchResult
// hits, EngineSettings, and the maintenance Job model.
//
// It imports only the standard library; every other package may import it.
package domain
