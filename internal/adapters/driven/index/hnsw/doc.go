// Package hnsw provides a pure Go HNSW graph index.
// It implements the driven.VectorIndex and driven.IndexBuilder interfaces.
//
// Vectors are normalised on insert so that similarity is a dot product.
// Deletes leave a tombstone in the graph; tombstoned nodes still route
// searches but never appear in results. A rebuild compacts them away.
package hnsw
