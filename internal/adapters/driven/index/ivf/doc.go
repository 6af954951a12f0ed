// Package ivf provides an inverted file index over k-means partitions.
// It implements the driven.VectorIndex and driven.IndexBuilder interfaces.
//
// Build trains spherical k-means centroids over the entry set. A query
// scores the closest Probes partitions exactly and ignores the rest.
// Vectors added after Build join their nearest existing partition;
// centroids only move on the next Build.
package ivf
