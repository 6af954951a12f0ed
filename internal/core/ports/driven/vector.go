package driven

import (
	"context"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// VectorIndex provides approximate nearest neighbour search over the
// vectors of one content type. Implementations are safe for concurrent use.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for the given key.
	Upsert(ctx context.Context, key string, embedding []float32) error

	// Delete removes a vector from the index. Unknown keys are ignored.
	Delete(ctx context.Context, key string) error

	// Search finds up to k approximate nearest neighbours to the query vector.
	// Results are ordered by descending similarity, ties by ascending key,
	// and are deterministic for a fixed index state.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Len returns the number of live vectors.
	Len() int

	// Kind reports the index variant.
	Kind() domain.IndexKind

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Key is the matched content ID.
	Key string

	// Similarity is the cosine similarity score (-1 to 1).
	Similarity float64
}

// IndexBuilder creates VectorIndex instances for a fixed dimension.
type IndexBuilder interface {
	// Build constructs an index from a full entry set. The same entries in
	// the same order produce the same index.
	Build(ctx context.Context, dim int, entries []domain.IndexEntry) (VectorIndex, error)

	// Kind reports the variant this builder produces.
	Kind() domain.IndexKind
}
