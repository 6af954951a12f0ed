package driving

import (
	"context"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// VectorService manages embedding records.
type VectorService interface {
	// Upsert stores a record, replacing any record with the same key.
	// Fails with domain.ErrDimensionMismatch before any write if the
	// vector length is wrong for its content type.
	Upsert(ctx context.Context, rec *domain.EmbeddingRecord) (*domain.EmbeddingRecord, error)

	// Get retrieves a record by key.
	Get(ctx context.Context, key domain.RecordKey) (*domain.EmbeddingRecord, error)

	// Delete removes a record by key.
	Delete(ctx context.Context, key domain.RecordKey) error
}
