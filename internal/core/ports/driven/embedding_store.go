package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// EmbeddingStore persists embedding records. It is the source of truth;
// every index can be rebuilt from it.
//
// Implementations wrap backend failures with domain.ErrStorageIO and
// expired deadlines with domain.ErrTimeout.
type EmbeddingStore interface {
	// Upsert inserts or replaces the record with the same key in one
	// atomic write. CreatedAt is kept on replace and UpdatedAt strictly
	// increases per key. Returns the committed record.
	Upsert(ctx context.Context, rec *domain.EmbeddingRecord) (*domain.EmbeddingRecord, error)

	// Get retrieves a record by key.
	// Returns domain.ErrNotFound if the record does not exist.
	Get(ctx context.Context, key domain.RecordKey) (*domain.EmbeddingRecord, error)

	// GetMany retrieves the records of one content type with the given IDs.
	// Missing IDs are skipped. Order of the result is unspecified.
	GetMany(ctx context.Context, contentType domain.ContentType, contentIDs []string) ([]*domain.EmbeddingRecord, error)

	// Delete removes a record.
	// Returns domain.ErrNotFound if the record does not exist.
	Delete(ctx context.Context, key domain.RecordKey) error

	// DeleteOlderThan removes every record with UpdatedAt before cutoff
	// and returns the removed keys.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]domain.RecordKey, error)

	// Scan calls fn for every record of a content type in ascending
	// ContentID order. A non-nil error from fn stops the scan and is returned.
	Scan(ctx context.Context, contentType domain.ContentType, fn func(*domain.EmbeddingRecord) error) error

	// Stats returns per-type counts, size and latest update.
	Stats(ctx context.Context) (*domain.StoreStats, error)

	// Close releases resources.
	Close() error
}
