package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

// Ensure EmbeddingStore implements the interface.
var _ driven.EmbeddingStore = (*EmbeddingStore)(nil)

// EmbeddingStore is an in-memory implementation of driven.EmbeddingStore.
// It backs tests and ephemeral runs; nothing survives Close.
type EmbeddingStore struct {
	mu      sync.RWMutex
	records map[domain.RecordKey]*domain.EmbeddingRecord
	now     func() time.Time
}

// Option configures an EmbeddingStore.
type Option func(*EmbeddingStore)

// WithClock replaces the store's time source.
func WithClock(now func() time.Time) Option {
	return func(s *EmbeddingStore) {
		s.now = now
	}
}

// NewEmbeddingStore creates a new in-memory embedding store.
func NewEmbeddingStore(opts ...Option) *EmbeddingStore {
	s := &EmbeddingStore{
		records: make(map[domain.RecordKey]*domain.EmbeddingRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert inserts or replaces a record.
func (s *EmbeddingStore) Upsert(ctx context.Context, rec *domain.EmbeddingRecord) (*domain.EmbeddingRecord, error) {
	if rec == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := rec.Key().Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapStorageError("upserting embedding", err)
	}

	stored := rec.Clone()
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored.CreatedAt = now
	stored.UpdatedAt = now
	if prev, ok := s.records[stored.Key()]; ok {
		stored.CreatedAt = prev.CreatedAt
		if !now.After(prev.UpdatedAt) {
			stored.UpdatedAt = prev.UpdatedAt.Add(time.Nanosecond)
		}
	}
	s.records[stored.Key()] = stored

	return stored.Clone(), nil
}

// Get retrieves a record by key.
func (s *EmbeddingStore) Get(ctx context.Context, key domain.RecordKey) (*domain.EmbeddingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapStorageError("getting embedding", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Clone(), nil
}

// GetMany retrieves the records of one content type with the given IDs.
func (s *EmbeddingStore) GetMany(ctx context.Context, contentType domain.ContentType, contentIDs []string) ([]*domain.EmbeddingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapStorageError("getting embeddings", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.EmbeddingRecord, 0, len(contentIDs))
	for _, id := range contentIDs {
		if rec, ok := s.records[domain.RecordKey{ContentID: id, ContentType: contentType}]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Delete removes a record.
func (s *EmbeddingStore) Delete(ctx context.Context, key domain.RecordKey) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapStorageError("deleting embedding", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return domain.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// DeleteOlderThan removes every record last written before cutoff.
func (s *EmbeddingStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]domain.RecordKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapStorageError("deleting old embeddings", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []domain.RecordKey
	for key, rec := range s.records {
		if rec.UpdatedAt.Before(cutoff) {
			removed = append(removed, key)
			delete(s.records, key)
		}
	}
	return removed, nil
}

// Scan calls fn for a snapshot of one content type, ordered by content ID.
// The lock is released before fn runs, so fn may call back into the store.
func (s *EmbeddingStore) Scan(ctx context.Context, contentType domain.ContentType, fn func(*domain.EmbeddingRecord) error) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapStorageError("scanning embeddings", err)
	}
	s.mu.RLock()
	snapshot := make([]*domain.EmbeddingRecord, 0)
	for key, rec := range s.records {
		if key.ContentType == contentType {
			snapshot = append(snapshot, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].ContentID < snapshot[j].ContentID
	})

	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			return domain.WrapStorageError("scanning embeddings", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns per-type counts, an approximate size and latest update.
func (s *EmbeddingStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapStorageError("querying stats", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.StoreStats{Counts: make(map[domain.ContentType]int)}
	for key, rec := range s.records {
		stats.Counts[key.ContentType]++
		stats.Total++
		stats.SizeBytes += int64(len(rec.Vector)*4 + len(rec.ContentID) + len(rec.ModelVersion))
		if rec.UpdatedAt.After(stats.LatestUpdate) {
			stats.LatestUpdate = rec.UpdatedAt
		}
	}
	return stats, nil
}

// Close drops all records.
func (s *EmbeddingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[domain.RecordKey]*domain.EmbeddingRecord)
	return nil
}
