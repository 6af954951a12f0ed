package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
	"github.com/custodia-labs/simmatch/internal/logger"
)

// Ensure VectorService implements the interface.
var _ driving.VectorService = (*VectorService)(nil)

// VectorService writes and reads embedding records and keeps the
// index informed of every committed change.
type VectorService struct {
	store    driven.EmbeddingStore
	index    *IndexManager
	settings *domain.EngineSettings
}

// NewVectorService creates a new vector service.
func NewVectorService(store driven.EmbeddingStore, index *IndexManager, settings *domain.EngineSettings) *VectorService {
	return &VectorService{store: store, index: index, settings: settings}
}

// Upsert validates and stores a record. Dimension errors are returned
// before the store is touched.
func (s *VectorService) Upsert(ctx context.Context, rec *domain.EmbeddingRecord) (*domain.EmbeddingRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: record is required", domain.ErrInvalidInput)
	}
	if err := rec.Key().Validate(); err != nil {
		return nil, err
	}
	if err := s.settings.CheckDimension(rec.ContentType, rec.Vector); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.settings.OperationTimeout)
	defer cancel()

	var out *domain.EmbeddingRecord
	err := retryStorage(ctx, "upsert", func() error {
		var err error
		out, err = s.store.Upsert(ctx, rec)
		return err
	})
	if err != nil {
		return nil, classify(fmt.Errorf("upsert %s: %w", rec.Key(), err))
	}

	s.index.ApplyUpsert(ctx, out.Key(), append([]float32(nil), out.Vector...))
	logger.Debug("upserted %s (updated_at=%s)", out.Key(), out.UpdatedAt.Format("15:04:05.000000"))
	return out, nil
}

// Get retrieves a record by key.
func (s *VectorService) Get(ctx context.Context, key domain.RecordKey) (*domain.EmbeddingRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.settings.OperationTimeout)
	defer cancel()

	var rec *domain.EmbeddingRecord
	err := retryStorage(ctx, "get", func() error {
		var err error
		rec, err = s.store.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, classify(fmt.Errorf("get %s: %w", key, err))
	}
	return rec, nil
}

// Delete removes a record and drops it from the index. It is not retried.
func (s *VectorService) Delete(ctx context.Context, key domain.RecordKey) error {
	if err := key.Validate(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.settings.OperationTimeout)
	defer cancel()

	if err := s.store.Delete(ctx, key); err != nil {
		return classify(fmt.Errorf("delete %s: %w", key, err))
	}

	s.index.ApplyDelete(ctx, key)
	logger.Debug("deleted %s", key)
	return nil
}
