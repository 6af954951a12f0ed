package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
	"github.com/custodia-labs/simmatch/internal/logger"
)

// Ensure MaintenanceService implements the interface.
var _ driving.MaintenanceService = (*MaintenanceService)(nil)

// MaintenanceService rebuilds indexes, removes aged records and reports
// engine statistics.
type MaintenanceService struct {
	store    driven.EmbeddingStore
	index    *IndexManager
	settings *domain.EngineSettings
	now      func() time.Time
	log      *logger.Logger
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(store driven.EmbeddingStore, index *IndexManager, settings *domain.EngineSettings) *MaintenanceService {
	return &MaintenanceService{
		store:    store,
		index:    index,
		settings: settings,
		now:      time.Now,
		log:      logger.For("maintenance"),
	}
}

// Rebuild recomputes the index of one content type. A rebuild may scan
// the whole store, so the operation timeout does not apply.
func (s *MaintenanceService) Rebuild(ctx context.Context, contentType domain.ContentType) error {
	if !contentType.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidContentType, contentType)
	}
	return classify(s.index.Rebuild(ctx, contentType))
}

// RebuildAll rebuilds every content type concurrently.
func (s *MaintenanceService) RebuildAll(ctx context.Context) error {
	return s.rebuildTypes(ctx, domain.AllContentTypes())
}

func (s *MaintenanceService) rebuildTypes(ctx context.Context, types []domain.ContentType) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, ct := range types {
		g.Go(func() error {
			return s.index.Rebuild(gctx, ct)
		})
	}
	return classify(g.Wait())
}

// Cleanup deletes records whose last update is older than maxAge, then
// rebuilds the indexes of the affected types before returning.
func (s *MaintenanceService) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	logger.Section("Cleanup")
	if maxAge <= 0 {
		return 0, fmt.Errorf("%w: max age must be positive", domain.ErrInvalidInput)
	}
	cutoff := s.now().Add(-maxAge)

	dctx, cancel := withTimeout(ctx, s.settings.OperationTimeout)
	removed, err := s.store.DeleteOlderThan(dctx, cutoff)
	cancel()
	if err != nil {
		return 0, classify(fmt.Errorf("cleanup before %s: %w", cutoff.Format(time.RFC3339), err))
	}
	if len(removed) == 0 {
		s.log.Info("nothing older than %s", cutoff.Format(time.RFC3339))
		return 0, nil
	}

	affected := make(map[domain.ContentType]bool)
	for _, key := range removed {
		s.index.ApplyDelete(ctx, key)
		affected[key.ContentType] = true
	}
	types := make([]domain.ContentType, 0, len(affected))
	for _, ct := range domain.AllContentTypes() {
		if affected[ct] {
			types = append(types, ct)
		}
	}

	s.log.Info("removed %d records older than %s, rebuilding %v", len(removed), cutoff.Format(time.RFC3339), types)
	if err := s.rebuildTypes(ctx, types); err != nil {
		return len(removed), fmt.Errorf("rebuild after cleanup: %w", err)
	}
	return len(removed), nil
}

// Stats aggregates store statistics with the state of every index.
func (s *MaintenanceService) Stats(ctx context.Context) (*domain.EngineStats, error) {
	ctx, cancel := withTimeout(ctx, s.settings.OperationTimeout)
	defer cancel()

	var store *domain.StoreStats
	err := retryStorage(ctx, "stats", func() error {
		var err error
		store, err = s.store.Stats(ctx)
		return err
	})
	if err != nil {
		return nil, classify(fmt.Errorf("stats: %w", err))
	}

	stats := &domain.EngineStats{
		Store: *store,
		Index: make(map[domain.ContentType]domain.IndexStats, len(domain.AllContentTypes())),
	}
	for _, ct := range domain.AllContentTypes() {
		stats.Index[ct] = s.index.Stats(ct)
	}
	return stats, nil
}
