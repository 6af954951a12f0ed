package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/logger"
)

// Engine wires the record store, the index manager and the services that
// use them. Create one with NewEngine and release it with Close.
type Engine struct {
	settings domain.EngineSettings
	store    driven.EmbeddingStore
	embedder driven.EmbeddingService
	index    *IndexManager

	Vectors     *VectorService
	Search      *SearchService
	Maintenance *MaintenanceService

	closeOnce sync.Once
	closeErr  error
}

// NewEngine validates settings and builds the services.
// The embedder is optional; without it text queries are disabled.
// The engine takes ownership of store and embedder and closes them on Close.
func NewEngine(
	settings domain.EngineSettings,
	store driven.EmbeddingStore,
	builder driven.IndexBuilder,
	embedder driven.EmbeddingService,
) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("engine settings: %w", err)
	}
	if store == nil || builder == nil {
		return nil, fmt.Errorf("%w: store and index builder are required", domain.ErrInvalidInput)
	}

	settings.Dimensions = maps.Clone(settings.Dimensions)
	e := &Engine{
		settings: settings,
		store:    store,
		embedder: embedder,
	}
	e.index = NewIndexManager(store, builder, e.settings.Dimension)
	e.Vectors = NewVectorService(store, e.index, &e.settings)
	e.Search = NewSearchService(store, e.index, embedder, &e.settings)
	e.Maintenance = NewMaintenanceService(store, e.index, &e.settings)

	logger.Debug("engine: index=%s dimension=%d threshold=%.2f embedder=%t",
		builder.Kind(), settings.DefaultDimension, settings.Search.Threshold, embedder != nil)
	return e, nil
}

// Settings returns the settings the engine was built with.
func (e *Engine) Settings() domain.EngineSettings {
	s := e.settings
	s.Dimensions = maps.Clone(e.settings.Dimensions)
	return s
}

// Warm builds every index so searches skip the brute-force path.
func (e *Engine) Warm(ctx context.Context) error {
	logger.Section("Index Warm-up")
	start := time.Now()
	if err := e.Maintenance.RebuildAll(ctx); err != nil {
		return fmt.Errorf("warming indexes: %w", err)
	}
	logger.Info("indexes warm in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// Close waits for in-flight rebuilds, then releases the indexes, the store
// and the embedder. It is safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		errs := []error{e.index.Close(), e.store.Close()}
		if e.embedder != nil {
			errs = append(errs, e.embedder.Close())
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}

// ==================== Helper Functions ====================

// withTimeout applies d when ctx carries no deadline of its own.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// retryStorage runs fn and runs it once more if it failed with
// domain.ErrStorageIO. Only idempotent operations go through here.
func retryStorage(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || !errors.Is(err, domain.ErrStorageIO) || ctx.Err() != nil {
		return err
	}
	logger.Debug("retrying %s after storage error: %v", op, err)
	return fn()
}

// classify maps an expired deadline onto domain.ErrTimeout.
func classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}
