package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/logger"
)

// snapshot is one built index and the store state it reflects.
type snapshot struct {
	id            string
	index         driven.VectorIndex
	builtAt       time.Time
	buildDuration time.Duration
}

// mutation is a store write that must reach the index.
type mutation struct {
	key    string
	vector []float32
	delete bool
}

// typeIndex tracks the index state of one content type.
type typeIndex struct {
	current      atomic.Pointer[snapshot]
	storeVersion atomic.Uint64
	coverage     atomic.Uint64
	rebuilding   atomic.Bool
	fallbacks    atomic.Uint64

	// mu orders incremental updates against snapshot swaps.
	mu      sync.Mutex
	pending []mutation
}

// IndexManager owns one ANN snapshot per content type.
//
// Store writes are applied to the live snapshot as they commit. A full
// rebuild scans the store, builds a new snapshot off to the side and swaps
// it in; writes that land during the build are queued and replayed onto
// the new snapshot under the swap lock. Searches see ErrIndexUnavailable
// before the first build, while a rebuild runs and whenever the snapshot
// has missed a write; callers fall back to brute force.
type IndexManager struct {
	store     driven.EmbeddingStore
	builder   driven.IndexBuilder
	dimension func(domain.ContentType) int

	types map[domain.ContentType]*typeIndex
	group singleflight.Group

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool

	log *logger.Logger
}

// NewIndexManager creates a manager with no snapshots.
func NewIndexManager(store driven.EmbeddingStore, builder driven.IndexBuilder, dimension func(domain.ContentType) int) *IndexManager {
	types := make(map[domain.ContentType]*typeIndex)
	for _, ct := range domain.AllContentTypes() {
		types[ct] = &typeIndex{}
	}
	return &IndexManager{
		store:     store,
		builder:   builder,
		dimension: dimension,
		types:     types,
		log:       logger.For("index"),
	}
}

func (m *IndexManager) state(ct domain.ContentType) (*typeIndex, error) {
	ti, ok := m.types[ct]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidContentType, ct)
	}
	return ti, nil
}

// ApplyUpsert records a committed upsert.
func (m *IndexManager) ApplyUpsert(ctx context.Context, key domain.RecordKey, vector []float32) {
	m.apply(ctx, key.ContentType, mutation{key: key.ContentID, vector: vector})
}

// ApplyDelete records a committed delete.
func (m *IndexManager) ApplyDelete(ctx context.Context, key domain.RecordKey) {
	m.apply(ctx, key.ContentType, mutation{key: key.ContentID, delete: true})
}

func (m *IndexManager) apply(ctx context.Context, ct domain.ContentType, mu mutation) {
	ti, err := m.state(ct)
	if err != nil {
		return
	}

	ti.mu.Lock()
	defer ti.mu.Unlock()

	version := ti.storeVersion.Add(1)
	if ti.rebuilding.Load() {
		ti.pending = append(ti.pending, mu)
	}

	snap := ti.current.Load()
	if snap == nil {
		return
	}

	// A detached context keeps an expiring caller from leaving the
	// snapshot behind the store.
	if err := applyMutation(context.WithoutCancel(ctx), snap.index, mu); err != nil {
		m.log.Warn("incremental update of %s/%s failed, snapshot stale until rebuild: %v", ct, mu.key, err)
		return
	}
	if ti.coverage.Load() == version-1 {
		ti.coverage.Store(version)
	}
}

func applyMutation(ctx context.Context, idx driven.VectorIndex, mu mutation) error {
	if mu.delete {
		return idx.Delete(ctx, mu.key)
	}
	return idx.Upsert(ctx, mu.key, mu.vector)
}

// Search queries the live snapshot for ct.
// Returns domain.ErrIndexUnavailable when the snapshot cannot serve.
func (m *IndexManager) Search(ctx context.Context, ct domain.ContentType, query []float32, k int) ([]driven.VectorHit, error) {
	ti, err := m.state(ct)
	if err != nil {
		return nil, err
	}

	snap := ti.current.Load()
	switch {
	case snap == nil:
		return nil, fmt.Errorf("%w: %s not built", domain.ErrIndexUnavailable, ct)
	case ti.rebuilding.Load():
		return nil, fmt.Errorf("%w: %s rebuilding", domain.ErrIndexUnavailable, ct)
	case ti.coverage.Load() != ti.storeVersion.Load():
		return nil, fmt.Errorf("%w: %s stale", domain.ErrIndexUnavailable, ct)
	}

	hits, err := snap.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return hits, nil
}

// RecordFallback counts a search served by brute force.
func (m *IndexManager) RecordFallback(ct domain.ContentType) {
	if ti, err := m.state(ct); err == nil {
		ti.fallbacks.Add(1)
	}
}

// Rebuild builds a new snapshot for ct from the store and swaps it in.
// Concurrent calls for the same type share one build.
func (m *IndexManager) Rebuild(ctx context.Context, ct domain.ContentType) error {
	ti, err := m.state(ct)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("%w: engine closed", domain.ErrIndexUnavailable)
	}
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	_, err, shared := m.group.Do(string(ct), func() (any, error) {
		return nil, m.rebuild(ctx, ct, ti)
	})
	if shared {
		m.log.Debug("joined in-flight rebuild of %s", ct)
	}
	return err
}

func (m *IndexManager) rebuild(ctx context.Context, ct domain.ContentType, ti *typeIndex) error {
	start := time.Now()

	ti.mu.Lock()
	ti.rebuilding.Store(true)
	ti.pending = nil
	ti.mu.Unlock()

	ok := false
	defer func() {
		if !ok {
			ti.mu.Lock()
			ti.rebuilding.Store(false)
			ti.pending = nil
			ti.mu.Unlock()
		}
	}()

	dim := m.dimension(ct)
	var entries []domain.IndexEntry
	skipped := 0
	err := retryStorage(ctx, "scan", func() error {
		entries, skipped = entries[:0], 0
		return m.store.Scan(ctx, ct, func(rec *domain.EmbeddingRecord) error {
			if len(rec.Vector) != dim {
				skipped++
				return nil
			}
			entries = append(entries, domain.IndexEntry{Key: rec.ContentID, Vector: rec.Vector})
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", ct, err)
	}
	if skipped > 0 {
		m.log.Warn("skipped %d %s records with dimension != %d", skipped, ct, dim)
	}

	idx, err := m.builder.Build(ctx, dim, entries)
	if err != nil {
		return fmt.Errorf("building %s index: %w", ct, err)
	}

	next := &snapshot{
		id:            uuid.NewString(),
		index:         idx,
		builtAt:       time.Now(),
		buildDuration: time.Since(start),
	}

	ti.mu.Lock()
	replayCtx := context.WithoutCancel(ctx)
	stale := false
	for _, mu := range ti.pending {
		if err := applyMutation(replayCtx, idx, mu); err != nil {
			m.log.Warn("replaying %s/%s onto new snapshot: %v", ct, mu.key, err)
			stale = true
		}
	}
	replayed := len(ti.pending)
	ti.pending = nil
	old := ti.current.Swap(next)
	if !stale {
		ti.coverage.Store(ti.storeVersion.Load())
	}
	ti.rebuilding.Store(false)
	ok = true
	ti.mu.Unlock()

	if old != nil {
		if err := old.index.Close(); err != nil {
			m.log.Warn("closing old %s snapshot: %v", ct, err)
		}
	}

	m.log.Info("rebuilt %s index %s: %d entries, %d replayed, %v",
		ct, next.id, len(entries), replayed, next.buildDuration.Round(time.Millisecond))
	return nil
}

// Stats reports the index state of ct.
func (m *IndexManager) Stats(ct domain.ContentType) domain.IndexStats {
	stats := domain.IndexStats{Kind: m.builder.Kind()}
	ti, err := m.state(ct)
	if err != nil {
		return stats
	}

	stats.CoverageVersion = ti.coverage.Load()
	stats.StoreVersion = ti.storeVersion.Load()
	stats.Rebuilding = ti.rebuilding.Load()
	stats.Fallbacks = ti.fallbacks.Load()

	if snap := ti.current.Load(); snap != nil {
		stats.SnapshotID = snap.id
		stats.Entries = snap.index.Len()
		stats.LastRebuild = snap.builtAt
		stats.LastRebuildDuration = snap.buildDuration
		stats.Fresh = !stats.Rebuilding && stats.CoverageVersion == stats.StoreVersion
	}
	return stats
}

// Close waits for in-flight rebuilds and releases every snapshot.
func (m *IndexManager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()

	var errs []error
	for ct, ti := range m.types {
		if snap := ti.current.Swap(nil); snap != nil {
			if err := snap.index.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s index: %w", ct, err))
			}
		}
	}
	return errors.Join(errs...)
}
