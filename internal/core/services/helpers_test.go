package services

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/adapters/driven/index/hnsw"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

// testSettings returns small settings suited to 2-d and 3-d vectors.
func testSettings() domain.EngineSettings {
	s := domain.DefaultEngineSettings()
	s.DefaultDimension = 2
	s.Dimensions = map[domain.ContentType]int{domain.ContentTypeCompany: 3}
	s.Search.Threshold = 0.7
	s.OperationTimeout = 5 * time.Second
	return s
}

func newTestEngine(t testing.TB, store driven.EmbeddingStore, opts ...func(*domain.EngineSettings)) *Engine {
	t.Helper()
	settings := testSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	if store == nil {
		store = memory.NewEmbeddingStore()
	}
	engine, err := NewEngine(settings, store, hnsw.NewBuilder(hnsw.Options{Seed: 1}), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

// atScore returns a unit 2-d vector whose cosine with [1, 0] is score.
func atScore(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score))}
}

func job(id string, vec []float32) *domain.EmbeddingRecord {
	return &domain.EmbeddingRecord{ContentID: id, ContentType: domain.ContentTypeJob, Vector: vec}
}

func ids(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ContentID
	}
	return out
}

func mustUpsert(t testing.TB, e *Engine, recs ...*domain.EmbeddingRecord) {
	t.Helper()
	for _, rec := range recs {
		_, err := e.Vectors.Upsert(context.Background(), rec)
		require.NoError(t, err)
	}
}

// flakyStore wraps a memory store and fails chosen operations.
type flakyStore struct {
	*memory.EmbeddingStore

	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
	delay    time.Duration
}

func newFlakyStore(opts ...memory.Option) *flakyStore {
	return &flakyStore{
		EmbeddingStore: memory.NewEmbeddingStore(opts...),
		failures:       make(map[string]int),
		calls:          make(map[string]int),
	}
}

// failNext makes the next n calls of op fail with ErrStorageIO.
func (f *flakyStore) failNext(op string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = n
}

func (f *flakyStore) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *flakyStore) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	fail := f.failures[op] > 0
	if fail {
		f.failures[op]--
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.WrapStorageError(op, ctx.Err())
		}
	}
	if fail {
		return domain.WrapStorageError(op, errInjected)
	}
	return nil
}

var errInjected = &injectedError{}

type injectedError struct{}

func (*injectedError) Error() string { return "injected failure" }

func (f *flakyStore) Upsert(ctx context.Context, rec *domain.EmbeddingRecord) (*domain.EmbeddingRecord, error) {
	if err := f.enter(ctx, "upsert"); err != nil {
		return nil, err
	}
	return f.EmbeddingStore.Upsert(ctx, rec)
}

func (f *flakyStore) Get(ctx context.Context, key domain.RecordKey) (*domain.EmbeddingRecord, error) {
	if err := f.enter(ctx, "get"); err != nil {
		return nil, err
	}
	return f.EmbeddingStore.Get(ctx, key)
}

func (f *flakyStore) GetMany(ctx context.Context, ct domain.ContentType, contentIDs []string) ([]*domain.EmbeddingRecord, error) {
	if err := f.enter(ctx, "getmany"); err != nil {
		return nil, err
	}
	return f.EmbeddingStore.GetMany(ctx, ct, contentIDs)
}

func (f *flakyStore) Delete(ctx context.Context, key domain.RecordKey) error {
	if err := f.enter(ctx, "delete"); err != nil {
		return err
	}
	return f.EmbeddingStore.Delete(ctx, key)
}

func (f *flakyStore) Scan(ctx context.Context, ct domain.ContentType, fn func(*domain.EmbeddingRecord) error) error {
	if err := f.enter(ctx, "scan"); err != nil {
		return err
	}
	return f.EmbeddingStore.Scan(ctx, ct, fn)
}

func (f *flakyStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	if err := f.enter(ctx, "stats"); err != nil {
		return nil, err
	}
	return f.EmbeddingStore.Stats(ctx)
}

// mockEmbedder implements driven.EmbeddingService for testing.
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   atomic.Int32
	closed  atomic.Bool
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return 2 }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return m.err }
func (m *mockEmbedder) Close() error                 { m.closed.Store(true); return nil }

// Ensure mocks implement interfaces
var _ driven.EmbeddingStore = (*flakyStore)(nil)
var _ driven.EmbeddingService = (*mockEmbedder)(nil)
