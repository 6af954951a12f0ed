package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/adapters/driven/index/hnsw"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/simmatch/internal/core/domain"
)

func TestNewEngine_ValidatesSettings(t *testing.T) {
	settings := testSettings()
	settings.DefaultDimension = 0

	_, err := NewEngine(settings, memory.NewEmbeddingStore(), hnsw.NewBuilder(hnsw.Options{}), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewEngine(testSettings(), nil, hnsw.NewBuilder(hnsw.Options{}), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewEngine_SettingsAreCopied(t *testing.T) {
	settings := testSettings()
	engine, err := NewEngine(settings, memory.NewEmbeddingStore(), hnsw.NewBuilder(hnsw.Options{}), nil)
	require.NoError(t, err)
	defer engine.Close()

	settings.Dimensions[domain.ContentTypeJob] = 99
	got := engine.Settings()
	got.Dimensions[domain.ContentTypeResume] = 99

	fresh := engine.Settings()
	assert.Equal(t, 2, fresh.Dimension(domain.ContentTypeJob))
	assert.Equal(t, 2, fresh.Dimension(domain.ContentTypeResume))
}

// Three jobs scored 0.92, 0.81 and 0.40 against the query; threshold 0.7
// and limit 2 return the first two in order.
func TestEngine_EndToEndJobScenario(t *testing.T) {
	for _, warm := range []bool{false, true} {
		name := "brute force"
		if warm {
			name = "indexed"
		}
		t.Run(name, func(t *testing.T) {
			engine := newTestEngine(t, nil)
			ctx := context.Background()
			if warm {
				require.NoError(t, engine.Warm(ctx))
			}

			mustUpsert(t, engine,
				job("J1", atScore(0.92)),
				job("J2", atScore(0.81)),
				job("J3", atScore(0.40)),
			)

			results, err := engine.Search.Search(ctx, []float32{1, 0}, domain.ContentTypeJob,
				domain.SearchOptions{Limit: 2}.WithThreshold(0.7))
			require.NoError(t, err)

			assert.Equal(t, []string{"J1", "J2"}, ids(results))
			assert.InDelta(t, 0.92, results[0].SimilarityScore, 1e-6)
			assert.InDelta(t, 0.81, results[1].SimilarityScore, 1e-6)

			fallbacks := engine.index.Stats(domain.ContentTypeJob).Fallbacks
			if warm {
				assert.Zero(t, fallbacks)
			} else {
				assert.Equal(t, uint64(1), fallbacks)
			}
		})
	}
}

func TestEngine_Warm(t *testing.T) {
	engine := newTestEngine(t, nil)
	mustUpsert(t, engine, job("a", []float32{1, 0}), job("b", []float32{0, 1}))

	require.NoError(t, engine.Warm(context.Background()))

	stats := engine.index.Stats(domain.ContentTypeJob)
	assert.True(t, stats.Fresh)
	assert.Equal(t, 2, stats.Entries)
	assert.NotEmpty(t, stats.SnapshotID)
	for _, ct := range domain.AllContentTypes() {
		assert.True(t, engine.index.Stats(ct).Fresh, ct)
	}
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	embedder := &mockEmbedder{}
	engine, err := NewEngine(testSettings(), memory.NewEmbeddingStore(), hnsw.NewBuilder(hnsw.Options{}), embedder)
	require.NoError(t, err)
	require.NoError(t, engine.Warm(context.Background()))

	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())
	assert.True(t, embedder.closed.Load())

	err = engine.Maintenance.Rebuild(context.Background(), domain.ContentTypeJob)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := withTimeout(context.Background(), time.Second)
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)

	parent, cancelParent := context.WithTimeout(context.Background(), time.Hour)
	defer cancelParent()
	ctx, cancel = withTimeout(parent, time.Second)
	defer cancel()
	deadline, _ = ctx.Deadline()
	assert.WithinDuration(t, time.Now().Add(time.Hour), deadline, time.Minute)

	ctx, cancel = withTimeout(context.Background(), 0)
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}

func TestRetryStorage(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := retryStorage(ctx, "op", func() error {
		calls++
		if calls == 1 {
			return domain.WrapStorageError("op", errInjected)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = retryStorage(ctx, "op", func() error {
		calls++
		return domain.WrapStorageError("op", errInjected)
	})
	assert.ErrorIs(t, err, domain.ErrStorageIO)
	assert.Equal(t, 2, calls)

	calls = 0
	err = retryStorage(ctx, "op", func() error {
		calls++
		return domain.ErrNotFound
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(context.DeadlineExceeded), domain.ErrTimeout)
	assert.ErrorIs(t, classify(domain.ErrNotFound), domain.ErrNotFound)
	assert.NotErrorIs(t, classify(domain.ErrNotFound), domain.ErrTimeout)
}
