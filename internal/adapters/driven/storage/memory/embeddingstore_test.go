package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// fixedClock returns a clock that only moves when advanced.
func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func rec(id string, ct domain.ContentType, vec ...float32) *domain.EmbeddingRecord {
	return &domain.EmbeddingRecord{ContentID: id, ContentType: ct, Vector: vec, Metadata: map[string]any{"id": id}}
}

func TestEmbeddingStore_UpsertAndGet(t *testing.T) {
	store := NewEmbeddingStore()
	ctx := context.Background()

	saved, err := store.Upsert(ctx, rec("a", domain.ContentTypeJob, 1, 2))
	require.NoError(t, err)

	got, err := store.Get(ctx, saved.Key())
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got.Vector)
	assert.Equal(t, "a", got.Metadata["id"])

	// Returned records are copies.
	got.Vector[0] = 99
	again, err := store.Get(ctx, saved.Key())
	require.NoError(t, err)
	assert.Equal(t, float32(1), again.Vector[0])
}

func TestEmbeddingStore_UpdatedAtStrictlyIncreasesOnFrozenClock(t *testing.T) {
	clock, _ := fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewEmbeddingStore(WithClock(clock))
	ctx := context.Background()

	first, err := store.Upsert(ctx, rec("a", domain.ContentTypeJob, 1))
	require.NoError(t, err)
	second, err := store.Upsert(ctx, rec("a", domain.ContentTypeJob, 1))
	require.NoError(t, err)

	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestEmbeddingStore_GetMissing(t *testing.T) {
	store := NewEmbeddingStore()
	_, err := store.Get(context.Background(), domain.RecordKey{ContentID: "x", ContentType: domain.ContentTypeJob})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEmbeddingStore_UpsertInvalid(t *testing.T) {
	store := NewEmbeddingStore()
	_, err := store.Upsert(context.Background(), rec("", domain.ContentTypeJob, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = store.Upsert(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmbeddingStore_GetManyAndDelete(t *testing.T) {
	store := NewEmbeddingStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Upsert(ctx, rec(id, domain.ContentTypeResume, 1))
		require.NoError(t, err)
	}

	recs, err := store.GetMany(ctx, domain.ContentTypeResume, []string{"a", "c", "zz"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	require.NoError(t, store.Delete(ctx, domain.RecordKey{ContentID: "a", ContentType: domain.ContentTypeResume}))
	assert.ErrorIs(t, store.Delete(ctx, domain.RecordKey{ContentID: "a", ContentType: domain.ContentTypeResume}), domain.ErrNotFound)
}

func TestEmbeddingStore_DeleteOlderThan(t *testing.T) {
	clock, advance := fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewEmbeddingStore(WithClock(clock))
	ctx := context.Background()

	_, err := store.Upsert(ctx, rec("old", domain.ContentTypeJob, 1))
	require.NoError(t, err)
	advance(48 * time.Hour)
	_, err = store.Upsert(ctx, rec("new", domain.ContentTypeJob, 1))
	require.NoError(t, err)

	removed, err := store.DeleteOlderThan(ctx, clock().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []domain.RecordKey{{ContentID: "old", ContentType: domain.ContentTypeJob}}, removed)

	_, err = store.Get(ctx, domain.RecordKey{ContentID: "new", ContentType: domain.ContentTypeJob})
	assert.NoError(t, err)
}

func TestEmbeddingStore_ScanOrderAndCallbackReentry(t *testing.T) {
	store := NewEmbeddingStore()
	ctx := context.Background()
	for _, id := range []string{"b", "c", "a"} {
		_, err := store.Upsert(ctx, rec(id, domain.ContentTypeCompany, 1))
		require.NoError(t, err)
	}

	var ids []string
	err := store.Scan(ctx, domain.ContentTypeCompany, func(r *domain.EmbeddingRecord) error {
		ids = append(ids, r.ContentID)
		// Writing from inside the callback must not deadlock.
		_, err := store.Upsert(ctx, rec("z"+r.ContentID, domain.ContentTypeGeneric, 1))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestEmbeddingStore_CancelledContext(t *testing.T) {
	store := NewEmbeddingStore()
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	_, err := store.Get(ctx, domain.RecordKey{ContentID: "a", ContentType: domain.ContentTypeJob})
	assert.ErrorIs(t, err, domain.ErrTimeout)

	// An empty type still reports the expired deadline.
	called := false
	err = store.Scan(ctx, domain.ContentTypeJob, func(*domain.EmbeddingRecord) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.False(t, called)
}

func TestEmbeddingStore_Stats(t *testing.T) {
	clock, advance := fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewEmbeddingStore(WithClock(clock))
	ctx := context.Background()

	_, err := store.Upsert(ctx, rec("a", domain.ContentTypeJob, 1, 2))
	require.NoError(t, err)
	advance(time.Minute)
	_, err = store.Upsert(ctx, rec("b", domain.ContentTypeResume, 1, 2))
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Counts[domain.ContentTypeJob])
	assert.Equal(t, clock().UTC(), stats.LatestUpdate)
	assert.Positive(t, stats.SizeBytes)

	require.NoError(t, store.Close())
	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}
