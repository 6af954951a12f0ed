package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// setupTestStore connects to SIMMATCH_TEST_POSTGRES_DSN or skips.
// Each test writes under its own content IDs so runs can share a database.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SIMMATCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SIMMATCH_TEST_POSTGRES_DSN not set")
	}

	store, err := NewStore(context.Background(), dsn, 4)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

func TestIsDSN(t *testing.T) {
	tests := []struct {
		dsn      string
		expected bool
	}{
		{"postgres://localhost/simmatch", true},
		{"postgresql://user@host:5432/db", true},
		{"", false},
		{"memory", false},
		{"/var/lib/simmatch/vectors.db", false},
		{"mysql://localhost/db", false},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsDSN(tt.dsn))
		})
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (x INT);\n\n  CREATE INDEX i ON a (x);\n;")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, stmts)
	assert.Empty(t, splitStatements("  \n"))
}

func TestMigrationFilesSplitCleanly(t *testing.T) {
	for _, name := range []string{"001_embeddings.up.sql", "002_jobs.up.sql"} {
		content, err := os.ReadFile("migrations/" + name)
		require.NoError(t, err)
		assert.NotEmpty(t, splitStatements(string(content)), name)
	}
}

func TestMarshalMetadata(t *testing.T) {
	s, err := marshalMetadata(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", s)

	s, err = marshalMetadata(map[string]any{"title": "Engineer"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Engineer"}`, s)

	_, err = marshalMetadata(map[string]any{"bad": make(chan int)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullTime(time.Time{}).Valid)
	now := time.Now()
	nt := nullTime(now)
	assert.True(t, nt.Valid)
	assert.Equal(t, now.UTC(), fromNullTime(nt))
	assert.True(t, fromNullTime(nullTime(time.Time{})).IsZero())
}

func TestStore_UpsertGetDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	id := uniqueID("resume")

	rec := &domain.EmbeddingRecord{
		ContentID:    id,
		ContentType:  domain.ContentTypeResume,
		Vector:       []float32{0.1, 0.2, 0.3},
		Metadata:     map[string]any{"title": "Engineer"},
		ModelVersion: "test-model",
	}

	first, err := store.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := store.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	got, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, rec.Vector, got.Vector)
	assert.Equal(t, "Engineer", got.Metadata["title"])
	assert.Equal(t, "test-model", got.ModelVersion)

	many, err := store.GetMany(ctx, domain.ContentTypeResume, []string{id, uniqueID("missing")})
	require.NoError(t, err)
	require.Len(t, many, 1)

	require.NoError(t, store.Delete(ctx, rec.Key()))
	_, err = store.Get(ctx, rec.Key())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, rec.Key()), domain.ErrNotFound)
}

func TestStore_ScanAndStats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	prefix := uniqueID("scan")

	for _, suffix := range []string{"b", "a", "c"} {
		_, err := store.Upsert(ctx, &domain.EmbeddingRecord{
			ContentID:   prefix + "-" + suffix,
			ContentType: domain.ContentTypeGeneric,
			Vector:      []float32{1, 0},
		})
		require.NoError(t, err)
	}

	var seen []string
	err := store.Scan(ctx, domain.ContentTypeGeneric, func(rec *domain.EmbeddingRecord) error {
		if len(rec.ContentID) > len(prefix) && rec.ContentID[:len(prefix)] == prefix {
			seen = append(seen, rec.ContentID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{prefix + "-a", prefix + "-b", prefix + "-c"}, seen)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Counts[domain.ContentTypeGeneric], 3)
	assert.Positive(t, stats.SizeBytes)

	removed, err := store.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(removed), 3)
}

func TestJobStore_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	jobs := store.SchedulerStore()

	// Job names are free text at this layer, so each run uses its own.
	job := domain.Job(uniqueID("job"))
	due := time.Now().Add(time.Hour).Truncate(time.Microsecond)
	require.NoError(t, jobs.PutSchedule(ctx, &domain.JobSchedule{
		Job: job, Every: 90 * time.Minute, Due: due, Failures: 1, LastErr: "timeout",
	}))

	got, err := jobs.Schedule(ctx, job)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 90*time.Minute, got.Every)
	assert.True(t, got.Due.Equal(due))
	assert.True(t, got.LastRun.IsZero())
	assert.Equal(t, 1, got.Failures)
	assert.Equal(t, "timeout", got.LastErr)

	start := time.Now().Truncate(time.Microsecond)
	for i := range 3 {
		require.NoError(t, jobs.AppendRun(ctx, &domain.JobRun{
			Job: job, Started: start, Finished: start.Add(time.Second), Affected: i,
		}))
	}
	require.NoError(t, jobs.TrimRuns(ctx, 2))

	runs, err := jobs.Runs(ctx, job, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Affected)
	assert.Equal(t, time.Second, runs[0].Took())

	missing, err := jobs.Schedule(ctx, domain.Job(uniqueID("missing")))
	require.NoError(t, err)
	assert.Nil(t, missing)
}
