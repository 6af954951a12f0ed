package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns ranked results", func(t *testing.T) {
		mock := &mockSearchService{
			results: []domain.SearchResult{
				{ContentID: "j1", ContentType: domain.ContentTypeJob, SimilarityScore: 0.95,
					Metadata: map[string]any{"title": "Go Engineer"}},
				{ContentID: "j2", ContentType: domain.ContentTypeJob, SimilarityScore: 0.81},
			},
		}
		server := newTestServer(t, &Ports{Search: mock})

		threshold := 0.8
		_, output, err := server.handleSearch(ctx, nil, SearchInput{
			Vector:      []float32{1, 0},
			ContentType: "job",
			Limit:       5,
			Threshold:   &threshold,
		})

		require.NoError(t, err)
		assert.Equal(t, 2, output.Count)
		assert.Equal(t, "j1", output.Results[0].ContentID)
		assert.Equal(t, "Go Engineer", output.Results[0].Metadata["title"])
		assert.Equal(t, []float32{1, 0}, mock.lastVector)
		assert.Equal(t, domain.ContentTypeJob, mock.lastType)
		assert.Equal(t, 5, mock.lastOpts.Limit)
		require.NotNil(t, mock.lastOpts.Threshold)
		assert.Equal(t, 0.8, *mock.lastOpts.Threshold)
	})

	t.Run("omitted threshold uses default", func(t *testing.T) {
		mock := &mockSearchService{}
		server := newTestServer(t, &Ports{Search: mock})

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Vector: []float32{1}, ContentType: "resume"})

		require.NoError(t, err)
		assert.Nil(t, mock.lastOpts.Threshold)
		assert.NotNil(t, output.Results)
		assert.Equal(t, 0, output.Count)
	})

	t.Run("unknown content type", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Vector: []float32{1}, ContentType: "video"})

		assert.ErrorIs(t, err, domain.ErrInvalidContentType)
	})

	t.Run("search failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{err: domain.ErrDimensionMismatch}})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Vector: []float32{1}, ContentType: "job"})

		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}

func TestServer_handleMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("passes source and target", func(t *testing.T) {
		mock := &mockSearchService{
			results: []domain.SearchResult{{ContentID: "j9", ContentType: domain.ContentTypeJob, SimilarityScore: 0.9}},
		}
		server := newTestServer(t, &Ports{Search: mock})

		_, output, err := server.handleMatch(ctx, nil, MatchInput{
			SourceType: "resume", SourceID: "r1", TargetType: "job", IncludeVector: true,
		})

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		assert.Equal(t, domain.RecordKey{ContentID: "r1", ContentType: domain.ContentTypeResume}, mock.lastSource)
		assert.Equal(t, domain.ContentTypeJob, mock.lastType)
		assert.True(t, mock.lastOpts.IncludeVector)
	})

	t.Run("invalid types", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}})

		_, _, err := server.handleMatch(ctx, nil, MatchInput{SourceType: "x", SourceID: "r1", TargetType: "job"})
		assert.ErrorIs(t, err, domain.ErrInvalidContentType)

		_, _, err = server.handleMatch(ctx, nil, MatchInput{SourceType: "resume", SourceID: "r1", TargetType: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidContentType)
	})

	t.Run("missing source", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{err: domain.ErrNotFound}})

		_, _, err := server.handleMatch(ctx, nil, MatchInput{SourceType: "resume", SourceID: "nope", TargetType: "job"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleSemanticSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("passes text", func(t *testing.T) {
		mock := &mockSearchService{}
		server := newTestServer(t, &Ports{Search: mock})

		_, _, err := server.handleSemanticSearch(ctx, nil, SemanticSearchInput{Text: "go engineer", ContentType: "job"})

		require.NoError(t, err)
		assert.Equal(t, "go engineer", mock.lastText)
	})

	t.Run("embedding unavailable", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{err: domain.ErrEmbeddingUnavailable}})

		_, _, err := server.handleSemanticSearch(ctx, nil, SemanticSearchInput{Text: "x", ContentType: "job"})

		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}

func TestServer_handleStats(t *testing.T) {
	ctx := context.Background()

	t.Run("summarises per type in order", func(t *testing.T) {
		server := newTestServer(t, &Ports{
			Search:      &mockSearchService{},
			Maintenance: &mockMaintenanceService{stats: sampleStats()},
		})

		_, output, err := server.handleStats(ctx, nil, StatsInput{})

		require.NoError(t, err)
		assert.Equal(t, 5, output.Total)
		assert.Empty(t, output.LatestUpdate)
		require.Len(t, output.Types, 2)
		assert.Equal(t, "job", output.Types[0].ContentType)
		assert.Equal(t, 3, output.Types[0].Records)
		assert.Equal(t, "ivf", output.Types[0].IndexKind)
		assert.Equal(t, uint64(4), output.Types[0].Fallbacks)
		assert.Equal(t, "resume", output.Types[1].ContentType)
		assert.True(t, output.Types[1].Fresh)
		assert.Equal(t, "2026-03-01T12:00:00Z", output.Types[1].LastRebuild)
	})

	t.Run("stats failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{
			Search:      &mockSearchService{},
			Maintenance: &mockMaintenanceService{err: errors.New("database error")},
		})

		_, _, err := server.handleStats(ctx, nil, StatsInput{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "collecting stats")
	})
}

func TestServer_handleJobs(t *testing.T) {
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)

	t.Run("summarises schedules and last run", func(t *testing.T) {
		sched := &mockScheduler{jobs: []domain.JobStatus{
			{
				Schedule: domain.JobSchedule{Job: domain.JobRebuild, Every: time.Hour, Due: started.Add(time.Hour)},
				Recent: []domain.JobRun{
					{Job: domain.JobRebuild, Started: started, Finished: started.Add(2 * time.Second), Affected: 4},
				},
			},
			{
				Schedule: domain.JobSchedule{Job: domain.JobCleanup, Paused: true, Failures: 2, LastErr: "locked"},
			},
		}}
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Scheduler: sched})

		_, output, err := server.handleJobs(ctx, nil, JobsInput{})

		require.NoError(t, err)
		require.Len(t, output.Jobs, 2)
		rebuild := output.Jobs[0]
		assert.Equal(t, "index-rebuild", rebuild.Job)
		assert.Equal(t, "1h0m0s", rebuild.Every)
		assert.Equal(t, "2026-03-01T04:00:00Z", rebuild.NextRun)
		assert.Equal(t, "2026-03-01T03:00:00Z", rebuild.LastRunAt)
		assert.Equal(t, "2s", rebuild.LastRunFor)
		assert.Equal(t, 4, rebuild.Affected)

		cleanup := output.Jobs[1]
		assert.True(t, cleanup.Paused)
		assert.Equal(t, 2, cleanup.Failures)
		assert.Equal(t, "locked", cleanup.LastError)
		assert.Empty(t, cleanup.LastRunAt)
	})

	t.Run("scheduler failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{
			Search:    &mockSearchService{},
			Scheduler: &mockScheduler{err: errors.New("database error")},
		})

		_, _, err := server.handleJobs(ctx, nil, JobsInput{})
		assert.ErrorContains(t, err, "listing jobs")
	})
}
