package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
// It records the last call's arguments.
type mockSearchService struct {
	results []domain.SearchResult
	err     error

	lastVector []float32
	lastType   domain.ContentType
	lastSource domain.RecordKey
	lastText   string
	lastOpts   domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query []float32,
	contentType domain.ContentType,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastVector, m.lastType, m.lastOpts = query, contentType, opts
	return m.results, m.err
}

func (m *mockSearchService) Match(
	_ context.Context,
	source domain.RecordKey,
	target domain.ContentType,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastSource, m.lastType, m.lastOpts = source, target, opts
	return m.results, m.err
}

func (m *mockSearchService) SemanticSearch(
	_ context.Context,
	text string,
	contentType domain.ContentType,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastText, m.lastType, m.lastOpts = text, contentType, opts
	return m.results, m.err
}

// mockVectorService is a mock implementation of driving.VectorService.
type mockVectorService struct {
	records map[domain.RecordKey]*domain.EmbeddingRecord
	err     error
}

func (m *mockVectorService) Upsert(_ context.Context, rec *domain.EmbeddingRecord) (*domain.EmbeddingRecord, error) {
	return rec, m.err
}

func (m *mockVectorService) Get(_ context.Context, key domain.RecordKey) (*domain.EmbeddingRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (m *mockVectorService) Delete(_ context.Context, _ domain.RecordKey) error {
	return m.err
}

// mockMaintenanceService is a mock implementation of driving.MaintenanceService.
type mockMaintenanceService struct {
	stats *domain.EngineStats
	err   error
}

func (m *mockMaintenanceService) Rebuild(_ context.Context, _ domain.ContentType) error {
	return m.err
}

func (m *mockMaintenanceService) RebuildAll(_ context.Context) error {
	return m.err
}

func (m *mockMaintenanceService) Cleanup(_ context.Context, _ time.Duration) (int, error) {
	return 0, m.err
}

func (m *mockMaintenanceService) Stats(_ context.Context) (*domain.EngineStats, error) {
	return m.stats, m.err
}

func sampleStats() *domain.EngineStats {
	rebuilt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.EngineStats{
		Store: domain.StoreStats{
			Counts:    map[domain.ContentType]int{domain.ContentTypeJob: 3, domain.ContentTypeResume: 2},
			Total:     5,
			SizeBytes: 4096,
		},
		Index: map[domain.ContentType]domain.IndexStats{
			domain.ContentTypeResume: {Kind: domain.IndexKindHNSW, Entries: 2, Fresh: true, LastRebuild: rebuilt},
			domain.ContentTypeJob:    {Kind: domain.IndexKindIVF, Entries: 3, Fallbacks: 4},
		},
	}
}

// mockScheduler is a mock implementation of driving.Scheduler.
type mockScheduler struct {
	jobs []domain.JobStatus
	err  error
}

func (m *mockScheduler) Start(context.Context) error { return nil }

func (m *mockScheduler) Stop() error { return nil }

func (m *mockScheduler) Jobs(context.Context) ([]domain.JobStatus, error) { return m.jobs, m.err }

func (m *mockScheduler) RunNow(context.Context, domain.Job) (*domain.JobRun, error) {
	return nil, m.err
}
