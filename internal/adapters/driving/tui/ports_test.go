package tui

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

type mockSearchService struct {
	results []domain.SearchResult
	err     error
}

func (m *mockSearchService) Search(context.Context, []float32, domain.ContentType, domain.SearchOptions) ([]domain.SearchResult, error) {
	return m.results, m.err
}

func (m *mockSearchService) Match(context.Context, domain.RecordKey, domain.ContentType, domain.SearchOptions) ([]domain.SearchResult, error) {
	return m.results, m.err
}

func (m *mockSearchService) SemanticSearch(context.Context, string, domain.ContentType, domain.SearchOptions) ([]domain.SearchResult, error) {
	return m.results, m.err
}

type mockVectorService struct {
	records map[domain.RecordKey]*domain.EmbeddingRecord
}

func (m *mockVectorService) Upsert(_ context.Context, rec *domain.EmbeddingRecord) (*domain.EmbeddingRecord, error) {
	return rec, nil
}

func (m *mockVectorService) Get(_ context.Context, key domain.RecordKey) (*domain.EmbeddingRecord, error) {
	if rec, ok := m.records[key]; ok {
		return rec, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockVectorService) Delete(context.Context, domain.RecordKey) error { return nil }

type mockMaintenanceService struct{}

func (m *mockMaintenanceService) Rebuild(context.Context, domain.ContentType) error { return nil }
func (m *mockMaintenanceService) RebuildAll(context.Context) error                  { return nil }
func (m *mockMaintenanceService) Cleanup(context.Context, time.Duration) (int, error) {
	return 0, nil
}

func (m *mockMaintenanceService) Stats(context.Context) (*domain.EngineStats, error) {
	return &domain.EngineStats{Store: domain.StoreStats{Total: 7}}, nil
}

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ports   *Ports
		wantErr error
	}{
		{"nil ports", nil, ErrMissingSearchService},
		{"missing search", &Ports{Vectors: &mockVectorService{}}, ErrMissingSearchService},
		{"search only", &Ports{Search: &mockSearchService{}}, nil},
		{"all", &Ports{Search: &mockSearchService{}, Vectors: &mockVectorService{}, Maintenance: &mockMaintenanceService{}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
