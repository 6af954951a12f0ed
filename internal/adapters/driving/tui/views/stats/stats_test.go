package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/simmatch/internal/core/domain"
)

type mockMaintenance struct {
	stats      *domain.EngineStats
	statsErr   error
	rebuildErr error
	rebuilds   int
}

func (m *mockMaintenance) Rebuild(context.Context, domain.ContentType) error { return nil }

func (m *mockMaintenance) RebuildAll(context.Context) error {
	m.rebuilds++
	return m.rebuildErr
}

func (m *mockMaintenance) Cleanup(context.Context, time.Duration) (int, error) { return 0, nil }

func (m *mockMaintenance) Stats(context.Context) (*domain.EngineStats, error) {
	return m.stats, m.statsErr
}

func sampleStats() *domain.EngineStats {
	return &domain.EngineStats{
		Store: domain.StoreStats{
			Counts:    map[domain.ContentType]int{domain.ContentTypeJob: 12, domain.ContentTypeResume: 3},
			Total:     15,
			SizeBytes: 2048,
		},
		Index: map[domain.ContentType]domain.IndexStats{
			domain.ContentTypeJob:    {Kind: domain.IndexKindHNSW, SnapshotID: "s1", Entries: 12, Fresh: true, Fallbacks: 2},
			domain.ContentTypeResume: {Kind: domain.IndexKindHNSW, SnapshotID: "s2", Entries: 2},
		},
	}
}

func TestView_LoadsStats(t *testing.T) {
	svc := &mockMaintenance{stats: sampleStats()}
	v := NewView(nil, nil, svc)
	v.SetDimensions(100, 30)

	cmd := v.Init()
	require.NotNil(t, cmd)
	v.Update(cmd())

	require.NotNil(t, v.Stats())
	view := v.View()
	assert.Contains(t, view, "15 records, 2.0 KiB on disk")
	assert.Contains(t, view, "job")
	assert.Contains(t, view, "fresh")
	assert.Contains(t, view, "stale")
	assert.NotContains(t, view, "company")
}

func TestView_StatsError(t *testing.T) {
	v := NewView(nil, nil, &mockMaintenance{statsErr: errors.New("store closed")})

	v.Update(v.Init()())

	require.Error(t, v.Err())
	assert.Contains(t, v.View(), "store closed")
}

func TestView_NoService(t *testing.T) {
	v := NewView(nil, nil, nil)

	v.Update(v.Init()())

	assert.ErrorIs(t, v.Err(), ErrNoMaintenanceService)
}

func TestView_RebuildThenReload(t *testing.T) {
	svc := &mockMaintenance{stats: sampleStats()}
	v := NewView(nil, nil, svc)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	require.NotNil(t, cmd)
	assert.True(t, v.Rebuilding())

	// A second press while rebuilding is ignored.
	_, again := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	assert.Nil(t, again)

	_, reload := v.Update(cmd())
	require.NotNil(t, reload)
	assert.False(t, v.Rebuilding())
	assert.Equal(t, 1, svc.rebuilds)

	v.Update(reload())
	assert.NotNil(t, v.Stats())
	assert.Contains(t, v.View(), "Indexes rebuilt")
}

func TestView_RebuildError(t *testing.T) {
	svc := &mockMaintenance{rebuildErr: domain.ErrStorageIO}
	v := NewView(nil, nil, svc)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	_, reload := v.Update(cmd())

	assert.Nil(t, reload)
	assert.ErrorIs(t, v.Err(), domain.ErrStorageIO)
}

func TestView_RefreshAndEsc(t *testing.T) {
	v := NewView(nil, nil, &mockMaintenance{stats: sampleStats()})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	require.NotNil(t, cmd)
	assert.IsType(t, messages.StatsLoaded{}, cmd())

	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}

func TestIndexState(t *testing.T) {
	assert.Equal(t, "not built", indexState(domain.IndexStats{}))
	assert.Equal(t, "rebuilding", indexState(domain.IndexStats{Rebuilding: true}))
	assert.Equal(t, "stale", indexState(domain.IndexStats{SnapshotID: "a"}))
	assert.Equal(t, "fresh", indexState(domain.IndexStats{SnapshotID: "a", Fresh: true}))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "3.0 MiB", formatBytes(3*1024*1024))
}
