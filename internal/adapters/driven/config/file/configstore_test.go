package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600))
}

func TestNewConfigStore_MissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), store.Path())
	assert.Empty(t, store.Keys())
	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err), "opening must not create the file")
}

func TestNewConfigStore_UncreatableDir(t *testing.T) {
	store, err := NewConfigStore("/dev/null/simmatch")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[search\nsimilarity_threshold = ")

	_, err := NewConfigStore(dir)

	assert.ErrorContains(t, err, "parsing")
}

func TestConfigStore_FlattensTables(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[storage]
dsn = "postgres://localhost/simmatch"

[search]
similarity_threshold = 0.75
default_limit = 5

[vector.dimensions]
resume = 768
`)

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/simmatch", store.GetString("storage.dsn"))
	threshold, ok := store.Lookup("search.similarity_threshold")
	require.True(t, ok)
	assert.InDelta(t, 0.75, threshold, 1e-9)
	limit, _ := store.Lookup("search.default_limit")
	assert.Equal(t, int64(5), limit)
	dim, _ := store.Lookup("vector.dimensions.resume")
	assert.Equal(t, int64(768), dim)
	assert.Equal(t, []string{
		"search.default_limit", "search.similarity_threshold", "storage.dsn", "vector.dimensions.resume",
	}, store.Keys())

	// Non-string values read as "".
	assert.Empty(t, store.GetString("search.default_limit"))
}

func TestConfigStore_SetWritesNestedTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("search.default_limit", 7))
	require.NoError(t, store.Set("index.kind", "ivf"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[search]")
	assert.Contains(t, string(raw), "default_limit = 7")
	assert.Contains(t, string(raw), "[index]")

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestConfigStore_ValuesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("storage.pool_size", int64(8)))
	require.NoError(t, store.Set("index.warm_on_start", false))
	require.NoError(t, store.Set("search.similarity_threshold", 0.65))

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)

	pool, _ := reopened.Lookup("storage.pool_size")
	assert.Equal(t, int64(8), pool)
	warm, ok := reopened.Lookup("index.warm_on_start")
	assert.True(t, ok)
	assert.Equal(t, false, warm)
	threshold, _ := reopened.Lookup("search.similarity_threshold")
	assert.InDelta(t, 0.65, threshold, 1e-9)
}

func TestConfigStore_Unset(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("embedding.provider", "ollama"))
	require.NoError(t, store.Set("embedding.model", "nomic-embed-text"))

	require.NoError(t, store.Unset("embedding.model"))
	require.NoError(t, store.Unset("embedding.model"))

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"embedding.provider"}, reopened.Keys())
}

func TestConfigStore_SetRollsBackOnEncodeError(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Set("bad", make(chan int)))
	_, ok := store.Lookup("bad")
	assert.False(t, ok)
}

func TestConfigStore_LoadAfterDelete(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("index.kind", "ivf"))
	require.NoError(t, os.Remove(store.Path()))

	require.NoError(t, store.Load())
	assert.Empty(t, store.Keys())
}

func TestNest(t *testing.T) {
	flat := map[string]any{"a.b": 1, "a.c": 2, "d": 3, "x": 4, "x.y": 5, "e.f.g": 6}

	nested := nest(flat)

	assert.Equal(t, map[string]any{"b": 1, "c": 2}, nested["a"])
	assert.Equal(t, 3, nested["d"])
	assert.Equal(t, 4, nested["x"])
	assert.Equal(t, 5, nested["x.y"])
	assert.Equal(t, map[string]any{"f": map[string]any{"g": 6}}, nested["e"])

	back := map[string]any{}
	flatten(back, "", nest(map[string]any{"a.b": 1, "a.c": 2, "d": 3, "e.f.g": 6}))
	assert.Equal(t, map[string]any{"a.b": 1, "a.c": 2, "d": 3, "e.f.g": 6}, back)
}

func TestConfigStore_IsConfigChange(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	other := filepath.Join(filepath.Dir(store.Path()), "other.toml")

	tests := []struct {
		name     string
		event    fsnotify.Event
		expected bool
	}{
		{"write to config", fsnotify.Event{Name: store.Path(), Op: fsnotify.Write}, true},
		{"create config", fsnotify.Event{Name: store.Path(), Op: fsnotify.Create}, true},
		{"chmod config", fsnotify.Event{Name: store.Path(), Op: fsnotify.Chmod}, false},
		{"remove config", fsnotify.Event{Name: store.Path(), Op: fsnotify.Remove}, false},
		{"write to other file", fsnotify.Event{Name: other, Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, store.isConfigChange(tt.event))
		})
	}
}

func TestConfigStore_Watch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("search.default_limit", 5))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "[search]\ndefault_limit = 9\n")

	assert.Eventually(t, func() bool {
		v, _ := store.Lookup("search.default_limit")
		return v == int64(9)
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotEmpty(t, changed)

	cancel()
	assert.NoError(t, <-done)
}
