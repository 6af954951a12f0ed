package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/cli"
	"github.com/custodia-labs/simmatch/internal/core/domain"
)

func TestBootstrap_Ephemeral(t *testing.T) {
	t.Setenv(homeEnv, t.TempDir())
	ctx := context.Background()

	s, err := bootstrap(ctx, cli.Options{Ephemeral: true, Warm: true})
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	assert.NotNil(t, s.Vectors)
	assert.NotNil(t, s.Search)
	assert.NotNil(t, s.Defaults)
	assert.NotNil(t, s.Maintenance)
	assert.NotNil(t, s.Settings)
	assert.NotNil(t, s.Scheduler)
	assert.Nil(t, s.Watch)
}

func TestBootstrap_SQLitePersistsAcrossRuns(t *testing.T) {
	home := t.TempDir()
	t.Setenv(homeEnv, home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[vector]\ndimension = 3\n"), 0600))
	ctx := context.Background()

	s, err := bootstrap(ctx, cli.Options{})
	require.NoError(t, err)
	assert.NotNil(t, s.Watch)

	_, err = s.Vectors.Upsert(ctx, &domain.EmbeddingRecord{
		ContentID:   "j1",
		ContentType: domain.ContentTypeJob,
		Vector:      []float32{1, 0, 0},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.DirExists(t, filepath.Join(home, "data"))

	s, err = bootstrap(ctx, cli.Options{})
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	rec, err := s.Vectors.Get(ctx, domain.RecordKey{ContentID: "j1", ContentType: domain.ContentTypeJob})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, rec.Vector)
}

func TestBootstrap_ExplicitDirs(t *testing.T) {
	t.Setenv(homeEnv, t.TempDir())
	configDir := t.TempDir()
	dataDir := filepath.Join(t.TempDir(), "vectors")

	s, err := bootstrap(context.Background(), cli.Options{ConfigDir: configDir, DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.DirExists(t, dataDir)
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv(homeEnv, home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[search]\nsimilarity_threshold = 2.0\n"), 0600))

	_, err := bootstrap(context.Background(), cli.Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHomeDir_FromEnv(t *testing.T) {
	t.Setenv(homeEnv, "/srv/simmatch")

	dir, err := homeDir()

	require.NoError(t, err)
	assert.Equal(t, "/srv/simmatch", dir)
}
