package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/simmatch/internal/adapters/driven/ai"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/config/file"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/index"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/storage"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/simmatch/internal/adapters/driving/cli"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/core/services"
	"github.com/custodia-labs/simmatch/internal/logger"
)

// homeEnv overrides the default ~/.simmatch directory.
const homeEnv = "SIMMATCH_HOME"

// bootstrap builds the engine and its surrounding services from config.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	home, err := homeDir()
	if err != nil {
		return nil, err
	}
	configDir := opts.ConfigDir
	if configDir == "" {
		configDir = home
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(home, "data")
	}

	var configStore driven.ConfigStore
	var watch func(context.Context, func()) error
	if opts.Ephemeral {
		configStore = memory.NewConfigStore()
	} else {
		fileStore, err := file.NewConfigStore(configDir)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		configStore = fileStore
		watch = fileStore.Watch
	}

	settings, err := services.LoadEngineSettings(configStore)
	if err != nil {
		return nil, err
	}

	dsn := settings.Storage.DSN
	if opts.Ephemeral {
		dsn = storage.MemoryDSN
	}
	stores, err := storage.Open(ctx, dsn, dataDir, settings.Storage.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	logger.Debug("storage: %s", stores.Backend)

	builder, err := index.NewBuilder(settings.Index)
	if err != nil {
		stores.Close()
		return nil, err
	}

	// Semantic search is optional, so a broken provider config only disables it.
	embedder, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		logger.Warn("embedding disabled: %v", err)
		embedder = nil
	}

	engine, err := services.NewEngine(settings, stores.Embeddings, builder, embedder)
	if err != nil {
		stores.Close()
		if embedder != nil {
			embedder.Close()
		}
		return nil, err
	}

	if opts.Warm && settings.Index.WarmOnStart {
		if err := engine.Warm(ctx); err != nil {
			logger.Warn("searches fall back to exact scans until the next rebuild: %v", err)
		}
	}

	return &cli.Services{
		Vectors:     engine.Vectors,
		Search:      engine.Search,
		Defaults:    engine.Search,
		Maintenance: engine.Maintenance,
		Settings:    services.NewSettingsService(configStore, ai.NewConfigValidator()),
		Scheduler:   services.NewScheduler(settings.Scheduler, stores.Scheduler, engine.Maintenance, settings.CleanupMaxAge),
		Watch:       watch,
		Close:       engine.Close,
	}, nil
}

// homeDir returns $SIMMATCH_HOME or ~/.simmatch.
func homeDir() (string, error) {
	if dir := os.Getenv(homeEnv); dir != "" {
		return dir, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Join(errors.New("cannot locate home directory, set "+homeEnv), err)
	}
	return filepath.Join(userHome, ".simmatch"), nil
}
