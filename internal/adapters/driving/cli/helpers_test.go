package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/adapters/driven/index/hnsw"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/services"
)

// testEnv is an engine over in-memory stores wired into the CLI globals.
type testEnv struct {
	engine   *services.Engine
	config   *memory.ConfigStore
	settings *services.SettingsService
}

// setupTestServices installs 3-d services and restores the globals on cleanup.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	config := memory.NewConfigStore(map[string]any{
		"vector.dimension":            3,
		"search.similarity_threshold": 0.5,
		"maintenance.max_age":         "24h",
	})
	settingsSvc := services.NewSettingsService(config, nil)
	settings, err := settingsSvc.Get()
	require.NoError(t, err)

	engine, err := services.NewEngine(*settings, memory.NewEmbeddingStore(), hnsw.NewBuilder(hnsw.Options{Seed: 1}), nil)
	require.NoError(t, err)

	SetServices(&Services{
		Vectors:     engine.Vectors,
		Search:      engine.Search,
		Defaults:    engine.Search,
		Maintenance: engine.Maintenance,
		Settings:    settingsSvc,
	})
	t.Cleanup(func() {
		SetServices(nil)
		_ = engine.Close()
	})
	return &testEnv{engine: engine, config: config, settings: settingsSvc}
}

func (e *testEnv) upsert(t *testing.T, ct domain.ContentType, id string, vec []float32, meta map[string]any) {
	t.Helper()
	_, err := e.engine.Vectors.Upsert(context.Background(), &domain.EmbeddingRecord{
		ContentID: id, ContentType: ct, Vector: vec, Metadata: meta,
	})
	require.NoError(t, err)
}

// execute runs the root command with args and returns combined output.
// Flag values are reset afterwards so runs do not leak into each other.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	// Cobra only hands the root context to subcommands without one, so
	// clear it or later runs inherit this run's canceled context.
	cmd.SetContext(nil)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
