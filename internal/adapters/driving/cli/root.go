// Package cli provides the simmatch command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
	"github.com/custodia-labs/simmatch/internal/logger"
)

// version is set at build time.
var version = "dev"

// Services are the ports the commands drive.
type Services struct {
	Vectors     driving.VectorService
	Search      driving.SearchService
	Defaults    driving.SearchDefaults
	Maintenance driving.MaintenanceService
	Settings    driving.SettingsService
	Scheduler   driving.Scheduler

	// Watch blocks until ctx ends, calling onChange after each config reload.
	// Nil when the config source cannot be watched.
	Watch func(ctx context.Context, onChange func()) error

	// Close releases everything the services hold.
	Close func() error
}

// Options are the global flags handed to the bootstrap function.
type Options struct {
	ConfigDir string
	DataDir   string
	Ephemeral bool

	// Warm asks for every index to be built before the command runs.
	Warm bool
}

// BootstrapFunc builds the services for a command run.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, error)

var (
	vectorService      driving.VectorService
	searchService      driving.SearchService
	searchDefaults     driving.SearchDefaults
	maintenanceService driving.MaintenanceService
	settingsService    driving.SettingsService
	schedulerService   driving.Scheduler
	watchConfig        func(ctx context.Context, onChange func()) error
	closeServices      func() error

	bootstrap BootstrapFunc
	options   Options
	verbose   bool
)

// Command annotations read by setup.
const (
	// skipBootstrap marks commands that run without services.
	skipBootstrap = "skip-bootstrap"

	// warmIndexes marks long-running commands that build indexes up front.
	warmIndexes = "warm-indexes"
)

var rootCmd = &cobra.Command{
	Use:   "simmatch",
	Short: "Embedding store and similarity search",
	Long: `simmatch stores embedding vectors for résumés, jobs, companies and other
content, and ranks them by cosine similarity.

Vectors are kept in SQLite by default, or PostgreSQL with pgvector when
storage.dsn is a postgres:// URL. Each content type has its own HNSW or IVF
index, rebuilt in the background and bypassed by an exact scan when stale.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
	rootCmd.PersistentFlags().StringVar(&options.ConfigDir, "config-dir", "", "directory holding config.toml (default ~/.simmatch)")
	rootCmd.PersistentFlags().StringVar(&options.DataDir, "data-dir", "", "directory holding the SQLite database (default ~/.simmatch/data)")
	rootCmd.PersistentFlags().BoolVar(&options.Ephemeral, "ephemeral", false, "keep records in memory only")
}

// SetServices installs services directly, bypassing bootstrap.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	vectorService = s.Vectors
	searchService = s.Search
	searchDefaults = s.Defaults
	maintenanceService = s.Maintenance
	settingsService = s.Settings
	schedulerService = s.Scheduler
	watchConfig = s.Watch
	closeServices = s.Close
}

// SetBootstrap sets the function that builds services before each command.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command and releases bootstrapped services,
// whether or not the command succeeded.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	return errors.Join(err, teardown())
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || cmd.Annotations[skipBootstrap] == "true" {
		return nil
	}

	opts := options
	opts.Warm = cmd.Annotations[warmIndexes] == "true"
	s, err := bootstrap(cmd.Context(), opts)
	if err != nil {
		return err
	}
	SetServices(s)
	return nil
}

func teardown() error {
	if bootstrap == nil || closeServices == nil {
		return nil
	}
	err := closeServices()
	SetServices(nil)
	if err != nil {
		return fmt.Errorf("closing services: %w", err)
	}
	return nil
}

// errNotConfigured is returned when a command runs without its service.
func errNotConfigured(name string) error {
	return errors.New(name + " service not configured")
}
