package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/simmatch/internal/logger"
)

var serveCmd = &cobra.Command{
	Annotations: map[string]string{warmIndexes: "true"},
	Use:         "serve",
	Short:       "Run scheduled maintenance",
	Long: `Runs the background scheduler, which periodically rebuilds indexes and
removes old embeddings, until interrupted. Changes to the search section
of config.toml are applied without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if schedulerService == nil {
		return errNotConfigured("scheduler")
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return schedulerService.Start(ctx)
	})
	if watchConfig != nil {
		g.Go(func() error {
			return watchConfig(ctx, applySearchDefaults)
		})
	}

	cmd.Println("Scheduler running. Press Ctrl+C to stop.")
	<-ctx.Done()
	if err := schedulerService.Stop(); err != nil {
		logger.Warn("scheduler stop: %v", err)
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// applySearchDefaults pushes the reloaded search defaults to the engine.
func applySearchDefaults() {
	if settingsService == nil || searchDefaults == nil {
		return
	}
	settings, err := settingsService.Get()
	if err != nil {
		logger.Warn("ignoring config change: %v", err)
		return
	}
	if err := searchDefaults.SetDefaults(settings.Search.Threshold, settings.Search.DefaultLimit); err != nil {
		logger.Warn("ignoring search defaults: %v", err)
		return
	}
	logger.Info("search defaults updated: threshold=%.2f limit=%d",
		settings.Search.Threshold, settings.Search.DefaultLimit)
}
