package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/tui"
	"github.com/custodia-labs/simmatch/internal/logger"
)

// runApp starts the terminal UI. Tests replace it to avoid taking over the terminal.
var runApp = func(app *tui.App) error { return app.Run() }

var tuiCmd = &cobra.Command{
	Annotations: map[string]string{warmIndexes: "true"},
	Use:         "tui",
	Short:       "Browse embeddings in an interactive terminal UI",
	Long: `Launch the interactive terminal UI.

Type a query and press enter. The query form picks the search:
  [0.1, 0.2, ...]   search with a literal vector
  job/j-17          match using the stored vector of a record
  any other text    semantic search (needs an embedding provider)

Controls:
  tab       - Change the content type being searched
  ↑/k, ↓/j  - Navigate results
  enter     - Search / open record
  m         - Match from the selected result
  esc       - Back
  ctrl+c    - Quit

The background scheduler runs while the UI is open.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	app, err := tui.NewApp(&tui.Ports{
		Search:      searchService,
		Vectors:     vectorService,
		Maintenance: maintenanceService,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if schedulerService != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := schedulerService.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("scheduler stopped: %v", err)
			}
		}()
		defer func() {
			cancel()
			if err := schedulerService.Stop(); err != nil {
				logger.Warn("scheduler stop: %v", err)
			}
			<-done
		}()
	}

	app.WithContext(ctx)
	if err := runApp(app); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
