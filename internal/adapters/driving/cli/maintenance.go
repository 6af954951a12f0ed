package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

var (
	cleanupMaxAge time.Duration
	statsJSON     bool
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [type]",
	Short: "Rebuild similarity indexes",
	Long: `Rebuilds the ANN index for one content type, or for every type when
none is given. Searches keep using the previous index until the new one
is swapped in.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRebuild,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old embeddings",
	Long: `Deletes records not updated within --max-age and rebuilds the indexes
of the affected content types before returning. Without --max-age the
configured maintenance.max_age is used.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store and index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupMaxAge, "max-age", 0, "remove records older than this (e.g. 720h)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")

	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statsCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	if maintenanceService == nil {
		return errNotConfigured("maintenance")
	}

	start := time.Now()
	if len(args) == 0 {
		if err := maintenanceService.RebuildAll(cmd.Context()); err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
		cmd.Printf("Rebuilt all indexes in %v\n", time.Since(start).Round(time.Millisecond))
		return nil
	}

	ct, err := domain.ParseContentType(args[0])
	if err != nil {
		return err
	}
	if err := maintenanceService.Rebuild(cmd.Context(), ct); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	cmd.Printf("Rebuilt %s index in %v\n", ct, time.Since(start).Round(time.Millisecond))
	return nil
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errNotConfigured("maintenance")
	}

	maxAge := cleanupMaxAge
	if !cmd.Flags().Changed("max-age") {
		if settingsService == nil {
			return errNotConfigured("settings")
		}
		settings, err := settingsService.Get()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		maxAge = settings.CleanupMaxAge
	}

	removed, err := maintenanceService.Cleanup(cmd.Context(), maxAge)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	cmd.Printf("Removed %d records older than %v\n", removed, maxAge)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errNotConfigured("maintenance")
	}

	stats, err := maintenanceService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	if statsJSON {
		return printJSON(cmd, stats)
	}

	cmd.Println("[Store]")
	cmd.Printf("  Records: %d\n", stats.Store.Total)
	cmd.Printf("  Size: %d bytes\n", stats.Store.SizeBytes)
	if !stats.Store.LatestUpdate.IsZero() {
		cmd.Printf("  Latest update: %s\n", stats.Store.LatestUpdate.Format(time.RFC3339))
	}
	cmd.Println()

	cmd.Println("[Indexes]")
	types := make([]domain.ContentType, 0, len(stats.Index))
	for ct := range stats.Index {
		types = append(types, ct)
	}
	slices.Sort(types)
	for _, ct := range types {
		idx := stats.Index[ct]
		state := "fresh"
		switch {
		case idx.SnapshotID == "":
			state = "not built"
		case idx.Rebuilding:
			state = "rebuilding"
		case !idx.Fresh:
			state = "stale"
		}
		cmd.Printf("  %-8s %d records, %d indexed (%s, %s), %d fallbacks\n",
			ct, stats.Store.Counts[ct], idx.Entries, idx.Kind, state, idx.Fallbacks)
	}
	return nil
}
