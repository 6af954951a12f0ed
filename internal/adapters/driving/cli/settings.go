package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage engine settings",
	Long: `View and change dimensions, search defaults, the index variant and the
embedding provider. Settings are stored in config.toml.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Set search defaults",
	Long: `Sets the similarity threshold and result limit used when a query does
not give its own. A running 'simmatch serve' picks up the change.`,
	Args: cobra.NoArgs,
	RunE: runSettingsSearch,
}

var settingsIndexCmd = &cobra.Command{
	Use:   "index <kind>",
	Short: "Select the ANN index variant",
	Long: `Selects the approximate nearest neighbour index.

Available kinds:
  hnsw - Hierarchical navigable small world graph (default)
  ivf  - Inverted file over k-means partitions`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsIndex,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Restore the default for one setting",
	Example: `  simmatch settings reset search.similarity_threshold
  simmatch settings reset vector.dimensions.resume`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsReset,
}

var settingsDimensionCmd = &cobra.Command{
	Use:   "dimension <type> <size>",
	Short: "Set the vector length for a content type",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsDimension,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding <provider>",
	Short: "Configure embedding provider",
	Long: `Configures the provider used by 'simmatch semantic'.

Available providers:
  ollama - Local Ollama instance
  openai - OpenAI API (requires an API key)`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsEmbedding,
}

var (
	settingsThreshold float64
	settingsLimit     int
	embeddingModel    string
	embeddingAPIKey   string
	skipValidation    bool
)

func init() {
	settingsSearchCmd.Flags().Float64Var(&settingsThreshold, "threshold", 0, "default similarity threshold in [-1, 1]")
	settingsSearchCmd.Flags().IntVar(&settingsLimit, "limit", 0, "default result limit")
	settingsEmbeddingCmd.Flags().StringVar(&embeddingModel, "model", "", "model name (default depends on provider)")
	settingsEmbeddingCmd.Flags().StringVar(&embeddingAPIKey, "api-key", "", "API key (prompted when required and omitted)")
	settingsEmbeddingCmd.Flags().BoolVar(&skipValidation, "no-validate", false, "skip the connectivity check")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSearchCmd)
	settingsCmd.AddCommand(settingsIndexCmd)
	settingsCmd.AddCommand(settingsDimensionCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Storage]")
	dsn := settings.Storage.DSN
	if dsn == "" {
		dsn = "(sqlite in data directory)"
	}
	cmd.Printf("  DSN: %s\n", dsn)
	cmd.Printf("  Pool size: %d\n", settings.Storage.PoolSize)
	cmd.Println()

	cmd.Println("[Vectors]")
	cmd.Printf("  Default dimension: %d\n", settings.DefaultDimension)
	for _, ct := range domain.AllContentTypes() {
		if d, ok := settings.Dimensions[ct]; ok {
			cmd.Printf("  %s: %d\n", ct, d)
		}
	}
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Threshold: %.2f\n", settings.Search.Threshold)
	cmd.Printf("  Default limit: %d\n", settings.Search.DefaultLimit)
	cmd.Printf("  Max limit: %d\n", settings.Search.MaxLimit)
	cmd.Println()

	cmd.Println("[Index]")
	cmd.Printf("  Kind: %s\n", settings.Index.Kind.Description())
	cmd.Printf("  Warm on start: %t\n", settings.Index.WarmOnStart)
	cmd.Println()

	cmd.Println("[Embedding]")
	if !settings.Embedding.IsConfigured() {
		cmd.Println("  Status: not configured")
	} else {
		cmd.Printf("  Provider: %s\n", settings.Embedding.Provider)
		cmd.Printf("  Model: %s\n", settings.Embedding.Model)
		if settings.Embedding.BaseURL != "" {
			cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
		}
		if settings.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
		}
	}
	cmd.Println()

	cmd.Println("[Scheduler]")
	cmd.Printf("  Enabled: %t\n", settings.Scheduler.Enabled)
	for _, job := range domain.AllJobs() {
		printJob(cmd, job, settings.Scheduler.For(job))
	}
	cmd.Printf("  Cleanup max age: %v\n", settings.CleanupMaxAge)
	return nil
}

func printJob(cmd *cobra.Command, job domain.Job, cfg domain.JobConfig) {
	if !cfg.Active() {
		cmd.Printf("  %s: disabled\n", job.Label())
		return
	}
	cmd.Printf("  %s: every %v\n", job.Label(), cfg.Every)
}

func runSettingsSearch(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}
	if !cmd.Flags().Changed("threshold") && !cmd.Flags().Changed("limit") {
		return errors.New("nothing to change: pass --threshold and/or --limit")
	}

	current, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	threshold, limit := current.Search.Threshold, current.Search.DefaultLimit
	if cmd.Flags().Changed("threshold") {
		threshold = settingsThreshold
	}
	if cmd.Flags().Changed("limit") {
		limit = settingsLimit
	}

	if err := settingsService.SetSearchDefaults(threshold, limit); err != nil {
		return fmt.Errorf("failed to set search defaults: %w", err)
	}
	cmd.Printf("Search defaults set: threshold %.2f, limit %d\n", threshold, limit)
	return nil
}

func runSettingsIndex(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	kind := domain.IndexKind(strings.ToLower(args[0]))
	if !slices.Contains(domain.AllIndexKinds(), kind) {
		return fmt.Errorf("%w: unknown index kind %q", domain.ErrInvalidInput, args[0])
	}
	if err := settingsService.SetIndexKind(kind); err != nil {
		return fmt.Errorf("failed to set index kind: %w", err)
	}
	cmd.Printf("Index kind set to: %s\n", kind.Description())
	cmd.Println("Run 'simmatch rebuild' to rebuild existing indexes.")
	return nil
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}
	if err := settingsService.Reset(args[0]); err != nil {
		return fmt.Errorf("failed to reset %s: %w", args[0], err)
	}
	cmd.Printf("%s restored to its default\n", args[0])
	return nil
}

func runSettingsDimension(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	ct, err := domain.ParseContentType(args[0])
	if err != nil {
		return err
	}
	size, err := strconv.Atoi(args[1])
	if err != nil || size <= 0 {
		return fmt.Errorf("%w: dimension must be a positive integer", domain.ErrInvalidInput)
	}

	if err := settingsService.SetDimension(ct, size); err != nil {
		return fmt.Errorf("failed to set dimension: %w", err)
	}
	cmd.Printf("Dimension for %s set to %d\n", ct, size)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	provider := domain.AIProvider(strings.ToLower(args[0]))
	if !provider.IsValid() {
		return fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidInput, args[0])
	}

	apiKey := embeddingAPIKey
	if provider.RequiresAPIKey() && apiKey == "" {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin())
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(provider, embeddingModel, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	if !skipValidation {
		cmd.Print("Validating configuration... ")
		if err := settingsService.ValidateEmbeddingConfig(); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			return fmt.Errorf("embedding configuration validation failed: %w", err)
		}
		cmd.Println("OK")
	}

	cmd.Printf("Embedding provider configured: %s\n", provider)
	return nil
}

// Helper functions.

// readPassword reads without echo when in is a terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	input, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
