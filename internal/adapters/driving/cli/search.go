package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// queryFlags are shared by search, match and semantic.
type queryFlags struct {
	limit         int
	threshold     float64
	includeVector bool
	json          bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "maximum number of results (0 = configured default)")
	cmd.Flags().Float64VarP(&f.threshold, "threshold", "t", 0, "minimum similarity score (default from settings)")
	cmd.Flags().BoolVar(&f.includeVector, "include-vector", false, "include stored vectors in results")
	cmd.Flags().BoolVar(&f.json, "json", false, "output results as JSON")
}

// options converts the flags. The threshold applies only when set explicitly.
func (f *queryFlags) options(cmd *cobra.Command) domain.SearchOptions {
	opts := domain.SearchOptions{
		Limit:         f.limit,
		IncludeVector: f.includeVector,
	}
	if cmd.Flags().Changed("threshold") {
		opts = opts.WithThreshold(f.threshold)
	}
	return opts
}

func (f *queryFlags) output(cmd *cobra.Command, results []domain.SearchResult) error {
	if f.json {
		if results == nil {
			results = []domain.SearchResult{}
		}
		return printJSON(cmd, results)
	}
	printResults(cmd, results)
	return nil
}

var (
	searchFlags      queryFlags
	searchVector     string
	searchVectorFile string
	matchFlags       queryFlags
	semanticFlags    queryFlags
)

var searchCmd = &cobra.Command{
	Use:   "search <type>",
	Short: "Find records similar to a vector",
	Long: `Ranks records of one content type by cosine similarity to a query vector.
Results below the similarity threshold are dropped; the rest are returned
best first.

Examples:
  simmatch search job --vector "[0.1, 0.2, 0.3]" --limit 5
  simmatch search resume --vector-file query.json --threshold 0.8 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var matchCmd = &cobra.Command{
	Use:   "match <source-type> <source-id> <target-type>",
	Short: "Find records similar to a stored record",
	Long: `Uses the stored vector of one record as the query against another
content type. When source and target types are the same the source record
is left out of the results.

Example:
  simmatch match resume r-7 job --limit 10`,
	Args: cobra.ExactArgs(3),
	RunE: runMatch,
}

var semanticCmd = &cobra.Command{
	Use:   "semantic <type> <text>...",
	Short: "Find records similar to free text",
	Long: `Embeds the text with the configured embedding provider and searches
with the resulting vector. Requires an embedding provider; see
'simmatch settings embedding'.

Example:
  simmatch semantic job "senior Go engineer, distributed systems"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSemantic,
}

func init() {
	searchFlags.register(searchCmd)
	searchCmd.Flags().StringVar(&searchVector, "vector", "", "query vector as a JSON array or comma-separated floats")
	searchCmd.Flags().StringVar(&searchVectorFile, "vector-file", "", "file holding the query vector (- for stdin)")
	matchFlags.register(matchCmd)
	semanticFlags.register(semanticCmd)

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(semanticCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errNotConfigured("search")
	}

	ct, err := domain.ParseContentType(args[0])
	if err != nil {
		return err
	}
	vec, err := readVector(cmd, searchVector, searchVectorFile)
	if err != nil {
		return err
	}

	results, err := searchService.Search(cmd.Context(), vec, ct, searchFlags.options(cmd))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return searchFlags.output(cmd, results)
}

func runMatch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errNotConfigured("search")
	}

	source, err := parseKey(args[0], args[1])
	if err != nil {
		return err
	}
	target, err := domain.ParseContentType(args[2])
	if err != nil {
		return err
	}

	results, err := searchService.Match(cmd.Context(), source, target, matchFlags.options(cmd))
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}
	return matchFlags.output(cmd, results)
}

func runSemantic(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errNotConfigured("search")
	}

	ct, err := domain.ParseContentType(args[0])
	if err != nil {
		return err
	}
	text := strings.Join(args[1:], " ")

	results, err := searchService.SemanticSearch(cmd.Context(), text, ct, semanticFlags.options(cmd))
	if err != nil {
		return fmt.Errorf("semantic search failed: %w", err)
	}
	return semanticFlags.output(cmd, results)
}
