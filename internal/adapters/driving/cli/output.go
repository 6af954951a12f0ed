package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func printResults(cmd *cobra.Command, results []domain.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]
		cmd.Printf("  [%d] %s/%s (%.4f)\n", i+1, r.ContentType, r.ContentID, r.SimilarityScore)
		printMetadata(cmd, r.Metadata)
		if r.Vector != nil {
			cmd.Printf("      vector: %v\n", r.Vector)
		}
	}
}

func printRecord(cmd *cobra.Command, rec *domain.EmbeddingRecord) {
	cmd.Printf("%s/%s\n", rec.ContentType, rec.ContentID)
	cmd.Printf("  Dimension: %d\n", len(rec.Vector))
	if rec.ModelVersion != "" {
		cmd.Printf("  Model: %s\n", rec.ModelVersion)
	}
	cmd.Printf("  Created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated: %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	printMetadata(cmd, rec.Metadata)
}

// printMetadata prints keys in sorted order.
func printMetadata(cmd *cobra.Command, m map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		cmd.Printf("      %s: %v\n", k, m[k])
	}
}
