package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

var (
	upsertVector     string
	upsertVectorFile string
	upsertMetadata   string
	upsertModel      string
	upsertJSON       bool
	getJSON          bool
)

var upsertCmd = &cobra.Command{
	Use:   "upsert <type> <id>",
	Short: "Store an embedding",
	Long: `Stores an embedding for a piece of content, replacing any existing record
with the same type and id. The vector length must match the dimension
configured for the content type.

Examples:
  simmatch upsert job j-42 --vector "[0.1, 0.2, 0.3]" --metadata '{"title":"Go Engineer"}'
  simmatch upsert resume r-7 --vector-file resume.json --model nomic-embed-text`,
	Args: cobra.ExactArgs(2),
	RunE: runUpsert,
}

var getCmd = &cobra.Command{
	Use:   "get <type> <id>",
	Short: "Show a stored embedding",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <type> <id>",
	Short: "Delete a stored embedding",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

func init() {
	upsertCmd.Flags().StringVar(&upsertVector, "vector", "", "vector as a JSON array or comma-separated floats")
	upsertCmd.Flags().StringVar(&upsertVectorFile, "vector-file", "", "file holding the vector (- for stdin)")
	upsertCmd.Flags().StringVar(&upsertMetadata, "metadata", "", "metadata as a JSON object")
	upsertCmd.Flags().StringVar(&upsertModel, "model", "", "model that produced the vector")
	upsertCmd.Flags().BoolVar(&upsertJSON, "json", false, "output the stored record as JSON")
	getCmd.Flags().BoolVar(&getJSON, "json", false, "output the record as JSON")

	rootCmd.AddCommand(upsertCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runUpsert(cmd *cobra.Command, args []string) error {
	if vectorService == nil {
		return errNotConfigured("vector")
	}

	key, err := parseKey(args[0], args[1])
	if err != nil {
		return err
	}
	vec, err := readVector(cmd, upsertVector, upsertVectorFile)
	if err != nil {
		return err
	}
	meta, err := parseMetadata(upsertMetadata)
	if err != nil {
		return err
	}

	stored, err := vectorService.Upsert(cmd.Context(), &domain.EmbeddingRecord{
		ContentID:    key.ContentID,
		ContentType:  key.ContentType,
		Vector:       vec,
		Metadata:     meta,
		ModelVersion: upsertModel,
	})
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}

	if upsertJSON {
		return printJSON(cmd, stored)
	}
	cmd.Printf("Stored %s (%d dimensions)\n", key, len(stored.Vector))
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	if vectorService == nil {
		return errNotConfigured("vector")
	}

	key, err := parseKey(args[0], args[1])
	if err != nil {
		return err
	}

	rec, err := vectorService.Get(cmd.Context(), key)
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	if getJSON {
		return printJSON(cmd, rec)
	}
	printRecord(cmd, rec)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if vectorService == nil {
		return errNotConfigured("vector")
	}

	key, err := parseKey(args[0], args[1])
	if err != nil {
		return err
	}

	if err := vectorService.Delete(cmd.Context(), key); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Deleted %s\n", key)
	return nil
}
