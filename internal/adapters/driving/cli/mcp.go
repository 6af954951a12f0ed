package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/simmatch/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Annotations: map[string]string{warmIndexes: "true"},
	Use:         "serve",
	Short:       "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search
stored embeddings.

By default the server communicates over stdio using JSON-RPC. Use --port
to serve streamable HTTP instead, for example to test with MCP Inspector.

Tools: search, match, semantic_search, stats
Resources: simmatch://stats, simmatch://records/{contentType}/{contentId}

Examples:
  # Stdio mode
  simmatch mcp serve

  # HTTP mode
  simmatch mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Search:      searchService,
		Vectors:     vectorService,
		Maintenance: maintenanceService,
		Scheduler:   schedulerService,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
