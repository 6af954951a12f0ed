// Package driving holds the interfaces the CLI, TUI and MCP adapters call
// into. internal/core/services implements them.
package driving
