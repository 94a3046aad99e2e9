package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tileflow",
	Short: "Tileflow lays out workflow diagrams on a grid",
	Long: `Tileflow computes grid coordinates for the tiles of a workflow diagram by
enumerating every execution path, and renders the result as ASCII, Mermaid
or PNG. The same operations are served over HTTP (serve) and MCP (mcp).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("db-path", "", "definition store path (default: ~/.tileflow/tileflow.db)")
	rootCmd.PersistentFlags().Int("max-paths", 4096, "ceiling on enumerated decision sequences")
}
