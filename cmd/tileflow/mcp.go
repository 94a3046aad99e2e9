package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	tfmcp "github.com/rendis/tileflow/pkg/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol server",
	Long: `Exposes define, layout, diagram, query and validate as MCP tools.

Transports:
- stdio (default): JSON-RPC over standard input/output. Logs go to stderr.
- sse: Server-Sent Events over HTTP on --addr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cmd, appOptions{store: true})
		if err != nil {
			return err
		}
		defer a.Close()

		srv := tfmcp.NewTileflowServer(tfmcp.TileflowServerDeps{
			Service: a.svc,
			Logger:  a.logger,
			Version: version,
		})

		switch transport {
		case "stdio":
			a.logger.Info("tileflow MCP server started", "transport", transport, "db", a.cfg.DBPath)
			if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case "sse":
			err := srv.ServeSSE(ctx, addr, "http://localhost"+addr)
			if errors.Is(err, http.ErrServerClosed) {
				a.logger.Info("tileflow MCP server stopped")
				return nil
			}
			return err
		default:
			return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "transport: stdio or sse")
	mcpCmd.Flags().String("addr", ":4201", "listen address for the sse transport")
}
