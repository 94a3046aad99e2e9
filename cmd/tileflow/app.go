package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/internal/logging"
	"github.com/rendis/tileflow/internal/metrics"
	"github.com/rendis/tileflow/internal/service"
	"github.com/rendis/tileflow/internal/store"
	"github.com/rendis/tileflow/pkg/schema"
)

// app is the wiring shared by every command.
type app struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Registry
	store   *store.LibSQLStore
	svc     *service.Service
}

type appOptions struct {
	store   bool
	metrics bool
}

// newApp loads the configuration and wires logger, layout engine, optional
// metrics and store, and the service. Logs go to stderr.
func newApp(ctx context.Context, cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg := loadConfig()
	applyFlags(cmd, &cfg)
	return buildApp(ctx, cfg, os.Stderr, opts)
}

func buildApp(ctx context.Context, cfg Config, logOut io.Writer, opts appOptions) (*app, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logging.New(level, cfg.LogFormat, logOut)}

	layoutOpts := []layout.Option{
		layout.WithMaxPaths(cfg.MaxPaths),
		layout.WithMaxSteps(cfg.MaxSteps),
		layout.WithLogger(a.logger),
	}
	if opts.metrics && cfg.Metrics {
		if a.metrics, err = metrics.NewRegistry(); err != nil {
			return nil, err
		}
		layoutOpts = append(layoutOpts, layout.WithObserver(a.metrics.Layout))
	}

	deps := service.Deps{Layout: layout.NewEngine(layoutOpts...), Logger: a.logger}
	if opts.store {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		if a.store, err = store.NewLibSQLStore("file:" + cfg.DBPath); err != nil {
			return nil, err
		}
		if err := a.store.Migrate(ctx); err != nil {
			_ = a.store.Close()
			return nil, fmt.Errorf("migrate store: %w", err)
		}
		deps.Store = a.store
	}

	if a.svc, err = service.New(deps); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// loadDefinition reads a definition file, or stdin for "-". Stdin is
// decoded as YAML when format is yaml, JSON otherwise.
func loadDefinition(path string, stdin io.Reader, format string) (*schema.WorkflowDefinition, error) {
	if path != "-" {
		return schema.LoadDefinitionFile(path)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read definition from stdin: %w", err)
	}
	return schema.DecodeDefinition(data, schema.Format(format))
}

// writeOutput writes data to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func addStoredFlags(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "use a stored definition instead of a file")
	cmd.Flags().Int("version", 0, "stored definition version (default latest)")
}

// commandDefinition resolves the definition a command works on: the stored
// one named by --id, or the file argument.
func commandDefinition(cmd *cobra.Command, a *app, args []string, stdinFormat string) (*schema.WorkflowDefinition, error) {
	id, _ := cmd.Flags().GetString("id")
	if id != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("pass either a definition file or --id, not both")
		}
		version, _ := cmd.Flags().GetInt("version")
		return a.svc.Resolve(cmd.Context(), service.Ref{ID: id, Version: version})
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("a definition file (or - for stdin) is required")
	}
	return loadDefinition(args[0], cmd.InOrStdin(), stdinFormat)
}
