package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/tileflow/internal/httpapi"
	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/internal/logging"
	"github.com/rendis/tileflow/internal/service"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serves layouts, diagrams, validation and stored definitions over HTTP.

SIGHUP reloads settings.json and the environment: log level and format and
layout limits apply immediately, listen address, database path and metrics
need a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd, appOptions{store: true, metrics: true})
		if err != nil {
			return err
		}
		defer a.Close()
		if cmd.Flags().Changed("addr") {
			a.cfg.ListenAddr, _ = cmd.Flags().GetString("addr")
		}

		if err := writePidFile(); err != nil {
			a.logger.Warn("pidfile not written", "error", err)
		}
		defer os.Remove(pidPath())

		swapper := newHandlerSwapper(a.handler())
		srv := httpapi.NewHTTPServer(a.cfg.ListenAddr, swapper)

		serverErrors := make(chan error, 1)
		go func() {
			a.logger.Info("tileflow server listening", "addr", srv.Addr, "db", a.cfg.DBPath, "version", version)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		for {
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)

			case <-hup:
				next := loadConfig()
				applyFlags(cmd, &next)
				next.ListenAddr = a.cfg.ListenAddr
				if err := a.reload(next); err != nil {
					a.logger.Error("reload failed", "error", err)
					continue
				}
				swapper.Swap(a.handler())
				a.logger.Info("router reloaded", "generation", swapper.Generation())

			case sig := <-shutdown:
				a.logger.Info("shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					a.logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
					return srv.Close()
				}
				a.logger.Info("tileflow server stopped")
				return nil
			}
		}
	},
}

func (a *app) handler() http.Handler {
	return httpapi.NewServer(httpapi.Deps{Service: a.svc, Metrics: a.metrics, Logger: a.logger}).Handler()
}

// reload applies cfg to a running app. The store and metrics registry are
// kept; a new logger, layout engine and service replace the old ones.
func (a *app) reload(cfg Config) error {
	diff := diffConfigs(a.cfg, cfg)
	for _, field := range diff.RestartNeeded {
		a.logger.Warn("setting changed, restart to apply", "field", field)
	}
	if !diff.LogLevelChanged && !diff.LayoutChanged {
		a.logger.Info("configuration reloaded, nothing to apply")
		return nil
	}

	logger := a.logger
	if diff.LogLevelChanged {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = logging.New(level, cfg.LogFormat, os.Stderr)
	}
	opts := []layout.Option{
		layout.WithMaxPaths(cfg.MaxPaths),
		layout.WithMaxSteps(cfg.MaxSteps),
		layout.WithLogger(logger),
	}
	if a.metrics != nil {
		opts = append(opts, layout.WithObserver(a.metrics.Layout))
	}
	deps := service.Deps{Layout: layout.NewEngine(opts...), Logger: logger}
	if a.store != nil {
		deps.Store = a.store
	}
	svc, err := service.New(deps)
	if err != nil {
		return err
	}

	// Restart-only fields keep their running values.
	cfg.DBPath, cfg.Metrics = a.cfg.DBPath, a.cfg.Metrics
	a.cfg, a.logger, a.svc = cfg, logger, svc
	a.logger.Info("configuration reloaded",
		"log_level", cfg.LogLevel,
		"max_paths", cfg.MaxPaths,
		"max_steps", cfg.MaxSteps,
	)
	return nil
}

func pidPath() string {
	return filepath.Join(tileflowDir(), "tileflow.pid")
}

func writePidFile() error {
	if err := os.MkdirAll(filepath.Dir(pidPath()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default from config, :4200)")
}
