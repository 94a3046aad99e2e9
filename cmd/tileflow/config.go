package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

// Config holds all tileflow configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	ListenAddr string  `json:"listen_addr"`
	DBPath     string  `json:"db_path"`
	LogLevel   string  `json:"log_level"`
	LogFormat  string  `json:"log_format"`
	MaxPaths   int     `json:"max_paths"`
	MaxSteps   int     `json:"max_steps"`
	ScaleX     float64 `json:"scale_x"`
	ScaleY     float64 `json:"scale_y"`
	Metrics    bool    `json:"metrics"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: ":4200",
		DBPath:     filepath.Join(tileflowDir(), "tileflow.db"),
		LogLevel:   "info",
		LogFormat:  "text",
		MaxPaths:   4096,
		MaxSteps:   10000,
		ScaleX:     160,
		ScaleY:     96,
		Metrics:    true,
	}
}

func tileflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tileflow"
	}
	return filepath.Join(home, ".tileflow")
}

func settingsPath() string {
	if v := os.Getenv("TILEFLOW_SETTINGS"); v != "" {
		return v
	}
	return filepath.Join(tileflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("TILEFLOW_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TILEFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TILEFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TILEFLOW_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("TILEFLOW_MAX_PATHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPaths = n
		}
	}
	if v := os.Getenv("TILEFLOW_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSteps = n
		}
	}
	if v := os.Getenv("TILEFLOW_SCALE_X"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ScaleX = f
		}
	}
	if v := os.Getenv("TILEFLOW_SCALE_Y"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ScaleY = f
		}
	}
	if v := os.Getenv("TILEFLOW_METRICS"); v != "" {
		cfg.Metrics = v == "true" || v == "1"
	}

	return cfg
}

// applyFlags lets explicitly set persistent flags override cfg.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("db-path") {
		cfg.DBPath, _ = flags.GetString("db-path")
	}
	if flags.Changed("max-paths") {
		cfg.MaxPaths, _ = flags.GetInt("max-paths")
	}
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	LogLevelChanged bool
	LayoutChanged   bool
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.LogLevel != new.LogLevel || old.LogFormat != new.LogFormat {
		d.LogLevelChanged = true
	}
	if old.MaxPaths != new.MaxPaths || old.MaxSteps != new.MaxSteps {
		d.LayoutChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	if old.Metrics != new.Metrics {
		d.RestartNeeded = append(d.RestartNeeded, "metrics")
	}
	return d
}
