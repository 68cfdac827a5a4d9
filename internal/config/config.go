// Package config loads ttywebd's startup configuration.
//
// Values are layered in increasing priority: built-in defaults, an optional
// YAML config file, environment variables (TTYWEBD_*), and finally explicit
// command-line flags applied by the caller after Load returns.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TTYWEBD"

// Config holds everything the daemon needs to start serving.
type Config struct {
	Addr           string        `envconfig:"ADDR"`
	Port           int           `envconfig:"PORT"`
	Shell          string        `envconfig:"SHELL"`
	LogLevel       string        `envconfig:"LOG_LEVEL"`
	ReaperInterval time.Duration `envconfig:"REAPER_INTERVAL"`
	OrphanTimeout  time.Duration `envconfig:"ORPHAN_TIMEOUT"`
	MaxSessions    int           `envconfig:"MAX_SESSIONS"`
}

func defaultConfig() *Config {
	return &Config{
		Addr:           "127.0.0.1",
		Port:           9090,
		Shell:          "/bin/bash",
		LogLevel:       "info",
		ReaperInterval: 2 * time.Second,
		OrphanTimeout:  60 * time.Second,
		MaxSessions:    256,
	}
}

// Load builds a Config from defaults, an optional YAML file at configPath
// (ignored if empty), and TTYWEBD_* environment variables, in that order.
func Load(configPath string) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		if err := overlayFile(cfg, configPath); err != nil {
			return nil, err
		}
	}

	// envconfig only touches a field when a matching env var is present; it
	// leaves already-set fields alone when the var is absent, since none of
	// the tags above carry a `default`. That makes this a pure overlay on
	// top of the file/defaults step above.
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// yamlOverlay mirrors Config with pointer fields so the YAML decoder can
// tell "absent from the file" apart from "explicitly zero".
type yamlOverlay struct {
	Addr           *string `yaml:"addr"`
	Port           *int    `yaml:"port"`
	Shell          *string `yaml:"shell"`
	LogLevel       *string `yaml:"log_level"`
	ReaperInterval *string `yaml:"reaper_interval"`
	OrphanTimeout  *string `yaml:"orphan_timeout"`
	MaxSessions    *int    `yaml:"max_sessions"`
}

// overlayFile reads a YAML config file and applies only the fields it sets,
// leaving the rest of cfg (already carrying defaults) untouched.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if overlay.Addr != nil {
		cfg.Addr = *overlay.Addr
	}
	if overlay.Port != nil {
		cfg.Port = *overlay.Port
	}
	if overlay.Shell != nil {
		cfg.Shell = *overlay.Shell
	}
	if overlay.LogLevel != nil {
		cfg.LogLevel = *overlay.LogLevel
	}
	if overlay.ReaperInterval != nil {
		d, err := time.ParseDuration(*overlay.ReaperInterval)
		if err != nil {
			return fmt.Errorf("config file %s: reaper_interval: %w", path, err)
		}
		cfg.ReaperInterval = d
	}
	if overlay.OrphanTimeout != nil {
		d, err := time.ParseDuration(*overlay.OrphanTimeout)
		if err != nil {
			return fmt.Errorf("config file %s: orphan_timeout: %w", path, err)
		}
		cfg.OrphanTimeout = d
	}
	if overlay.MaxSessions != nil {
		cfg.MaxSessions = *overlay.MaxSessions
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Shell == "" {
		return fmt.Errorf("shell path is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.ReaperInterval < time.Second || cfg.ReaperInterval > 5*time.Second {
		return fmt.Errorf("reaper interval must be between 1s and 5s, got %s", cfg.ReaperInterval)
	}
	if cfg.OrphanTimeout <= 0 {
		return fmt.Errorf("orphan timeout must be positive, got %s", cfg.OrphanTimeout)
	}
	if cfg.MaxSessions < 0 {
		return fmt.Errorf("max sessions must be >= 0 (0 means unbounded), got %d", cfg.MaxSessions)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	return nil
}
