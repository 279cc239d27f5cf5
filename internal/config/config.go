// Package config loads and validates the stacfan gateway configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/geoplex/stacfan/internal/errors"
)

// Config is the complete gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Logging  LoggingConfig  `yaml:"logging"`

	// SourcesFile is the path to the datasource registry yaml.
	SourcesFile string `yaml:"sources_file"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
	// BackendTimeout bounds each backend HTTP call. It is a transport
	// limit only; the fan-out barrier itself never times out.
	BackendTimeout time.Duration `yaml:"backend_timeout"`
	// ShutdownGrace is how long graceful shutdown waits for in-flight
	// requests.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// DispatchConfig configures the fan-out dispatcher and merger.
type DispatchConfig struct {
	// OnBackendFailure selects the merge policy when a backend fails:
	// "abort" rejects the whole response, "partial" merges the
	// successes and reports failures in the response.
	OnBackendFailure string `yaml:"on_backend_failure"`
	// MaxConcurrent bounds in-flight backend calls; 0 means unbounded.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			BackendTimeout: 30 * time.Second,
			ShutdownGrace:  10 * time.Second,
		},
		Dispatch: DispatchConfig{
			OnBackendFailure: "abort",
			MaxConcurrent:    0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		SourcesFile: "sources.yaml",
	}
}

// Load reads the config file at path, layering it over the defaults and
// then applying STACFAN_* environment overrides. An empty path skips the
// file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.New(errors.ErrCodeConfigNotFound,
				fmt.Sprintf("read config %s: %v", path, err), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("parse config %s: %v", path, err), err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies STACFAN_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STACFAN_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("STACFAN_SOURCES_FILE"); v != "" {
		c.SourcesFile = v
	}
	if v := os.Getenv("STACFAN_ON_BACKEND_FAILURE"); v != "" {
		c.Dispatch.OnBackendFailure = v
	}
	if v := os.Getenv("STACFAN_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dispatch.MaxConcurrent = n
		}
	}
	if v := os.Getenv("STACFAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STACFAN_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Server.BackendTimeout = d
		}
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.ConfigError("server.addr must not be empty", nil)
	}
	if c.SourcesFile == "" {
		return errors.ConfigError("sources_file must not be empty", nil)
	}
	switch c.Dispatch.OnBackendFailure {
	case "abort", "partial":
	default:
		return errors.ConfigError(
			fmt.Sprintf("dispatch.on_backend_failure must be abort or partial, got %q",
				c.Dispatch.OnBackendFailure), nil)
	}
	if c.Dispatch.MaxConcurrent < 0 {
		return errors.ConfigError("dispatch.max_concurrent must not be negative", nil)
	}
	if c.Server.BackendTimeout < 0 {
		return errors.ConfigError("server.backend_timeout must not be negative", nil)
	}
	return nil
}
