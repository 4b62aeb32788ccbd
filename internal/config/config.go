// Package config provides unified configuration loading for qsim.
// It supports loading from YAML files and environment variables.
// Settings are resolved once at process start and passed explicitly
// into the backend and store constructors.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config contains all qsim configuration settings.
type Config struct {
	// Backend contains settings for the numeric execution engine.
	Backend BackendConfig `json:"backend" yaml:"backend"`

	// Store contains settings for run-history persistence.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// BackendConfig configures the numeric engine a circuit executes on.
type BackendConfig struct {
	// Engine selects the implementation: "naive" (default) or "parallel".
	Engine string `json:"engine" yaml:"engine"`

	// Device is the preferred execution device, e.g. "cpu:0".
	// Empty selects the engine's default.
	Device string `json:"device,omitempty" yaml:"device,omitempty"`

	// Workers bounds amplitude-loop and shot parallelism for the
	// parallel engine. Zero means one worker per CPU.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// MaxStateBytes bounds a single state allocation. Zero means
	// unlimited. Exceeding it fails execution with a device memory
	// error instead of exhausting the host.
	MaxStateBytes int64 `json:"max_state_bytes,omitempty" yaml:"max_state_bytes,omitempty"`
}

// StoreConfig configures the run-history database.
type StoreConfig struct {
	// Path is the SQLite database location. Empty defaults to
	// ~/.qsim/runs.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Disabled turns off run persistence entirely.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// LoggingConfig configures qsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or
	// "trace". "debug" enables the per-gate execution trace.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Engine: "naive",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment
// variables. Order: defaults -> ~/.qsim/config.yaml -> environment.
func Load() (*Config, error) {
	cfg := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(homeDir, ".qsim", "config.yaml")
		if _, statErr := os.Stat(path); statErr == nil {
			fileCfg, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			cfg = fileCfg
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	validEngines := map[string]bool{"": true, "naive": true, "parallel": true}
	if !validEngines[c.Backend.Engine] {
		return fmt.Errorf("invalid engine: %s (valid: naive, parallel, or empty for default)", c.Backend.Engine)
	}

	if c.Backend.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Backend.Workers)
	}
	if c.Backend.MaxStateBytes < 0 {
		return fmt.Errorf("max_state_bytes must be non-negative, got %d", c.Backend.MaxStateBytes)
	}

	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies QSIM_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QSIM_ENGINE"); v != "" {
		cfg.Backend.Engine = v
	}
	if v := os.Getenv("QSIM_DEVICE"); v != "" {
		cfg.Backend.Device = v
	}
	if v := os.Getenv("QSIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.Workers = n
		}
	}
	if v := os.Getenv("QSIM_MAX_STATE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Backend.MaxStateBytes = n
		}
	}
	if v := os.Getenv("QSIM_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("QSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// StorePath resolves the run-history database location.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving store path: %w", err)
	}
	return filepath.Join(homeDir, ".qsim", "runs.db"), nil
}
