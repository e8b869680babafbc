// ABOUTME: Optional settings file for the bridge (logging and database tuning)
// ABOUTME: Supports YAML or TOML with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Settings represents the bridge settings file
type Settings struct {
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "text" or "json"
}

// DatabaseConfig holds identity database configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (modernc) or "sqlite3" (mattn, cgo)
	Mode   string `yaml:"mode" toml:"mode"`     // "pooled" or "shared"

	BusyTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	BusyTimeoutRaw string `yaml:"busy_timeout" toml:"busy_timeout"`
}

// DefaultSettings returns the settings used when no file exists
func DefaultSettings() *Settings {
	return &Settings{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			Mode:        "pooled",
			BusyTimeout: 5 * time.Second,
		},
	}
}

// LoadSettings reads the settings file at path on top of DefaultSettings.
// A missing file is not an error. Files ending in .toml are parsed as TOML,
// anything else as YAML. Environment variables in the format ${VAR_NAME} are expanded.
func LoadSettings(path string) (*Settings, error) {
	cfg := DefaultSettings()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing settings file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing settings file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating settings: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all configuration fields hold known values.
// Returns an error describing the first validation failure encountered.
func (c *Settings) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	switch c.Database.Driver {
	case "", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver %q is not one of sqlite, sqlite3", c.Database.Driver)
	}

	switch c.Database.Mode {
	case "", "pooled", "shared":
	default:
		return fmt.Errorf("database.mode %q is not one of pooled, shared", c.Database.Mode)
	}

	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Settings) error {
	var err error

	if cfg.Database.BusyTimeoutRaw != "" {
		cfg.Database.BusyTimeout, err = time.ParseDuration(cfg.Database.BusyTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing busy_timeout %q: %w", cfg.Database.BusyTimeoutRaw, err)
		}
	}

	return nil
}
