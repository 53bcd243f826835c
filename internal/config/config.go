// Manages the server configuration stored in config.yaml.

// Package config loads and validates the data directory configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file name inside the data directory.
const FileName = "config.yaml"

// Config stores all server-wide configuration.
// Loaded from config.yaml, created with defaults if missing.
type Config struct {
	// TableFile is the spreadsheet file name, relative to the data directory.
	TableFile string `yaml:"table_file"`

	// History controls the git history of the table file.
	History History `yaml:"history"`

	// RateLimits defines rate limiting configuration.
	RateLimits RateLimits `yaml:"rate_limits"`

	// MaxRequestBodyBytes limits the size of any single HTTP request body.
	// 0 means unlimited.
	MaxRequestBodyBytes int64 `yaml:"max_request_body_bytes"`
}

// History configures the commit history.
type History struct {
	Enabled     bool   `yaml:"enabled"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// WriteRatePerMin limits write operations (POST/PUT) per client IP.
	// 0 means unlimited.
	WriteRatePerMin int `yaml:"write_rate_per_min"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		TableFile: "customers.xlsx",
		History: History{
			Enabled:     true,
			AuthorName:  "localcrm",
			AuthorEmail: "localcrm@localhost",
		},
		RateLimits:          RateLimits{WriteRatePerMin: 60},
		MaxRequestBodyBytes: 1024 * 1024, // 1 MiB
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.TableFile == "" {
		return errors.New("table_file is required")
	}
	if !filepath.IsLocal(c.TableFile) {
		return fmt.Errorf("table_file %q must be a local path inside the data directory", c.TableFile)
	}
	if c.History.Enabled && (c.History.AuthorName == "" || c.History.AuthorEmail == "") {
		return errors.New("history: author_name and author_email are required")
	}
	if c.RateLimits.WriteRatePerMin < 0 {
		return errors.New("rate_limits: write_rate_per_min must be non-negative")
	}
	if c.MaxRequestBodyBytes < 0 {
		return errors.New("max_request_body_bytes must be non-negative")
	}
	return nil
}

// TablePath returns the absolute path of the table file.
func (c *Config) TablePath(dataDir string) string {
	return filepath.Join(dataDir, c.TableFile)
}

// Load loads configuration from dataDir/config.yaml.
// Creates the file with defaults if it doesn't exist. Missing keys keep their default.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, FileName)
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return cfg, nil
}

// Save saves configuration to dataDir/config.yaml.
func (c *Config) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, FileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}
