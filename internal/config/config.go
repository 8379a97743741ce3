// Package config provides application-wide configuration management.
// Configuration is loaded from a JSON file and overridden by environment
// variables, exactly as the router's account credentials are: a file for
// local development, an environment variable for the deployed process.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the router's process-wide settings. Loaded once at startup
// and passed as read-only to every component.
type Config struct {
	// HTTPPort is the port internal/httpapi listens on.
	HTTPPort int `json:"http_port"`

	// DatabaseURL is the Postgres connection string for internal/auditlog.
	// Empty disables audit logging — the router still executes signals,
	// it just doesn't record the decision trail.
	DatabaseURL string `json:"database_url"`

	// AccountsFile is a local-development fallback path for the accounts
	// blob when KIS_ACCOUNTS_JSON isn't set. Unused in deployments where
	// the environment variable is the source of truth.
	AccountsFile string `json:"accounts_file"`
}

// Load reads configuration from a JSON file and applies environment
// overrides.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", absPath, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse json: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KIS_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("KIS_ACCOUNTS_FILE"); v != "" {
		cfg.AccountsFile = v
	}
	if v := os.Getenv("KIS_HTTP_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			cfg.HTTPPort = port
		}
	}
}

// Validate checks that all required configuration fields are present and
// sane.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be in (0, 65535], got %d", c.HTTPPort)
	}
	return nil
}

// LoadAccountsJSON sources the accounts blob per §6: an environment
// variable holding the raw JSON array takes precedence; a file path (either
// from the environment or the config file) is the local-development
// fallback. An empty result is valid — credstore.New treats it as zero
// accounts, not an error.
func LoadAccountsJSON(cfg *Config) ([]byte, error) {
	if v := os.Getenv("KIS_ACCOUNTS_JSON"); v != "" {
		return []byte(v), nil
	}
	if cfg.AccountsFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(cfg.AccountsFile)
	if err != nil {
		return nil, fmt.Errorf("config: read accounts file %s: %w", cfg.AccountsFile, err)
	}
	return data, nil
}
