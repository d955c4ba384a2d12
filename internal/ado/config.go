package ado

import (
	"os"
	"strconv"
)

// Config holds connection settings for the work-tracking platform.
type Config struct {
	// BaseURL is the organization-level API root, e.g.
	// https://dev.azure.com/myorg.
	BaseURL    string
	Token      string
	TimeoutMs  int
	MaxRetries int
	APIVersion string
}

// DefaultConfig returns a Config with sensible defaults. BaseURL and Token
// must come from the environment.
func DefaultConfig() Config {
	return Config{
		TimeoutMs:  15000,
		MaxRetries: 1,
		APIVersion: "7.0",
	}
}

// LoadConfig reads platform configuration from environment variables,
// falling back to defaults for any unset values.
func LoadConfig() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("CROSSPLAN_ADO_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("CROSSPLAN_ADO_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("CROSSPLAN_ADO_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeoutMs = n
		}
	}
	if v := os.Getenv("CROSSPLAN_ADO_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}
	return cfg
}
