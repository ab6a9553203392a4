// Package config loads client configuration from the config file and
// environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"
)

// Defaults applied before any file or environment override.
const (
	DefaultBaseURL        = "https://api.hackwave.dev"
	DefaultRequestTimeout = 30 * time.Second

	DefaultReconnectInitialMS = 1000
	DefaultReconnectMaxMS     = 30000
)

// StreamConfig bounds the push-channel reconnect policy.
type StreamConfig struct {
	// ReconnectInitialMS is the first reconnect delay in milliseconds.
	ReconnectInitialMS int `json:"reconnectInitialMs,omitempty"`
	// ReconnectMaxMS caps the exponential reconnect delay in milliseconds.
	ReconnectMaxMS int `json:"reconnectMaxMs,omitempty"`
}

// InitialDelay returns the first reconnect delay.
func (s StreamConfig) InitialDelay() time.Duration {
	return time.Duration(s.ReconnectInitialMS) * time.Millisecond
}

// MaxDelay returns the reconnect delay cap.
func (s StreamConfig) MaxDelay() time.Duration {
	return time.Duration(s.ReconnectMaxMS) * time.Millisecond
}

// Config is the hackwave client configuration.
type Config struct {
	// BaseURL is the platform API origin.
	BaseURL string `json:"baseUrl,omitempty"`
	// RequestTimeoutSeconds bounds individual REST calls. The push channel
	// ignores it; that connection is long-lived by design.
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds,omitempty"`
	// LogLevel is the minimum log level (DEBUG|INFO|WARN|ERROR).
	LogLevel string `json:"logLevel,omitempty"`
	// Stream configures the push-channel reconnect policy.
	Stream StreamConfig `json:"stream,omitempty"`
}

// RequestTimeout returns the REST call timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Dir returns the config directory: $HACKWAVE_CONFIG_DIR if set, otherwise
// ~/.hackwave.
func Dir() string {
	if dir := os.Getenv("HACKWAVE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hackwave"
	}
	return filepath.Join(home, ".hackwave")
}

// Load builds the configuration (priority order):
//  1. Built-in defaults
//  2. <config dir>/config.jsonc (JSONC, comments allowed)
//  3. HACKWAVE_* environment variables
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL: DefaultBaseURL,
		Stream: StreamConfig{
			ReconnectInitialMS: DefaultReconnectInitialMS,
			ReconnectMaxMS:     DefaultReconnectMaxMS,
		},
	}

	path := filepath.Join(Dir(), "config.jsonc")
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Stream.ReconnectInitialMS <= 0 {
		cfg.Stream.ReconnectInitialMS = DefaultReconnectInitialMS
	}
	if cfg.Stream.ReconnectMaxMS < cfg.Stream.ReconnectInitialMS {
		cfg.Stream.ReconnectMaxMS = DefaultReconnectMaxMS
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HACKWAVE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("HACKWAVE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HACKWAVE_REQUEST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeoutSeconds = n
		}
	}
}
