// Package config provides TOML configuration file loading for the client.
// The configuration file lives at ~/.gatewaylink/config.toml by default, but
// can be overridden with the --config flag. CLI flags always take precedence
// over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the client configuration file structure.
// Field names use Go camelCase internally but map to snake_case in TOML
// files via struct tags.
type Config struct {
	// URL is the gateway websocket endpoint (ws:// or wss://).
	URL string `toml:"url"`

	// Token authenticates with the gateway. Leave empty for gateways
	// that do not require auth or that use device pairing.
	Token string `toml:"token"`

	// TLSFingerprint pins the gateway's certificate by its SHA-256
	// fingerprint (colon-separated hex, as shown by 'gatewaylink discover').
	// Empty means standard certificate verification.
	TLSFingerprint string `toml:"tls_fingerprint"`

	// SessionKey selects the chat session. Default: main
	SessionKey string `toml:"session_key"`

	// DisplayName identifies this client to the gateway and other peers.
	DisplayName string `toml:"display_name"`

	// StorePath is the SQLite database for device identity and settings.
	// Default: ~/.gatewaylink/gatewaylink.db
	StorePath string `toml:"store_path"`

	// RequestTimeoutMs bounds each request round trip. Default: 15000
	RequestTimeoutMs int `toml:"request_timeout_ms"`

	// RefreshTimeoutMs bounds a history refresh. Default: 10000
	RefreshTimeoutMs int `toml:"refresh_timeout_ms"`

	// HealthIntervalMs is the health probe interval. Default: 30000
	HealthIntervalMs int `toml:"health_interval_ms"`

	// AutoReconnect re-dials after an unexpected connection loss.
	// Default: true (set explicitly to false to disable)
	AutoReconnect *bool `toml:"auto_reconnect"`

	// RetryAttempts is the number of auto-connect attempts before giving
	// up and asking for a manual reconnect. Default: 5
	RetryAttempts int `toml:"retry_attempts"`

	// RetryBaseDelayMs scales the linear reconnect backoff: attempt n
	// waits n times this long. Default: 2000
	RetryBaseDelayMs int `toml:"retry_base_delay_ms"`
}

// DefaultConfigPath returns the default config file location:
// ~/.gatewaylink/config.toml. Returns an error only if the user's home
// directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".gatewaylink", "config.toml"), nil
}

// DefaultStorePath returns the default settings database location:
// ~/.gatewaylink/gatewaylink.db.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".gatewaylink", "gatewaylink.db"), nil
}

// WriteDefault creates a starter config file at the given path.
//
// Behavior:
//   - If the file already exists, returns without error (does not overwrite).
//   - Creates the parent directory if it doesn't exist.
//   - Returns an error if the file cannot be written.
func WriteDefault(path string, url string) error {
	// Never overwrite an existing config
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Raw string to control formatting exactly
	content := fmt.Sprintf(`# Gatewaylink configuration
# Created by 'gatewaylink chat' on first run

# Gateway websocket endpoint
url = %q

# Chat session to attach to
session_key = "main"
`, url)

	// Restrictive permissions: the token may end up in this file
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads a TOML config file from the given path and returns a Config.
//
// Behavior:
//   - If path is empty, attempts to load from the default location
//     (~/.gatewaylink/config.toml). Returns an empty Config without error
//     if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			// Can't determine home dir, return empty config
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			// Default config doesn't exist, that's fine
			return cfg, nil
		}
		path = defaultPath
	} else {
		// Explicit path provided: error if file doesn't exist.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	// Parse errors are fatal since the user expects the config to apply.
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
