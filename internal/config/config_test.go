package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLoad_AllFields verifies that all config fields are parsed correctly from TOML.
func TestLoad_AllFields(t *testing.T) {
	content := `
url = "wss://gateway.local:9443/ws"
token = "secret-token"
tls_fingerprint = "AA:BB:CC"
session_key = "work"
display_name = "laptop"
store_path = "/path/to/store.db"
request_timeout_ms = 20000
refresh_timeout_ms = 8000
health_interval_ms = 45000
auto_reconnect = false
retry_attempts = 7
retry_base_delay_ms = 1500
`
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(tmpFile, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.URL != "wss://gateway.local:9443/ws" {
		t.Errorf("URL = %q, want %q", cfg.URL, "wss://gateway.local:9443/ws")
	}
	if cfg.Token != "secret-token" {
		t.Errorf("Token = %q, want %q", cfg.Token, "secret-token")
	}
	if cfg.TLSFingerprint != "AA:BB:CC" {
		t.Errorf("TLSFingerprint = %q, want %q", cfg.TLSFingerprint, "AA:BB:CC")
	}
	if cfg.SessionKey != "work" {
		t.Errorf("SessionKey = %q, want %q", cfg.SessionKey, "work")
	}
	if cfg.DisplayName != "laptop" {
		t.Errorf("DisplayName = %q, want %q", cfg.DisplayName, "laptop")
	}
	if cfg.StorePath != "/path/to/store.db" {
		t.Errorf("StorePath = %q, want %q", cfg.StorePath, "/path/to/store.db")
	}
	if cfg.RequestTimeoutMs != 20000 {
		t.Errorf("RequestTimeoutMs = %d, want 20000", cfg.RequestTimeoutMs)
	}
	if cfg.RefreshTimeoutMs != 8000 {
		t.Errorf("RefreshTimeoutMs = %d, want 8000", cfg.RefreshTimeoutMs)
	}
	if cfg.HealthIntervalMs != 45000 {
		t.Errorf("HealthIntervalMs = %d, want 45000", cfg.HealthIntervalMs)
	}
	if cfg.AutoReconnect == nil || *cfg.AutoReconnect != false {
		t.Errorf("AutoReconnect = %v, want explicit false", cfg.AutoReconnect)
	}
	if cfg.RetryAttempts != 7 {
		t.Errorf("RetryAttempts = %d, want 7", cfg.RetryAttempts)
	}
	if cfg.RetryBaseDelayMs != 1500 {
		t.Errorf("RetryBaseDelayMs = %d, want 1500", cfg.RetryBaseDelayMs)
	}
}

// TestLoad_PartialFields verifies unset fields keep their zero values.
func TestLoad_PartialFields(t *testing.T) {
	content := `url = "ws://10.0.0.5:9443/ws"`
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(tmpFile, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.URL != "ws://10.0.0.5:9443/ws" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.Token != "" || cfg.RetryAttempts != 0 {
		t.Errorf("unset fields should be zero: %+v", cfg)
	}
	if cfg.AutoReconnect != nil {
		t.Errorf("unset AutoReconnect should be nil, got %v", *cfg.AutoReconnect)
	}
}

// TestLoad_ExplicitPathMissing verifies a missing explicit path is an error.
func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing explicit path")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error should mention the file was not found: %v", err)
	}
}

// TestLoad_ParseError verifies malformed TOML is a hard error.
func TestLoad_ParseError(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(tmpFile, []byte("url = [not toml"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tmpFile); err == nil {
		t.Fatal("Load() should fail on malformed TOML")
	}
}

// TestWriteDefault verifies default creation and no-overwrite behavior.
func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := WriteDefault(path, "wss://gateway.local:9443/ws"); err != nil {
		t.Fatalf("WriteDefault() error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of written default failed: %v", err)
	}
	if cfg.URL != "wss://gateway.local:9443/ws" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.SessionKey != "main" {
		t.Errorf("SessionKey = %q, want main", cfg.SessionKey)
	}

	// Second write must not clobber user edits.
	if err := os.WriteFile(path, []byte(`url = "ws://edited/ws"`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := WriteDefault(path, "wss://other/ws"); err != nil {
		t.Fatalf("WriteDefault() on existing file: %v", err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.URL != "ws://edited/ws" {
		t.Errorf("existing config was overwritten: %q", cfg.URL)
	}
}
