// Shared gateway-connection plumbing for the chat and doctor commands:
// flag registration, config file merging, store/identity setup, and the
// dial function handed to the session controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/gatewaylink/client/internal/config"
	"github.com/gatewaylink/client/internal/identity"
	"github.com/gatewaylink/client/internal/protocol"
	"github.com/gatewaylink/client/internal/session"
	"github.com/gatewaylink/client/internal/store"
	"github.com/gatewaylink/client/internal/transport"
)

// clientConfig is the merged view of CLI flags and the config file for
// commands that talk to a gateway.
type clientConfig struct {
	Config      string
	URL         string
	Token       string
	Fingerprint string
	SessionKey  string
	DisplayName string
	StorePath   string
	NoReconnect bool

	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	HealthInterval time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// addClientFlags registers the connection flags shared by chat and doctor.
func addClientFlags(fs *flag.FlagSet, cfg *clientConfig) {
	fs.StringVar(&cfg.Config, "config", "", "Path to config file (default: ~/.gatewaylink/config.toml)")
	fs.StringVar(&cfg.URL, "url", "", "Gateway websocket endpoint (ws:// or wss://)")
	fs.StringVar(&cfg.Token, "token", "", "Gateway auth token")
	fs.StringVar(&cfg.Fingerprint, "fingerprint", "", "Pinned gateway certificate fingerprint (SHA-256)")
	fs.StringVar(&cfg.SessionKey, "session", "", "Chat session key (default: main)")
	fs.StringVar(&cfg.DisplayName, "name", "", "Display name announced to the gateway")
	fs.StringVar(&cfg.StorePath, "store", "", "Settings database path (default: ~/.gatewaylink/gatewaylink.db)")
	fs.BoolVar(&cfg.NoReconnect, "no-reconnect", false, "Disable automatic reconnection")
}

// resolveClientConfig merges the config file under CLI flags. Explicit
// CLI flags always win; file values fill the gaps; hard defaults last.
func resolveClientConfig(fs *flag.FlagSet, cfg *clientConfig) error {
	// Track which flags were explicitly set on the command line, so a
	// config file cannot override them.
	explicitFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		explicitFlags[f.Name] = true
	})

	fileCfg, err := config.Load(cfg.Config)
	if err != nil {
		return err
	}

	if cfg.URL == "" {
		cfg.URL = fileCfg.URL
	}
	if cfg.Token == "" {
		cfg.Token = fileCfg.Token
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fileCfg.TLSFingerprint
	}
	if cfg.SessionKey == "" {
		cfg.SessionKey = fileCfg.SessionKey
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = fileCfg.DisplayName
	}
	if cfg.StorePath == "" {
		cfg.StorePath = fileCfg.StorePath
	}
	if !explicitFlags["no-reconnect"] && fileCfg.AutoReconnect != nil {
		cfg.NoReconnect = !*fileCfg.AutoReconnect
	}

	cfg.RequestTimeout = msOrDefault(fileCfg.RequestTimeoutMs, session.DefaultRequestTimeout)
	cfg.RefreshTimeout = msOrDefault(fileCfg.RefreshTimeoutMs, session.DefaultRefreshTimeout)
	cfg.HealthInterval = msOrDefault(fileCfg.HealthIntervalMs, session.DefaultHealthInterval)
	cfg.RetryAttempts = fileCfg.RetryAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = session.DefaultRetryAttempts
	}
	cfg.RetryBaseDelay = msOrDefault(fileCfg.RetryBaseDelayMs, session.DefaultRetryBaseDelay)

	if cfg.URL == "" {
		cfg.URL = config.DefaultURL
	}
	if cfg.SessionKey == "" {
		cfg.SessionKey = config.DefaultSessionKey
	}
	if cfg.StorePath == "" {
		path, err := config.DefaultStorePath()
		if err != nil {
			return fmt.Errorf("resolve store path: %w", err)
		}
		cfg.StorePath = path
	}
	return nil
}

func msOrDefault(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// openIdentity opens the settings store and loads (or mints) the device
// identity. The caller closes the returned store.
func openIdentity(ctx context.Context, cfg *clientConfig) (store.Store, *identity.Identity, error) {
	s, err := store.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	id, err := identity.Load(ctx, s)
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("load device identity: %w", err)
	}
	return s, id, nil
}

// makeDial builds the dial function the controller uses for every connect
// and reconnect attempt.
func makeDial(cfg *clientConfig, id *identity.Identity) session.DialFunc {
	opts := transport.Options{
		URL:            cfg.URL,
		Token:          cfg.Token,
		TLSFingerprint: cfg.Fingerprint,
		Client: protocol.ClientInfo{
			ID:          id.DeviceID,
			Version:     Version,
			Mode:        "cli",
			DisplayName: cfg.DisplayName,
		},
		Role:   protocol.RoleOperator,
		Scopes: []string{"chat"},
		Signer: func(nonce string) (*protocol.DeviceParams, error) {
			return id.SignChallenge(nonce), nil
		},
	}
	return func(ctx context.Context) (session.Transport, error) {
		return transport.Dial(ctx, opts)
	}
}
