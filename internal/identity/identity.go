// Package identity manages the client's device identity: a stable device
// id and an ed25519 keypair, persisted in the settings store. The identity
// answers gateway connect challenges with a signed device block.
package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatewaylink/client/internal/protocol"
	"github.com/gatewaylink/client/internal/store"
)

// Store keys for persisted identity material.
const (
	KeyDeviceID   = "device.id"
	KeyPrivateKey = "device.private_key"

	// KeyDeviceToken caches the device token minted by the gateway after
	// a successful pairing.
	KeyDeviceToken = "device.token"
)

// Identity is a loaded device identity.
type Identity struct {
	// DeviceID is the stable device identifier.
	DeviceID string

	priv ed25519.PrivateKey

	// now is the clock hook for tests.
	now func() time.Time
}

// Load reads the device identity from the store, generating and
// persisting a fresh one on first use.
func Load(ctx context.Context, s store.Store) (*Identity, error) {
	id, err := s.Get(ctx, KeyDeviceID)
	if errors.Is(err, store.ErrNotFound) {
		return generate(ctx, s)
	}
	if err != nil {
		return nil, fmt.Errorf("load device id: %w", err)
	}

	encoded, err := s.Get(ctx, KeyPrivateKey)
	if errors.Is(err, store.ErrNotFound) {
		// Half-written identity; regenerate both halves.
		return generate(ctx, s)
	}
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("stored private key has wrong size %d", len(raw))
	}

	return &Identity{DeviceID: id, priv: ed25519.PrivateKey(raw), now: time.Now}, nil
}

func generate(ctx context.Context, s store.Store) (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	id := uuid.NewString()

	if err := s.Set(ctx, KeyDeviceID, id); err != nil {
		return nil, fmt.Errorf("persist device id: %w", err)
	}
	if err := s.Set(ctx, KeyPrivateKey, base64.StdEncoding.EncodeToString(priv)); err != nil {
		return nil, fmt.Errorf("persist private key: %w", err)
	}

	return &Identity{DeviceID: id, priv: priv, now: time.Now}, nil
}

// PublicKey returns the base64-encoded ed25519 public key.
func (i *Identity) PublicKey() string {
	pub := i.priv.Public().(ed25519.PublicKey)
	return base64.StdEncoding.EncodeToString(pub)
}

// SignChallenge signs a gateway connect challenge and returns the device
// block for the repeated connect request. The signature covers
// "deviceID|nonce|signedAt" so the gateway can reject replays.
func (i *Identity) SignChallenge(nonce string) *protocol.DeviceParams {
	signedAt := i.now().UTC().Format(time.RFC3339)
	payload := i.DeviceID + "|" + nonce + "|" + signedAt
	sig := ed25519.Sign(i.priv, []byte(payload))

	return &protocol.DeviceParams{
		ID:        i.DeviceID,
		PublicKey: i.PublicKey(),
		Signature: base64.StdEncoding.EncodeToString(sig),
		SignedAt:  signedAt,
		Nonce:     nonce,
	}
}
