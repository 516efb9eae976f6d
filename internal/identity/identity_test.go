package identity

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/gatewaylink/client/internal/store"
)

func TestLoadGeneratesOnce(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	first, err := Load(ctx, s)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first.DeviceID == "" {
		t.Fatal("generated identity has empty device id")
	}

	second, err := Load(ctx, s)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if second.DeviceID != first.DeviceID {
		t.Errorf("device id changed across loads: %q vs %q", first.DeviceID, second.DeviceID)
	}
	if second.PublicKey() != first.PublicKey() {
		t.Error("public key changed across loads")
	}
}

func TestSignChallengeVerifies(t *testing.T) {
	ctx := context.Background()
	id, err := Load(ctx, store.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}
	id.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	device := id.SignChallenge("nonce-42")
	if device.Nonce != "nonce-42" || device.ID != id.DeviceID {
		t.Errorf("device block = %+v", device)
	}
	if device.SignedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("signedAt = %q", device.SignedAt)
	}

	pub, err := base64.StdEncoding.DecodeString(device.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := base64.StdEncoding.DecodeString(device.Signature)
	if err != nil {
		t.Fatal(err)
	}
	payload := device.ID + "|" + device.Nonce + "|" + device.SignedAt
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(payload), sig) {
		t.Error("signature does not verify over deviceID|nonce|signedAt")
	}
}

func TestLoadRegeneratesHalfWrittenIdentity(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	if err := s.Set(ctx, KeyDeviceID, "orphan"); err != nil {
		t.Fatal(err)
	}

	id, err := Load(ctx, s)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id.DeviceID == "orphan" {
		t.Error("identity with missing key material should be regenerated")
	}
}
