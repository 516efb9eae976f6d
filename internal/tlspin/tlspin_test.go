package tlspin

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"strings"
	"testing"
	"time"
)

func testCert(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"gatewaylink-test"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

func TestComputeFingerprintFormat(t *testing.T) {
	fp := ComputeFingerprint(testCert(t))
	parts := strings.Split(fp, ":")
	if len(parts) != 32 {
		t.Errorf("fingerprint has %d byte groups, want 32: %s", len(parts), fp)
	}
	if fp != strings.ToUpper(fp) {
		t.Errorf("fingerprint should be uppercase: %s", fp)
	}
}

func TestNormalizeFingerprint(t *testing.T) {
	if NormalizeFingerprint("aa:bb:cc") != "AABBCC" {
		t.Error("colons and case should normalize away")
	}
	if NormalizeFingerprint(" AABB ") != "AABB" {
		t.Error("surrounding whitespace should normalize away")
	}
}

func TestTLSConfigPinMatch(t *testing.T) {
	cert := testCert(t)
	cfg, err := TLSConfig(ComputeFingerprint(cert))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.VerifyPeerCertificate([][]byte{cert.Raw}, nil); err != nil {
		t.Errorf("pinned certificate rejected: %v", err)
	}
}

func TestTLSConfigPinMismatch(t *testing.T) {
	cert := testCert(t)
	other := testCert(t)
	cfg, err := TLSConfig(ComputeFingerprint(other))
	if err != nil {
		t.Fatal(err)
	}
	err = cfg.VerifyPeerCertificate([][]byte{cert.Raw}, nil)
	if err == nil || !strings.Contains(err.Error(), "fingerprint mismatch") {
		t.Errorf("wrong certificate accepted: %v", err)
	}
}

func TestTLSConfigRejectsBadPin(t *testing.T) {
	if _, err := TLSConfig("not-a-fingerprint"); err == nil {
		t.Error("malformed pin should be rejected")
	}
}
