// Package tlspin implements certificate pinning for gateway connections.
// Gateways typically serve self-signed certificates; instead of trusting a
// CA, the client pins the SHA-256 fingerprint the gateway advertised at
// discovery or pairing time.
package tlspin

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeFingerprint computes the SHA-256 fingerprint of a certificate.
// Returns the fingerprint as colon-separated uppercase hex bytes.
// Example: "AA:BB:CC:DD:EE:FF:..."
func ComputeFingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	hexStr := hex.EncodeToString(hash[:])

	var parts []string
	for i := 0; i < len(hexStr); i += 2 {
		parts = append(parts, strings.ToUpper(hexStr[i:i+2]))
	}
	return strings.Join(parts, ":")
}

// NormalizeFingerprint strips colons and whitespace and uppercases, so
// fingerprints compare equal regardless of how the user typed them.
func NormalizeFingerprint(fp string) string {
	fp = strings.ReplaceAll(fp, ":", "")
	fp = strings.TrimSpace(fp)
	return strings.ToUpper(fp)
}

// TLSConfig returns a tls.Config that accepts exactly the certificate
// with the pinned fingerprint. Chain and hostname verification are
// disabled; the pin is the trust anchor.
func TLSConfig(pin string) (*tls.Config, error) {
	want := NormalizeFingerprint(pin)
	if len(want) != sha256.Size*2 {
		return nil, fmt.Errorf("invalid fingerprint pin %q: want %d hex chars, got %d", pin, sha256.Size*2, len(want))
	}
	return &tls.Config{
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("server presented no certificate")
			}
			cert, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return fmt.Errorf("failed to parse server certificate: %w", err)
			}
			got := NormalizeFingerprint(ComputeFingerprint(cert))
			if got != want {
				return fmt.Errorf("certificate fingerprint mismatch: got %s", ComputeFingerprint(cert))
			}
			return nil
		},
	}, nil
}
