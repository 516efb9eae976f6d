// Package diagnose maps raw connection failures to actionable diagnostics.
//
// Classification is a prioritized substring match over the lower-cased
// error text. The order is load-bearing: a TLS failure whose nested message
// mentions "unauthorized" must still classify as TLS, so TLS patterns are
// checked before auth patterns. Treat the pattern list as a contract; do
// not add categories speculatively for new backend error strings.
package diagnose

import "strings"

// Kind is the diagnostic category of a connection failure.
type Kind string

const (
	KindPairing Kind = "pairing"
	KindTimeout Kind = "timeout"
	KindTLS     Kind = "tls"
	KindAuth    Kind = "auth"
	KindDNS     Kind = "dns"
	KindNetwork Kind = "network"
	KindServer  Kind = "server"
	KindUnknown Kind = "unknown"
)

// Diagnostic is the classified result: what went wrong and what the user
// can do about it.
type Diagnostic struct {
	Kind Kind

	// Summary is a one-line description of the failure category.
	Summary string

	// Guidance tells the user what to try next.
	Guidance string
}

// rule is one prioritized pattern group. The first rule with a matching
// pattern wins.
type rule struct {
	kind     Kind
	patterns []string
}

// rules in priority order. Matching is substring over lower-cased text.
var rules = []rule{
	{KindPairing, []string{
		"not paired", "pairing required", "pairing code", "device not recognized",
		"not_paired",
	}},
	{KindTimeout, []string{
		"timeout", "timed out", "deadline exceeded", "i/o timeout",
	}},
	{KindTLS, []string{
		"tls", "certificate", "x509", "self signed", "self-signed",
		"handshake failure", "fingerprint mismatch",
	}},
	{KindAuth, []string{
		"unauthorized", "401", "403", "forbidden", "invalid token",
		"auth failed", "authentication",
	}},
	{KindDNS, []string{
		"no such host", "dns", "name resolution", "could not resolve",
		"lookup failed", "server misbehaving",
	}},
	{KindNetwork, []string{
		"connection refused", "connection reset", "network is unreachable",
		"host is down", "broken pipe", "no route to host", "econnrefused",
	}},
	{KindServer, []string{
		"500", "502", "503", "504", "internal server error", "bad gateway",
		"service unavailable", "gateway timeout",
	}},
}

// summaries and guidance per kind.
var descriptions = map[Kind]struct {
	summary  string
	guidance string
}{
	KindPairing: {
		"This device is not paired with the gateway.",
		"Generate a pairing code on the gateway and pair this device before connecting.",
	},
	KindTimeout: {
		"The gateway did not respond in time.",
		"Check that the gateway is running and reachable, then try again.",
	},
	KindTLS: {
		"The secure connection could not be established.",
		"Verify the gateway's certificate fingerprint, or re-pin it if the certificate was rotated.",
	},
	KindAuth: {
		"The gateway rejected this client's credentials.",
		"Check the configured token, or re-pair the device to obtain a fresh one.",
	},
	KindDNS: {
		"The gateway's host name could not be resolved.",
		"Check the gateway URL for typos and verify your DNS settings.",
	},
	KindNetwork: {
		"The gateway could not be reached over the network.",
		"Check that the gateway is running and that this device is on the right network.",
	},
	KindServer: {
		"The gateway is reachable but failing internally.",
		"The gateway may be restarting; wait a moment and reconnect.",
	},
	KindUnknown: {
		"The connection failed for an unrecognized reason.",
		"Check the gateway logs for details and try again.",
	},
}

// Classify maps a raw connection error to a Diagnostic. hasToken reports
// whether an auth token was supplied; it refines the auth guidance (a 401
// without any token means the user never configured one).
func Classify(err error, hasToken bool) Diagnostic {
	kind := KindUnknown
	if err != nil {
		text := strings.ToLower(err.Error())
		for _, r := range rules {
			if matchAny(text, r.patterns) {
				kind = r.kind
				break
			}
		}
	}

	desc := descriptions[kind]
	diag := Diagnostic{
		Kind:     kind,
		Summary:  desc.summary,
		Guidance: desc.guidance,
	}

	if kind == KindAuth && !hasToken {
		diag.Guidance = "No auth token is configured. Pair this device or set a token in the config."
	}

	return diag
}

func matchAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
