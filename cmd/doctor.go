// Package main provides CLI commands for the gatewaylink client.
// This file implements the `gatewaylink doctor` diagnostic command.
//
// Doctor runs a sequence of connectivity checks against the configured
// gateway and reports actionable remediation guidance for any issues. It
// supports both human-readable (default) and machine-readable (--json)
// output.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/gatewaylink/client/internal/diagnose"
	"github.com/gatewaylink/client/internal/protocol"
	"github.com/gatewaylink/client/internal/transport"
)

// DoctorResult is the top-level JSON output for `gatewaylink doctor --json`.
type DoctorResult struct {
	// Version is the doctor output schema version. Always "1".
	Version string `json:"version"`

	// Checks is the ordered list of diagnostic checks that were evaluated.
	Checks []DoctorCheck `json:"checks"`

	// Summary contains aggregate pass/fail counts derived from Checks.
	Summary DoctorSummary `json:"summary"`
}

// DoctorCheck is one diagnostic check in the doctor output.
type DoctorCheck struct {
	// ID is a stable, machine-readable identifier for the check.
	ID string `json:"id"`

	// Status is the check result: "pass" or "fail".
	Status string `json:"status"`

	// Message is a human-readable summary of what was found.
	Message string `json:"message"`

	// NextAction is a concrete remediation step the operator should take.
	NextAction string `json:"next_action,omitempty"`
}

// DoctorSummary holds aggregate counts of check outcomes.
type DoctorSummary struct {
	Pass int `json:"pass"`
	Fail int `json:"fail"`
}

// Stable check IDs. These are part of the CLI contract and must not change.
const (
	checkIDIdentity = "client.identity"
	checkIDReach    = "gateway.reachability"
	checkIDHealth   = "gateway.health"
)

const (
	statusPass = "pass"
	statusFail = "fail"
)

// doctorClient is the slice of transport.Client doctor needs.
type doctorClient interface {
	Request(ctx context.Context, method string, params, result interface{}) error
	Hello() protocol.HelloOK
	Close() error
}

// doctorDial is a seam for tests; the default dials the real gateway.
var doctorDial = func(ctx context.Context, opts transport.Options) (doctorClient, error) {
	return transport.Dial(ctx, opts)
}

const doctorUsage = `Usage: gatewaylink doctor [options]

Checks gateway connectivity and prints remediation guidance.

Options:
  --config <path>        Config file (default: ~/.gatewaylink/config.toml)
  --url <ws-url>         Gateway endpoint
  --token <token>        Auth token
  --fingerprint <fp>     Pinned certificate fingerprint
  --json                 Machine-readable output
`

func runDoctor(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, doctorUsage) }
	var cfg clientConfig
	addClientFlags(fs, &cfg)
	jsonOut := fs.Bool("json", false, "Output in JSON format")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := resolveClientConfig(fs, &cfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	result := DoctorResult{Version: "1"}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// Check 1: device identity loads (store reachable, key material sane).
	st, id, err := openIdentity(ctx, &cfg)
	if err != nil {
		result.Checks = append(result.Checks, DoctorCheck{
			ID: checkIDIdentity, Status: statusFail,
			Message:    fmt.Sprintf("device identity unavailable: %v", err),
			NextAction: fmt.Sprintf("Check that %s is writable, or pass --store", cfg.StorePath),
		})
	} else {
		defer st.Close()
		result.Checks = append(result.Checks, DoctorCheck{
			ID: checkIDIdentity, Status: statusPass,
			Message: fmt.Sprintf("device identity %s", id.DeviceID),
		})
	}

	// Check 2: dial and handshake, with classified guidance on failure.
	opts := transport.Options{
		URL:            cfg.URL,
		Token:          cfg.Token,
		TLSFingerprint: cfg.Fingerprint,
		Role:           protocol.RoleOperator,
		Scopes:         []string{"chat"},
	}
	if id != nil {
		opts.Client = protocol.ClientInfo{ID: id.DeviceID, Version: Version, Mode: "cli"}
		opts.Signer = func(nonce string) (*protocol.DeviceParams, error) {
			return id.SignChallenge(nonce), nil
		}
	}
	client, err := doctorDial(ctx, opts)
	if err != nil {
		d := diagnose.Classify(err, cfg.Token != "")
		result.Checks = append(result.Checks, DoctorCheck{
			ID: checkIDReach, Status: statusFail,
			Message:    fmt.Sprintf("%s (%s)", d.Summary, d.Kind),
			NextAction: d.Guidance,
		})
	} else {
		defer client.Close()
		hello := client.Hello()
		msg := fmt.Sprintf("connected to %s, protocol %d", cfg.URL, hello.Protocol)
		if hello.Server != nil && hello.Server.Version != "" {
			msg += fmt.Sprintf(" (gateway %s)", hello.Server.Version)
		}
		result.Checks = append(result.Checks, DoctorCheck{
			ID: checkIDReach, Status: statusPass, Message: msg,
		})

		// Check 3: health probe over the live connection.
		var health protocol.HealthResult
		if err := client.Request(ctx, protocol.MethodHealth, nil, &health); err != nil {
			result.Checks = append(result.Checks, DoctorCheck{
				ID: checkIDHealth, Status: statusFail,
				Message:    fmt.Sprintf("health probe failed: %v", err),
				NextAction: "The gateway is reachable but unhealthy; check its logs",
			})
		} else if !health.OK || len(health.Degraded) > 0 {
			result.Checks = append(result.Checks, DoctorCheck{
				ID: checkIDHealth, Status: statusFail,
				Message:    fmt.Sprintf("gateway degraded: %v", health.Degraded),
				NextAction: "Check the degraded subsystems on the gateway",
			})
		} else {
			result.Checks = append(result.Checks, DoctorCheck{
				ID: checkIDHealth, Status: statusPass, Message: "gateway healthy",
			})
		}
	}

	for _, c := range result.Checks {
		if c.Status == statusPass {
			result.Summary.Pass++
		} else {
			result.Summary.Fail++
		}
	}

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	} else {
		for _, c := range result.Checks {
			mark := "ok"
			if c.Status == statusFail {
				mark = "FAIL"
			}
			fmt.Fprintf(stdout, "[%s] %-22s %s\n", mark, c.ID, c.Message)
			if c.NextAction != "" {
				fmt.Fprintf(stdout, "       -> %s\n", c.NextAction)
			}
		}
		fmt.Fprintf(stdout, "\n%d passed, %d failed\n", result.Summary.Pass, result.Summary.Fail)
	}

	if result.Summary.Fail > 0 {
		return 1
	}
	return 0
}
