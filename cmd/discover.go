// This file implements the `gatewaylink discover` command: mDNS browse
// for gateways on the local network.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/gatewaylink/client/internal/discovery"
)

const discoverUsage = `Usage: gatewaylink discover [options]

Searches the local network for gateways advertising _gatewaylink._tcp and
prints each one with its endpoint and certificate fingerprint.

Options:
  --timeout <seconds>   How long to browse (default: 3)
  --json                Output in JSON format
`

// discoverBrowse is a seam for tests.
var discoverBrowse = discovery.Browse

func runDiscover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, discoverUsage) }
	timeout := fs.Int("timeout", 3, "Browse duration in seconds")
	jsonOut := fs.Bool("json", false, "Output in JSON format")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	gateways, err := discoverBrowse(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(gateways); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if len(gateways) == 0 {
		fmt.Fprintln(stdout, "No gateways found.")
		fmt.Fprintln(stdout, "Make sure a gateway is running on this network with mDNS enabled.")
		return 0
	}

	for _, gw := range gateways {
		fmt.Fprintf(stdout, "%s\n", gw.Name)
		fmt.Fprintf(stdout, "  url:         %s\n", gw.URL())
		if gw.Version != "" {
			fmt.Fprintf(stdout, "  version:     %s\n", gw.Version)
		}
		if gw.Fingerprint != "" {
			fmt.Fprintf(stdout, "  fingerprint: %s\n", gw.Fingerprint)
		}
	}
	fmt.Fprintf(stdout, "\nConnect with: gatewaylink chat --url <url> --fingerprint <fingerprint>\n")
	return 0
}
