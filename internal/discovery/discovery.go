// Package discovery finds gateways on the local network via mDNS/DNS-SD.
//
// Gateways advertise themselves as _gatewaylink._tcp with TXT records
// carrying a protocol version, a display name, and the TLS certificate
// fingerprint. Discovery only reveals presence; the fingerprint lets the
// client pin the gateway's certificate before ever connecting.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type gateways advertise.
// Follows the standard Bonjour naming convention: _<service>._<protocol>
const ServiceType = "_gatewaylink._tcp"

// Gateway is one gateway found on the local network.
type Gateway struct {
	// Name is the human-readable name of the gateway.
	Name string

	// Host is the IP address or hostname.
	Host string

	// Port is the websocket port.
	Port int

	// Fingerprint is the TLS certificate fingerprint from the fp TXT
	// record, usable directly as a pin.
	Fingerprint string

	// Version is the advertised protocol version.
	Version string
}

// URL returns the websocket endpoint for the gateway. Pinned gateways
// get wss, unpinned ones ws.
func (g Gateway) URL() string {
	scheme := "ws"
	if g.Fingerprint != "" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/ws", scheme, g.Host, g.Port)
}

// Browse searches for gateways until ctx is done and returns everything
// found. Callers bound the search with a context timeout.
func Browse(ctx context.Context) ([]Gateway, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	var (
		gateways []Gateway
		mu       sync.Mutex
		wg       sync.WaitGroup
	)

	entries := make(chan *zeroconf.ServiceEntry)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			gw := fromEntry(entry)
			mu.Lock()
			gateways = append(gateways, gw)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	// zeroconf closes the entries channel when the context is done.
	<-ctx.Done()
	wg.Wait()

	return gateways, nil
}

// fromEntry converts a resolved service entry, parsing the fp/version/name
// TXT records gateways advertise.
func fromEntry(entry *zeroconf.ServiceEntry) Gateway {
	gw := Gateway{
		Name: entry.Instance,
		Port: entry.Port,
	}

	// Prefer IPv4 address
	if len(entry.AddrIPv4) > 0 {
		gw.Host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		gw.Host = entry.AddrIPv6[0].String()
	}

	for _, txt := range entry.Text {
		switch {
		case strings.HasPrefix(txt, "fp="):
			gw.Fingerprint = txt[len("fp="):]
		case strings.HasPrefix(txt, "version="):
			gw.Version = txt[len("version="):]
		case strings.HasPrefix(txt, "name="):
			gw.Name = txt[len("name="):]
		}
	}
	return gw
}
