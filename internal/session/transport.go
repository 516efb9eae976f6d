package session

import (
	"context"

	"github.com/gatewaylink/client/internal/protocol"
)

// Transport is one established gateway connection. The controller drives
// exactly one Transport at a time and replaces it wholesale on reconnect.
//
// internal/transport provides the websocket implementation; tests use
// in-memory fakes.
type Transport interface {
	// Request sends a request frame and decodes the success payload into
	// result (which may be nil to discard it). Wire errors come back as
	// gwerrors coded errors; ctx bounds the round trip.
	Request(ctx context.Context, method string, params, result interface{}) error

	// Events streams gateway-initiated event frames. The channel closes
	// when the connection dies.
	Events() <-chan protocol.EventFrame

	// Done is closed after the connection dies for any reason; the final
	// error (nil on clean close) is readable afterwards via Err.
	Done() <-chan struct{}

	// Err reports why the connection died. Valid after Done is closed.
	Err() error

	// Hello reports the handshake result negotiated at dial time.
	Hello() protocol.HelloOK

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// DialFunc establishes a Transport. The controller calls it on every
// connect and reconnect attempt.
type DialFunc func(ctx context.Context) (Transport, error)
