package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/gatewaylink/client/internal/gwerrors"
	"github.com/gatewaylink/client/internal/protocol"
	"github.com/gatewaylink/client/internal/tlspin"
)

// Signer produces a signed device identity for a gateway challenge.
type Signer func(nonce string) (*protocol.DeviceParams, error)

// Options configures Dial.
type Options struct {
	// URL is the gateway websocket endpoint (ws:// or wss://).
	URL string

	// Credentials. Zero or one of Token, Password, DeviceToken.
	Token       string
	Password    string
	DeviceToken string

	// Signer answers connect.challenge events with a signed device
	// identity. nil disables device auth.
	Signer Signer

	// Client identifies this build in the handshake. Dial fills in
	// platform and a random id when left empty.
	Client protocol.ClientInfo

	// Role defaults to operator.
	Role   string
	Scopes []string

	// TLSFingerprint pins the gateway certificate (colon-separated
	// SHA-256 hex). Empty means standard verification.
	TLSFingerprint string

	// HandshakeTimeout bounds the connect exchange after the socket is
	// up. Defaults to 15s.
	HandshakeTimeout time.Duration

	// DialMaxElapsed caps how long transient dial failures are retried.
	// Defaults to 20s; the caller's ctx deadline still applies.
	DialMaxElapsed time.Duration

	// WriteRate and WriteBurst pace outbound frames. Defaults: 50/s,
	// burst 10.
	WriteRate  rate.Limit
	WriteBurst int
}

func (o *Options) applyDefaults() {
	if o.Role == "" {
		o.Role = protocol.RoleOperator
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 15 * time.Second
	}
	if o.DialMaxElapsed <= 0 {
		o.DialMaxElapsed = 20 * time.Second
	}
	if o.WriteRate <= 0 {
		o.WriteRate = 50
	}
	if o.WriteBurst <= 0 {
		o.WriteBurst = 10
	}
	if o.Client.ID == "" {
		o.Client.ID = uuid.NewString()
	}
	if o.Client.Platform == "" {
		o.Client.Platform = runtime.GOOS
	}
	if o.Client.Mode == "" {
		o.Client.Mode = "cli"
	}
}

// Dial connects to the gateway, performs the connect handshake, and
// returns a live Client. Transient socket-level dial failures are retried
// with capped exponential backoff; handshake rejections are not.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	opts.applyDefaults()

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	if opts.TLSFingerprint != "" {
		cfg, err := tlspin.TLSConfig(opts.TLSFingerprint)
		if err != nil {
			return nil, err
		}
		dialer.TLSClientConfig = cfg
	}

	var conn *websocket.Conn
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = opts.DialMaxElapsed
	err := backoff.Retry(func() error {
		var dialErr error
		conn, _, dialErr = dialer.DialContext(ctx, opts.URL, nil)
		if dialErr != nil && isPermanentDialError(dialErr) {
			return backoff.Permanent(dialErr)
		}
		return dialErr
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	hello, err := handshake(conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}

	c := &Client{
		conn:    conn,
		hello:   hello,
		limiter: rate.NewLimiter(opts.WriteRate, opts.WriteBurst),
		send:    make(chan []byte, 16),
		events:  make(chan protocol.EventFrame, eventBuffer),
		done:    make(chan struct{}),
		pending: make(map[string]chan protocol.ResponseFrame),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

// isPermanentDialError reports dial failures retrying cannot fix:
// certificate rejections and malformed endpoints.
func isPermanentDialError(err error) bool {
	text := strings.ToLower(err.Error())
	for _, marker := range []string{"x509", "fingerprint mismatch", "malformed ws or wss url", "unexpected url scheme"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// handshake performs the connect exchange on a fresh socket, before the
// pumps start. The gateway may interpose one connect.challenge round for
// device auth.
func handshake(conn *websocket.Conn, opts Options) (protocol.HelloOK, error) {
	deadline := time.Now().Add(opts.HandshakeTimeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})
	defer conn.SetWriteDeadline(time.Time{})

	params := protocol.ConnectParams{
		MinProtocol: protocol.MinProtocol,
		MaxProtocol: protocol.MaxProtocol,
		Client:      opts.Client,
		Role:        opts.Role,
		Scopes:      opts.Scopes,
	}
	if opts.Token != "" || opts.Password != "" || opts.DeviceToken != "" {
		params.Auth = &protocol.AuthParams{
			Token:       opts.Token,
			Password:    opts.Password,
			DeviceToken: opts.DeviceToken,
		}
	}

	id := uuid.NewString()
	if err := conn.WriteJSON(protocol.NewRequest(id, protocol.MethodConnect, params)); err != nil {
		return protocol.HelloOK{}, gwerrors.HandshakeFailed(err)
	}

	challenged := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return protocol.HelloOK{}, gwerrors.HandshakeFailed(err)
		}

		var peek protocol.FramePeek
		if err := json.Unmarshal(data, &peek); err != nil {
			return protocol.HelloOK{}, gwerrors.HandshakeFailed(err)
		}

		switch peek.Type {
		case protocol.FrameTypeEvent:
			var ev protocol.EventFrame
			if err := json.Unmarshal(data, &ev); err != nil {
				return protocol.HelloOK{}, gwerrors.HandshakeFailed(err)
			}
			if ev.Event != protocol.EventConnectChallenge {
				// Pre-handshake events other than the challenge are
				// dropped; the post-handshake snapshot covers them.
				continue
			}
			if opts.Signer == nil || challenged {
				return protocol.HelloOK{}, gwerrors.HandshakeFailed(fmt.Errorf("gateway demanded device auth"))
			}
			challenged = true
			var challenge protocol.ConnectChallenge
			if err := json.Unmarshal(ev.Payload, &challenge); err != nil {
				return protocol.HelloOK{}, gwerrors.HandshakeFailed(err)
			}
			device, err := opts.Signer(challenge.Nonce)
			if err != nil {
				return protocol.HelloOK{}, gwerrors.HandshakeFailed(err)
			}
			params.Device = device
			id = uuid.NewString()
			if err := conn.WriteJSON(protocol.NewRequest(id, protocol.MethodConnect, params)); err != nil {
				return protocol.HelloOK{}, gwerrors.HandshakeFailed(err)
			}

		case protocol.FrameTypeResponse:
			var res protocol.ResponseFrame
			if err := json.Unmarshal(data, &res); err != nil {
				return protocol.HelloOK{}, gwerrors.HandshakeFailed(err)
			}
			if res.ID != id {
				continue
			}
			if !res.OK {
				return protocol.HelloOK{}, gwerrors.FromWire(res.Error)
			}
			var hello protocol.HelloOK
			if err := json.Unmarshal(res.Payload, &hello); err != nil {
				return protocol.HelloOK{}, gwerrors.HandshakeFailed(err)
			}
			if hello.Type != protocol.HelloOKType {
				return protocol.HelloOK{}, gwerrors.HandshakeFailed(fmt.Errorf("unexpected hello type %q", hello.Type))
			}
			if hello.Protocol < protocol.MinProtocol || hello.Protocol > protocol.MaxProtocol {
				return protocol.HelloOK{}, gwerrors.HandshakeFailed(fmt.Errorf("gateway negotiated unsupported protocol %d", hello.Protocol))
			}
			return hello, nil

		default:
			return protocol.HelloOK{}, gwerrors.HandshakeFailed(fmt.Errorf("unexpected frame type %q during handshake", peek.Type))
		}
	}
}
