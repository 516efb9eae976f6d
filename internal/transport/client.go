// Package transport implements the websocket side of the Gateway
// protocol: framing, request/response correlation, and the event stream.
// It knows nothing about chat semantics; internal/session drives it.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/gatewaylink/client/internal/gwerrors"
	"github.com/gatewaylink/client/internal/protocol"
)

const (
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	pongWait      = 60 * time.Second

	// maxFrameSize caps inbound frames at 512KB, same as the write side
	// enforces on the gateway.
	maxFrameSize = 512 * 1024

	// eventBuffer absorbs bursts while the consumer folds events.
	eventBuffer = 64
)

// Client is one live gateway connection. Create it with Dial; it is not
// usable after Close or after the connection drops.
type Client struct {
	conn  *websocket.Conn
	hello protocol.HelloOK

	// limiter paces outbound writes so a tight send loop cannot flood
	// the gateway.
	limiter *rate.Limiter

	send   chan []byte
	events chan protocol.EventFrame
	done   chan struct{}

	pendingMu sync.Mutex
	pending   map[string]chan protocol.ResponseFrame

	errMu   sync.Mutex
	connErr error
	once    sync.Once
}

// Request sends a request frame and waits for the matching response.
// A wire-level error in the response comes back as a gwerrors coded
// error; result may be nil to discard the success payload.
func (c *Client) Request(ctx context.Context, method string, params, result interface{}) error {
	id := uuid.NewString()
	data, err := json.Marshal(protocol.NewRequest(id, method, params))
	if err != nil {
		return err
	}

	ch := make(chan protocol.ResponseFrame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	select {
	case c.send <- data:
	case <-c.done:
		return gwerrors.TransportClosed(c.Err())
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return gwerrors.RequestTimeout(method)
		}
		return ctx.Err()
	}

	select {
	case res := <-ch:
		if !res.OK {
			return gwerrors.FromWire(res.Error)
		}
		if result == nil || len(res.Payload) == 0 {
			return nil
		}
		return json.Unmarshal(res.Payload, result)
	case <-c.done:
		return gwerrors.TransportClosed(c.Err())
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return gwerrors.RequestTimeout(method)
		}
		return ctx.Err()
	}
}

// Events streams gateway-initiated event frames. The channel closes when
// the connection dies.
func (c *Client) Events() <-chan protocol.EventFrame { return c.events }

// Done is closed when the connection dies for any reason.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection died. nil means a clean close. Valid
// once Done is closed.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.connErr
}

// Hello reports the handshake result negotiated at dial time.
func (c *Client) Hello() protocol.HelloOK { return c.hello }

// Close tears the connection down cleanly. Safe to call more than once.
func (c *Client) Close() error {
	c.fail(nil)
	return nil
}

// fail records the terminal error and shuts the connection down exactly
// once. Later calls keep the first verdict, so a clean Close is never
// reclassified as a failure by the read pump noticing the closed socket.
func (c *Client) fail(err error) {
	c.once.Do(func() {
		c.errMu.Lock()
		c.connErr = err
		c.errMu.Unlock()
		close(c.done)
		c.conn.Close()
	})
}

// writePump serializes all writes to the socket: queued frames and
// keepalive pings. Exactly one writePump runs per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case data := <-c.send:
			if err := c.limiter.Wait(context.Background()); err != nil {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.fail(err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(err)
				return
			}
		}
	}
}

// readPump reads frames off the socket and routes them: responses to the
// pending call that issued the request, events to the event channel.
func (c *Client) readPump() {
	defer close(c.events)

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			c.fail(err)
			return
		}

		var peek protocol.FramePeek
		if err := json.Unmarshal(data, &peek); err != nil {
			log.Printf("transport: discarding unparseable frame: %v", err)
			continue
		}

		switch peek.Type {
		case protocol.FrameTypeResponse:
			var res protocol.ResponseFrame
			if err := json.Unmarshal(data, &res); err != nil {
				log.Printf("transport: bad response frame: %v", err)
				continue
			}
			c.pendingMu.Lock()
			ch := c.pending[res.ID]
			c.pendingMu.Unlock()
			if ch == nil {
				// Response to a request that already timed out.
				continue
			}
			select {
			case ch <- res:
			default:
			}

		case protocol.FrameTypeEvent:
			var ev protocol.EventFrame
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("transport: bad event frame: %v", err)
				continue
			}
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}

		default:
			log.Printf("transport: unknown frame type %q", peek.Type)
		}
	}
}
