package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatewaylink/client/internal/diagnose"
	"github.com/gatewaylink/client/internal/gwerrors"
	"github.com/gatewaylink/client/internal/protocol"
)

// Defaults applied by New when the config leaves them zero.
const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultRefreshTimeout = 10 * time.Second
	DefaultHealthInterval = 30 * time.Second
	DefaultRetryAttempts  = 5
	DefaultRetryBaseDelay = 2 * time.Second
)

// truncatedNotice replaces an empty final answer when the agent stopped
// on a token limit.
const truncatedNotice = "[output truncated: token limit reached]"

// emptyAnswerNotice replaces an empty final answer on a normal stop.
const emptyAnswerNotice = "(no content)"

// Config configures a Controller. Dial and SessionKey are required.
type Config struct {
	// Dial establishes a gateway connection. Called on every connect and
	// reconnect attempt.
	Dial DialFunc

	// SessionKey identifies the chat session on the gateway.
	SessionKey string

	// HasToken tells the connect-failure classifier whether credentials
	// were configured, which changes the auth guidance it produces.
	HasToken bool

	// AutoReconnect re-dials with linear backoff after an unexpected
	// connection loss.
	AutoReconnect bool

	// RetryAttempts and RetryBaseDelay shape the reconnect schedule:
	// attempt n waits RetryBaseDelay*n before dialing.
	RetryAttempts  int
	RetryBaseDelay time.Duration

	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	HealthInterval time.Duration

	// now is the clock hook for tests.
	now func() time.Time
}

// Controller owns one chat session over one gateway connection at a time.
// All state lives behind a single mutex; every mutation produces a fresh
// snapshot delivered synchronously to subscribers.
type Controller struct {
	cfg Config
	now func() time.Time

	mu    sync.Mutex
	state ControllerState

	// epoch is bumped on every connect and disconnect. Goroutines and
	// in-flight requests capture it by value and discard their results
	// when it no longer matches, so a stale dial or response can never
	// clobber the state of a newer connection.
	epoch uint64

	transport Transport
	closed    bool

	lastFingerprint  *SendFingerprint
	lastPendingRunID string

	healthInFlight bool

	// refreshDone coalesces concurrent RefreshHistory calls: while a
	// refresh is in flight every caller waits on this channel and shares
	// refreshErr instead of issuing another request.
	refreshDone chan struct{}
	refreshErr  error

	obs *observers
}

// New creates a Controller. It does not connect; call Connect.
func New(cfg Config) *Controller {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = DefaultHealthInterval
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		cfg: cfg,
		now: now,
		state: ControllerState{
			Connection: ConnDisconnected,
			Health:     HealthUnknown,
			SessionKey: cfg.SessionKey,
		},
		obs: newObservers(),
	}
}

// Subscribe registers a listener and synchronously delivers the current
// snapshot to it before returning. The returned function unsubscribes.
func (c *Controller) Subscribe(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	unsubscribe := c.obs.add(fn)
	fn(c.state.clone())
	return unsubscribe
}

// State returns a snapshot of the current controller state.
func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// emitLocked stamps the state and publishes a snapshot. Caller holds
// c.mu, so snapshots leave in the exact order the mutations happened.
// Listeners therefore run with the controller lock held and must not
// call back into the Controller.
func (c *Controller) emitLocked() {
	c.state.LastUpdatedAt = c.now()
	c.obs.notify(c.state.clone())
}

// Connect establishes a gateway connection, replacing any existing one.
// On success it starts the event pump and health monitor and performs a
// best-effort history refresh before returning.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return gwerrors.TransportClosed(nil)
	}
	c.epoch++
	epoch := c.epoch
	old := c.transport
	c.transport = nil
	c.state.Connection = ConnConnecting
	c.state.Diagnostic = nil
	c.state.Banner = ""
	c.state.Health = HealthUnknown
	c.emitLocked()
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	t, err := c.cfg.Dial(ctx)

	c.mu.Lock()
	if epoch != c.epoch {
		// A newer connect or disconnect supersedes this attempt.
		c.mu.Unlock()
		if t != nil {
			t.Close()
		}
		return nil
	}
	if err != nil {
		c.state.Connection = ConnDisconnected
		d := diagnose.Classify(err, c.cfg.HasToken)
		c.state.Diagnostic = &d
		c.state.Banner = d.Summary
		c.emitLocked()
		c.mu.Unlock()
		log.Printf("session: connect failed: %v", err)
		return err
	}

	c.transport = t
	c.state.Connection = ConnConnected
	c.state.Diagnostic = nil
	c.emitLocked()
	c.mu.Unlock()

	go c.eventPump(t, epoch)
	go c.watchDone(t, epoch)
	go c.healthLoop(t, epoch)

	// Initial sync is best-effort; failures land in SyncError.
	if err := c.RefreshHistory(ctx); err != nil {
		log.Printf("session: initial history refresh failed: %v", err)
	}
	return nil
}

// Disconnect closes the current connection, if any.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	c.epoch++
	t := c.transport
	c.transport = nil
	c.state.Connection = ConnDisconnected
	c.state.Health = HealthUnknown
	c.state.IsSending = false
	c.state.IsSyncing = false
	c.lastPendingRunID = ""
	c.emitLocked()
	c.mu.Unlock()

	if t != nil {
		t.Close()
	}
}

// Close disconnects and marks the controller unusable.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Disconnect()
}

// ClearBanner clears the transient banner notice.
func (c *Controller) ClearBanner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Banner == "" {
		return
	}
	c.state.Banner = ""
	c.emitLocked()
}

// SendMessage validates, dedupes, and dispatches one chat send. On
// success the new turn is appended in sending state with a placeholder
// assistant answer; streamed chat events then fill it in.
//
// Validation order: empty message, a send already in flight, not
// connected, then duplicate suppression. Attachments missing a file
// name, mime type, or content are dropped before validation, so a send
// carrying only broken attachments counts as empty.
func (c *Controller) SendMessage(ctx context.Context, message string, attachments ...protocol.Attachment) error {
	trimmed := strings.TrimSpace(message)
	normalized := NormalizeAttachments(attachments)

	c.mu.Lock()
	if trimmed == "" && len(normalized) == 0 {
		err := gwerrors.EmptySend()
		c.state.SendError = err.Message
		c.emitLocked()
		c.mu.Unlock()
		return err
	}
	if c.state.IsSending {
		err := gwerrors.AlreadySending()
		c.state.SendError = err.Message
		c.emitLocked()
		c.mu.Unlock()
		return err
	}
	if c.transport == nil || c.state.Connection != ConnConnected {
		err := gwerrors.NotConnected("send")
		c.state.SendError = err.Message
		c.emitLocked()
		c.mu.Unlock()
		return err
	}

	decision := ResolveSendDispatch(c.lastFingerprint, c.cfg.SessionKey, trimmed, c.now())
	if decision.Blocked {
		err := gwerrors.DuplicateRapid()
		c.state.SendError = err.Message
		c.emitLocked()
		c.mu.Unlock()
		return err
	}
	fp := decision.Fingerprint
	c.lastFingerprint = &fp

	turn := Turn{
		ID:            uuid.NewString(),
		UserText:      trimmed,
		AssistantText: PlaceholderText,
		State:         TurnSending,
		CreatedAt:     c.now(),
	}
	c.state.Turns = append(c.state.Turns, turn)
	c.state.IsSending = true
	c.state.SendError = ""
	c.emitLocked()
	epoch := c.epoch
	t := c.transport
	turnID := turn.ID
	c.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	var result protocol.ChatSendResult
	err := t.Request(reqCtx, protocol.MethodChatSend, protocol.ChatSendParams{
		SessionKey:     c.cfg.SessionKey,
		Message:        trimmed,
		Attachments:    normalized,
		IdempotencyKey: decision.IdempotencyKey,
	}, &result)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		// The connection changed under us; the reconciled history owns
		// the outcome now.
		return nil
	}
	idx := c.turnIndexByID(turnID)
	if err != nil {
		if idx >= 0 {
			c.state.Turns[idx].State = TurnError
			c.state.Turns[idx].AssistantText = gwerrors.GetMessage(err)
		}
		c.state.IsSending = false
		c.state.SendError = gwerrors.GetMessage(err)
		c.state.Banner = c.state.SendError
		c.emitLocked()
		return err
	}
	if idx >= 0 {
		c.state.Turns[idx].RunID = result.RunID
		c.state.Turns[idx].State = TurnStreaming
	}
	c.lastPendingRunID = result.RunID
	c.emitLocked()
	return nil
}

// AbortSend asks the gateway to cancel the in-flight run, if any.
func (c *Controller) AbortSend(ctx context.Context) error {
	c.mu.Lock()
	t := c.transport
	runID := c.lastPendingRunID
	c.mu.Unlock()
	if t == nil {
		return gwerrors.NotConnected("abort")
	}
	if runID == "" {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	err := t.Request(reqCtx, protocol.MethodChatAbort, protocol.ChatAbortParams{
		SessionKey: c.cfg.SessionKey,
		RunID:      runID,
	}, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.state.Turns {
		if c.state.Turns[i].RunID == runID && !c.state.Turns[i].State.IsTerminal() {
			c.state.Turns[i].State = TurnAborted
		}
	}
	if c.lastPendingRunID == runID {
		c.lastPendingRunID = ""
		c.state.IsSending = false
	}
	c.emitLocked()
	return nil
}

// RefreshHistory fetches chat history from the gateway and reconciles it
// with local in-flight turns. Concurrent calls coalesce onto one request
// and share its result.
func (c *Controller) RefreshHistory(ctx context.Context) error {
	c.mu.Lock()
	if c.transport == nil {
		err := gwerrors.NotConnected("refresh")
		c.state.SyncError = err.Message
		c.state.Banner = err.Message
		c.emitLocked()
		c.mu.Unlock()
		return err
	}
	if c.refreshDone != nil {
		done := c.refreshDone
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.refreshErr
	}
	done := make(chan struct{})
	c.refreshDone = done
	c.state.IsSyncing = true
	c.emitLocked()
	epoch := c.epoch
	t := c.transport
	c.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RefreshTimeout)
	defer cancel()
	var result protocol.ChatHistoryResult
	err := t.Request(reqCtx, protocol.MethodChatHistory, protocol.ChatHistoryParams{
		SessionKey: c.cfg.SessionKey,
	}, &result)
	if errors.Is(err, context.DeadlineExceeded) {
		err = gwerrors.RefreshTimeout()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		c.refreshDone = nil
		close(done)
	}()
	if epoch != c.epoch {
		// Stale: the result belongs to a connection that no longer
		// exists. Waiters see success without a state change.
		c.refreshErr = nil
		return nil
	}
	c.refreshErr = err
	c.state.IsSyncing = false
	if err != nil {
		c.state.SyncError = gwerrors.GetMessage(err)
		c.state.Banner = c.state.SyncError
		c.emitLocked()
		return err
	}
	c.state.SyncError = ""
	c.state.Turns = ReconcileHistory(historyToTurns(result.Turns), c.state.Turns, nil)
	c.emitLocked()
	return nil
}

// CheckHealth probes the gateway. Probes are single-flight: while one is
// in flight, callers get the last observed verdict without issuing a
// second request. Returns false only when the gateway reported degraded.
func (c *Controller) CheckHealth(ctx context.Context) bool {
	c.mu.Lock()
	if c.transport == nil {
		c.state.Health = HealthUnknown
		c.emitLocked()
		c.mu.Unlock()
		return false
	}
	if c.healthInFlight {
		healthy := c.state.Health != HealthDegraded
		c.mu.Unlock()
		return healthy
	}
	c.healthInFlight = true
	c.state.Health = HealthChecking
	c.emitLocked()
	epoch := c.epoch
	t := c.transport
	c.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	var result protocol.HealthResult
	err := t.Request(reqCtx, protocol.MethodHealth, nil, &result)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthInFlight = false
	if epoch != c.epoch {
		return true
	}
	if err != nil || !result.OK || len(result.Degraded) > 0 {
		c.state.Health = HealthDegraded
	} else {
		c.state.Health = HealthOK
	}
	c.state.HealthCheckedAt = c.now()
	c.emitLocked()
	return c.state.Health == HealthOK
}

// HandleChatEvent folds one streamed chat event into the matching turn.
// Events that omit the runId fall back to the pending send's run, so
// backends that leave it off deltas still stream correctly. Events naming
// a run no local turn owns are ignored.
func (c *Controller) HandleChatEvent(p protocol.ChatEventPayload) {
	if p.SessionKey != "" && p.SessionKey != c.cfg.SessionKey {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	if p.RunID != "" {
		// A named run must match a known turn; an event for some other
		// run on the same session is not ours to fold.
		idx = c.turnIndexByRunID(p.RunID)
	} else if c.lastPendingRunID != "" {
		idx = c.turnIndexByRunID(c.lastPendingRunID)
	}
	if idx < 0 {
		return
	}
	turn := &c.state.Turns[idx]
	if turn.State.IsTerminal() {
		return
	}

	normalized := NormalizeTurnState(p.State)
	fragment := ExtractText(p.Message)
	terminal := normalized == TurnComplete || normalized == TurnError ||
		p.StopReason != "" || payloadDoneFlag(p.Message)

	if !terminal {
		turn.AssistantText = MergeStreamText(turn.AssistantText, fragment)
		if inFlightStates[normalized] {
			turn.State = normalized
		} else {
			turn.State = TurnStreaming
		}
		c.emitLocked()
		return
	}

	final := MergeStreamText(turn.AssistantText, fragment)
	if final == "" || final == PlaceholderText {
		if protocol.StopReasonTokenLimit(p.StopReason) {
			final = truncatedNotice
		} else {
			final = emptyAnswerNotice
		}
	}
	if normalized == TurnError {
		turn.State = TurnError
		if p.ErrorMessage != "" {
			final = p.ErrorMessage
		}
		msg := p.ErrorMessage
		if msg == "" {
			msg = "Agent run failed"
		}
		c.state.SendError = msg
		c.state.Banner = msg
	} else {
		turn.State = TurnComplete
	}
	turn.AssistantText = final
	if turn.RunID == "" {
		turn.RunID = p.RunID
	}
	if c.lastPendingRunID == "" || c.lastPendingRunID == turn.RunID || turn.RunID == "" {
		c.lastPendingRunID = ""
		c.state.IsSending = false
	}
	c.emitLocked()
}

func (c *Controller) turnIndexByID(id string) int {
	for i := range c.state.Turns {
		if c.state.Turns[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) turnIndexByRunID(runID string) int {
	for i := range c.state.Turns {
		if c.state.Turns[i].RunID == runID {
			return i
		}
	}
	return -1
}

// eventPump routes gateway events for one connection. It exits when the
// transport's event channel closes.
func (c *Controller) eventPump(t Transport, epoch uint64) {
	for ev := range t.Events() {
		c.mu.Lock()
		stale := epoch != c.epoch
		c.mu.Unlock()
		if stale {
			return
		}

		switch ev.Event {
		case protocol.EventChat, protocol.EventAgent:
			var p protocol.ChatEventPayload
			if err := decodePayload(ev.Payload, &p); err != nil {
				log.Printf("session: bad chat event payload: %v", err)
				continue
			}
			c.HandleChatEvent(p)

		case protocol.EventSeqGap:
			// The gateway noticed we missed events; resync.
			go func() {
				if err := c.RefreshHistory(context.Background()); err != nil {
					log.Printf("session: seq-gap refresh failed: %v", err)
				}
			}()

		case protocol.EventShutdown:
			c.mu.Lock()
			c.state.Banner = "Gateway is shutting down"
			c.emitLocked()
			c.mu.Unlock()

		case protocol.EventHealth:
			var h protocol.HealthResult
			if err := decodePayload(ev.Payload, &h); err != nil {
				continue
			}
			c.mu.Lock()
			if epoch == c.epoch {
				if h.OK && len(h.Degraded) == 0 {
					c.state.Health = HealthOK
				} else {
					c.state.Health = HealthDegraded
				}
				c.state.HealthCheckedAt = c.now()
				c.emitLocked()
			}
			c.mu.Unlock()
		}
	}
}

// watchDone observes connection death and either reports disconnected or
// kicks off the reconnect loop.
func (c *Controller) watchDone(t Transport, epoch uint64) {
	<-t.Done()
	err := t.Err()

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	c.state.IsSending = false
	c.lastPendingRunID = ""
	if err != nil && c.cfg.AutoReconnect && !c.closed {
		c.state.Connection = ConnReconnecting
		c.emitLocked()
		c.mu.Unlock()
		log.Printf("session: connection lost, reconnecting: %v", err)
		go c.reconnectLoop(epoch)
		return
	}
	c.state.Connection = ConnDisconnected
	if err != nil {
		d := diagnose.Classify(err, c.cfg.HasToken)
		c.state.Diagnostic = &d
		c.state.Banner = d.Summary
	}
	c.emitLocked()
	c.mu.Unlock()
}

// reconnectLoop re-dials with linear backoff until a connect succeeds,
// attempts run out, or a user-driven connect/disconnect supersedes it.
func (c *Controller) reconnectLoop(epoch uint64) {
	attempt := 1
	var lastErr string
	for {
		plan := ComputeRetryPlan(RetryInput{
			Attempt:     attempt,
			MaxAttempts: c.cfg.RetryAttempts,
			BaseDelay:   c.cfg.RetryBaseDelay,
			ErrorText:   lastErr,
		})
		if !plan.ShouldRetry {
			c.mu.Lock()
			if epoch == c.epoch {
				c.state.Connection = ConnDisconnected
				c.state.Banner = "Reconnect failed: " + plan.LastError
				c.emitLocked()
			}
			c.mu.Unlock()
			return
		}
		time.Sleep(plan.Delay)

		c.mu.Lock()
		superseded := epoch != c.epoch
		c.mu.Unlock()
		if superseded {
			return
		}

		err := c.Connect(context.Background())
		if err == nil {
			return
		}
		lastErr = err.Error()
		c.mu.Lock()
		// Connect bumped the epoch; chain onto the new one so a manual
		// connect during the next sleep still supersedes us.
		epoch = c.epoch
		c.state.Connection = ConnReconnecting
		c.emitLocked()
		c.mu.Unlock()
		attempt = plan.NextAttempt
	}
}

// healthLoop probes gateway health on a fixed interval for the lifetime
// of one connection.
func (c *Controller) healthLoop(t Transport, epoch uint64) {
	ticker := time.NewTicker(c.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			stale := epoch != c.epoch
			c.mu.Unlock()
			if stale {
				return
			}
			c.CheckHealth(context.Background())
		}
	}
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// historyToTurns converts wire history turns to controller turns,
// normalizing backend state strings.
func historyToTurns(history []protocol.HistoryTurn) []Turn {
	out := make([]Turn, 0, len(history))
	for _, h := range history {
		out = append(out, Turn{
			ID:            h.ID,
			RunID:         h.RunID,
			UserText:      h.UserText,
			AssistantText: h.AssistantText,
			State:         NormalizeTurnState(h.State),
			CreatedAt:     time.UnixMilli(h.CreatedAt),
		})
	}
	return out
}
