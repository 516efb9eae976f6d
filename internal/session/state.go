// Package session implements the chat session controller for the Gateway
// protocol: connection and health state machines, the turn list, streaming
// event folding, and the pure helper engines (stream merge, send dispatch
// deduplication, history reconciliation, reconnect planning).
//
// All controller state transitions happen under a single mutex and every
// change produces a fresh immutable snapshot, so subscribers observe a
// total order of state versions.
package session

import (
	"strings"
	"time"

	"github.com/gatewaylink/client/internal/diagnose"
)

// ConnState is the connection lifecycle state.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
)

// HealthState is the gateway health as observed by the probe loop.
type HealthState string

const (
	HealthUnknown  HealthState = "unknown"
	HealthChecking HealthState = "checking"
	HealthOK       HealthState = "ok"
	HealthDegraded HealthState = "degraded"
)

// TurnState is the lifecycle state of one chat turn.
type TurnState string

const (
	TurnQueued    TurnState = "queued"
	TurnSending   TurnState = "sending"
	TurnStreaming TurnState = "streaming"
	TurnDelta     TurnState = "delta"
	TurnComplete  TurnState = "complete"
	TurnError     TurnState = "error"
	TurnAborted   TurnState = "aborted"
)

// IsTerminal reports whether the state is final for a turn.
func (s TurnState) IsTerminal() bool {
	return s == TurnComplete || s == TurnError || s == TurnAborted
}

// inFlightStates are the turn states the history reconciler treats as
// still pending locally.
var inFlightStates = map[TurnState]bool{
	TurnSending:   true,
	TurnQueued:    true,
	TurnDelta:     true,
	TurnStreaming: true,
}

// NormalizeTurnState maps the many raw textual states different agent
// backends emit onto the controller's canonical turn states. Unrecognized
// values pass through unchanged.
func NormalizeTurnState(raw string) TurnState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ok", "done", "completed", "success", "final", "finished", "finish", "end", "ended", "stop", "stopped", "complete":
		return TurnComplete
	case "fail", "failed", "err", "error":
		return TurnError
	}
	return TurnState(raw)
}

// Turn is one user/assistant exchange. Turns are owned exclusively by the
// Controller; snapshots hand out copies, never the originals.
type Turn struct {
	// ID is unique for the lifetime of a session.
	ID string

	// RunID is attached once the send request is acknowledged and is
	// unique while streaming.
	RunID string

	UserText      string
	AssistantText string
	State         TurnState
	CreatedAt     time.Time
}

// ControllerState is the aggregate snapshot exposed to subscribers.
// A new value is produced on every change; Turns is deep-copied so
// subscribers can diff cheaply and never observe mutation.
type ControllerState struct {
	Connection ConnState
	Turns      []Turn
	IsSending  bool
	IsSyncing  bool

	// SyncError and SendError are the last recorded refresh/send failure
	// messages; empty when the last operation succeeded.
	SyncError string
	SendError string

	// Banner is a transient user-facing notice. The UI layer clears it
	// explicitly via ClearBanner.
	Banner string

	LastUpdatedAt time.Time
	SessionKey    string

	Health          HealthState
	HealthCheckedAt time.Time

	// Diagnostic is the classified result of the last connect failure,
	// nil after a successful connect.
	Diagnostic *diagnose.Diagnostic
}

// clone deep-copies the snapshot-visible parts of the state.
func (s ControllerState) clone() ControllerState {
	out := s
	out.Turns = make([]Turn, len(s.Turns))
	copy(out.Turns, s.Turns)
	if s.Diagnostic != nil {
		d := *s.Diagnostic
		out.Diagnostic = &d
	}
	return out
}
