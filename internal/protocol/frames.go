// Package protocol defines the wire vocabulary for the Gateway protocol:
// JSON text frames, one object per frame, carrying requests, responses,
// and events between a client and a gateway over a persistent socket.
//
// The package contains types and constants only. Framing behavior
// (correlation, dispatch, reconnection) lives in internal/transport and
// internal/session.
package protocol

import "encoding/json"

// FrameType is the `type` discriminator present on every frame.
type FrameType string

const (
	// FrameTypeRequest is a client-initiated request. Payload: RequestFrame.
	FrameTypeRequest FrameType = "req"

	// FrameTypeResponse is the gateway's answer to a request, correlated
	// by id. Payload: ResponseFrame.
	FrameTypeResponse FrameType = "res"

	// FrameTypeEvent is a gateway-initiated notification. Events are not
	// correlated to requests. Payload: EventFrame.
	FrameTypeEvent FrameType = "event"
)

// Method names the client sends. The gateway rejects unknown methods with
// an INVALID_REQUEST error.
const (
	MethodConnect         = "connect"
	MethodHealth          = "health"
	MethodChatHistory     = "chat.history"
	MethodChatSend        = "chat.send"
	MethodChatAbort       = "chat.abort"
	MethodSessionsList    = "sessions.list"
	MethodSessionsPreview = "sessions.preview"
	MethodSessionsResolve = "sessions.resolve"
	MethodSessionsPatch   = "sessions.patch"
	MethodSessionsReset   = "sessions.reset"
	MethodSessionsDelete  = "sessions.delete"
	MethodSystemPresence  = "system-presence"
)

// Event names the gateway emits.
const (
	EventTick                  = "tick"
	EventHealth                = "health"
	EventChat                  = "chat"
	EventAgent                 = "agent"
	EventSeqGap                = "seqGap"
	EventConnectChallenge      = "connect.challenge"
	EventShutdown              = "shutdown"
	EventPresence              = "presence"
	EventDevicePairRequested   = "device.pair.requested"
	EventDevicePairResolved    = "device.pair.resolved"
	EventExecApprovalRequested = "exec.approval.requested"
)

// Error codes in response frames. These are stable identifiers the client
// can rely on for programmatic handling.
const (
	// ErrorNotLinked means the gateway has no linked agent to serve the
	// request. The user must complete linking before chatting.
	ErrorNotLinked = "NOT_LINKED"

	// ErrorNotPaired means this device is not paired with the gateway.
	ErrorNotPaired = "NOT_PAIRED"

	// ErrorAgentTimeout means the agent did not answer within the
	// gateway's deadline. The request may be retried.
	ErrorAgentTimeout = "AGENT_TIMEOUT"

	// ErrorInvalidRequest means the request was malformed or named an
	// unknown method.
	ErrorInvalidRequest = "INVALID_REQUEST"

	// ErrorUnavailable means the gateway is up but cannot serve the
	// request right now (restarting, overloaded).
	ErrorUnavailable = "UNAVAILABLE"
)

// RequestFrame is a client request. Id is caller-generated and must be
// unique per in-flight request; the matching ResponseFrame echoes it.
type RequestFrame struct {
	// Type is always FrameTypeRequest.
	Type FrameType `json:"type"`

	// ID correlates this request with its response.
	ID string `json:"id"`

	// Method is the operation name (see Method* constants).
	Method string `json:"method"`

	// Params carries method-specific parameters. May be nil.
	Params interface{} `json:"params,omitempty"`
}

// ResponseFrame is the gateway's answer to a RequestFrame.
type ResponseFrame struct {
	// Type is always FrameTypeResponse.
	Type FrameType `json:"type"`

	// ID echoes the request id.
	ID string `json:"id"`

	// OK reports whether the request succeeded. When false, Error is set
	// and Payload is absent.
	OK bool `json:"ok"`

	// Payload carries the method-specific result on success. Kept raw so
	// callers decode into their own result types.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Error describes the failure when OK is false.
	Error *ErrorShape `json:"error,omitempty"`
}

// EventFrame is a gateway-initiated notification.
type EventFrame struct {
	// Type is always FrameTypeEvent.
	Type FrameType `json:"type"`

	// Event is the event name (see Event* constants).
	Event string `json:"event"`

	// Payload carries event-specific data. Kept raw so consumers decode
	// into their own payload types.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Seq is an optional per-stream sequence number. Gaps are reported
	// by the gateway via the seqGap event.
	Seq *int64 `json:"seq,omitempty"`

	// StateVersion is an optional monotonic version of the gateway's
	// authoritative state at emission time.
	StateVersion *int64 `json:"stateVersion,omitempty"`
}

// ErrorShape is the error body inside a failed ResponseFrame.
type ErrorShape struct {
	// Code is one of the Error* constants.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// RetryAfterMs optionally hints when the request may be retried.
	RetryAfterMs *int64 `json:"retryAfterMs,omitempty"`
}

// NewRequest creates a request frame for the given method and params.
func NewRequest(id, method string, params interface{}) RequestFrame {
	return RequestFrame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
		Params: params,
	}
}

// FramePeek is the minimal decode target used to route an incoming frame
// by its discriminator before a full decode.
type FramePeek struct {
	Type FrameType `json:"type"`
}
