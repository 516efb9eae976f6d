// Package gwerrors provides standardized error codes for the client runtime.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (gateway, connect, send, refresh, transport)
//   - error: The specific error type within that domain
//
// Gateway-domain codes mirror the wire protocol's error taxonomy so callers
// can match on a single code space regardless of whether a failure was
// reported by the gateway or detected locally.
package gwerrors

import (
	"errors"
	"fmt"

	"github.com/gatewaylink/client/internal/protocol"
)

// Error codes by domain.
const (
	// Gateway domain - failures reported by the gateway in response frames
	CodeGatewayNotLinked      = "gateway.not_linked"      // No linked agent available
	CodeGatewayNotPaired      = "gateway.not_paired"      // Device is not paired
	CodeGatewayAgentTimeout   = "gateway.agent_timeout"   // Agent did not answer in time
	CodeGatewayInvalidRequest = "gateway.invalid_request" // Malformed request or unknown method
	CodeGatewayUnavailable    = "gateway.unavailable"     // Gateway cannot serve the request right now

	// Connect domain - connection lifecycle failures detected locally
	CodeNotConnected    = "connect.not_connected"    // Operation requires a connected transport
	CodeHandshakeFailed = "connect.handshake_failed" // Connect handshake was rejected

	// Send domain - sendMessage preconditions
	CodeSendEmpty          = "send.empty"           // No text and no attachments
	CodeSendAlreadySending = "send.already_sending" // A send is already in flight
	CodeSendDuplicateRapid = "send.duplicate_rapid" // Identical send within the duplicate window

	// Refresh domain - history refresh failures (recorded, never thrown)
	CodeRefreshTimeout = "refresh.timeout" // History request exceeded its deadline
	CodeRefreshFailed  = "refresh.failed"  // History request failed

	// Transport domain - socket-level failures
	CodeTransportClosed         = "transport.closed"          // Connection closed while a request was in flight
	CodeTransportRequestTimeout = "transport.request_timeout" // No response within the request deadline

	// General domain - catch-all
	CodeUnknown = "error.unknown"
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "send.duplicate_rapid")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to banner text.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// FromWire converts a protocol error shape into a CodedError, mapping the
// wire code taxonomy onto the gateway domain. Unrecognized wire codes keep
// their message but classify as unknown.
func FromWire(shape *protocol.ErrorShape) *CodedError {
	if shape == nil {
		return New(CodeUnknown, "gateway reported an unspecified error")
	}

	code := CodeUnknown
	switch shape.Code {
	case protocol.ErrorNotLinked:
		code = CodeGatewayNotLinked
	case protocol.ErrorNotPaired:
		code = CodeGatewayNotPaired
	case protocol.ErrorAgentTimeout:
		code = CodeGatewayAgentTimeout
	case protocol.ErrorInvalidRequest:
		code = CodeGatewayInvalidRequest
	case protocol.ErrorUnavailable:
		code = CodeGatewayUnavailable
	}

	return New(code, shape.Message)
}

// Common error constructors for frequently used error types.

// NotConnected creates a "connect.not_connected" error.
func NotConnected(operation string) *CodedError {
	return New(CodeNotConnected, fmt.Sprintf("%s requires an active connection", operation))
}

// EmptySend creates a "send.empty" error.
func EmptySend() *CodedError {
	return New(CodeSendEmpty, "message is empty and has no attachments")
}

// AlreadySending creates a "send.already_sending" error.
func AlreadySending() *CodedError {
	return New(CodeSendAlreadySending, "a send is already in flight")
}

// DuplicateRapid creates a "send.duplicate_rapid" error.
// This absorbs double-taps and double key-presses of the same message.
func DuplicateRapid() *CodedError {
	return New(CodeSendDuplicateRapid, "identical message sent moments ago")
}

// RefreshTimeout creates a "refresh.timeout" error.
func RefreshTimeout() *CodedError {
	return New(CodeRefreshTimeout, "history refresh timed out")
}

// TransportClosed creates a "transport.closed" error.
func TransportClosed(cause error) *CodedError {
	return Wrap(CodeTransportClosed, "connection closed", cause)
}

// RequestTimeout creates a "transport.request_timeout" error.
func RequestTimeout(method string) *CodedError {
	return New(CodeTransportRequestTimeout, fmt.Sprintf("no response to %s within deadline", method))
}

// HandshakeFailed creates a "connect.handshake_failed" error.
func HandshakeFailed(cause error) *CodedError {
	return Wrap(CodeHandshakeFailed, "gateway rejected the connect handshake", cause)
}
