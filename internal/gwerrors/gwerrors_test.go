package gwerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gatewaylink/client/internal/protocol"
)

func TestCodedErrorFormat(t *testing.T) {
	err := New(CodeSendEmpty, "message is empty")
	want := "send.empty: message is empty"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := Wrap(CodeTransportClosed, "connection closed", errors.New("EOF"))
	want = "transport.closed: connection closed (EOF)"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestUnwrapSupportsErrorsIs(t *testing.T) {
	cause := errors.New("socket reset")
	err := TransportClosed(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	// Wrapping again with fmt should still expose the code via errors.As.
	outer := fmt.Errorf("request failed: %w", err)
	if GetCode(outer) != CodeTransportClosed {
		t.Errorf("GetCode through fmt wrap = %q, want %q", GetCode(outer), CodeTransportClosed)
	}
}

func TestGetCodeFallsBackToUnknown(t *testing.T) {
	if got := GetCode(errors.New("plain")); got != CodeUnknown {
		t.Errorf("GetCode(plain) = %q, want %q", got, CodeUnknown)
	}
	if got := GetCode(nil); got != "" {
		t.Errorf("GetCode(nil) = %q, want empty", got)
	}
}

func TestToCodeAndMessage(t *testing.T) {
	code, msg := ToCodeAndMessage(DuplicateRapid())
	if code != CodeSendDuplicateRapid {
		t.Errorf("code = %q, want %q", code, CodeSendDuplicateRapid)
	}
	if msg == "" {
		t.Error("expected non-empty message")
	}

	code, msg = ToCodeAndMessage(errors.New("boom"))
	if code != CodeUnknown || msg != "boom" {
		t.Errorf("got (%q, %q), want (%q, %q)", code, msg, CodeUnknown, "boom")
	}
}

func TestFromWire(t *testing.T) {
	tests := []struct {
		wire string
		want string
	}{
		{protocol.ErrorNotLinked, CodeGatewayNotLinked},
		{protocol.ErrorNotPaired, CodeGatewayNotPaired},
		{protocol.ErrorAgentTimeout, CodeGatewayAgentTimeout},
		{protocol.ErrorInvalidRequest, CodeGatewayInvalidRequest},
		{protocol.ErrorUnavailable, CodeGatewayUnavailable},
		{"SOMETHING_NEW", CodeUnknown},
	}

	for _, tt := range tests {
		err := FromWire(&protocol.ErrorShape{Code: tt.wire, Message: "m"})
		if err.Code != tt.want {
			t.Errorf("FromWire(%s) = %q, want %q", tt.wire, err.Code, tt.want)
		}
	}

	if err := FromWire(nil); err.Code != CodeUnknown {
		t.Errorf("FromWire(nil) = %q, want %q", err.Code, CodeUnknown)
	}
}
