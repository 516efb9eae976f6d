package session

import (
	"encoding/json"
	"testing"
)

func TestExtractTextShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string // JSON
		want    string
	}{
		{"bare string", `"hello"`, "hello"},
		{"text field", `{"text":"hello"}`, "hello"},
		{"nested message", `{"message":{"content":"hello"}}`, "hello"},
		{"content array", `{"content":[{"text":"one"},{"text":"two"}]}`, "one\ntwo"},
		{"output field", `{"output":"result"}`, "result"},
		{"delta field", `{"delta":{"text":"chunk"}}`, "chunk"},
		{"unknown shape", `{"unfamiliar":"ignored"}`, ""},
		{"number", `42`, ""},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload interface{}
			if err := json.Unmarshal([]byte(tt.payload), &payload); err != nil {
				t.Fatalf("bad test payload: %v", err)
			}
			if got := ExtractText(payload); got != tt.want {
				t.Errorf("ExtractText(%s) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}

// TestExtractTextDeduplicatesLines verifies repeated lines across nested
// shapes collapse in first-seen order.
func TestExtractTextDeduplicatesLines(t *testing.T) {
	var payload interface{}
	raw := `{"content":[{"text":"hello"},{"message":"hello"},{"text":"world"}]}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatal(err)
	}
	if got := ExtractText(payload); got != "hello\nworld" {
		t.Errorf("got %q, want %q", got, "hello\nworld")
	}
}

// TestExtractTextDepthBound verifies the walk stops at the recursion
// bound instead of chasing arbitrarily deep nesting.
func TestExtractTextDepthBound(t *testing.T) {
	deep := map[string]interface{}{}
	current := deep
	for i := 0; i < maxExtractDepth+5; i++ {
		next := map[string]interface{}{}
		current["message"] = next
		current = next
	}
	current["text"] = "too deep"

	if got := ExtractText(deep); got != "" {
		t.Errorf("expected empty result beyond depth bound, got %q", got)
	}
}

func TestPayloadDoneFlag(t *testing.T) {
	if !payloadDoneFlag(map[string]interface{}{"done": true}) {
		t.Error("done=true should be terminal")
	}
	if !payloadDoneFlag(map[string]interface{}{"final": true, "text": "x"}) {
		t.Error("final=true should be terminal")
	}
	if payloadDoneFlag(map[string]interface{}{"done": false}) {
		t.Error("done=false is not terminal")
	}
	if payloadDoneFlag("just text") {
		t.Error("non-map payloads carry no flags")
	}
}
