package protocol

// Attachment kinds accepted by chat.send.
const (
	AttachmentTypeImage = "image"
	AttachmentTypeFile  = "file"
)

// Attachment is one file or image attached to a chat send.
type Attachment struct {
	// Type is "image" or "file".
	Type string `json:"type"`

	// MimeType is the content type (e.g. "image/png").
	MimeType string `json:"mimeType"`

	// FileName is the original file name.
	FileName string `json:"fileName"`

	// Content is the base64-encoded file content.
	Content string `json:"content"`
}

// ChatSendParams is the payload of a chat.send request.
type ChatSendParams struct {
	// SessionKey identifies the chat session on the gateway.
	SessionKey string `json:"sessionKey"`

	// Message is the user's text.
	Message string `json:"message"`

	// Thinking optionally requests extended reasoning from the agent.
	Thinking string `json:"thinking,omitempty"`

	// Attachments are the normalized attachments, if any.
	Attachments []Attachment `json:"attachments,omitempty"`

	// IdempotencyKey deduplicates retries of the same logical send on
	// the gateway side. Immutable once attached to a dispatched send.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`

	// TimeoutMs optionally bounds agent processing time.
	TimeoutMs int `json:"timeoutMs,omitempty"`
}

// ChatSendResult is the payload of a successful chat.send response.
type ChatSendResult struct {
	// RunID identifies the agent run that will stream chat events.
	RunID string `json:"runId"`

	// Status is the initial run status (typically "started").
	Status string `json:"status"`
}

// ChatHistoryParams is the payload of a chat.history request.
type ChatHistoryParams struct {
	SessionKey string `json:"sessionKey"`

	// Limit optionally caps the number of returned turns (newest last).
	Limit int `json:"limit,omitempty"`
}

// HistoryTurn is one recorded exchange in a chat.history response.
type HistoryTurn struct {
	ID            string `json:"id"`
	RunID         string `json:"runId,omitempty"`
	UserText      string `json:"userText"`
	AssistantText string `json:"assistantText"`
	State         string `json:"state"`

	// CreatedAt is Unix milliseconds.
	CreatedAt int64 `json:"createdAt"`
}

// ChatHistoryResult is the payload of a successful chat.history response.
type ChatHistoryResult struct {
	SessionKey string        `json:"sessionKey"`
	Turns      []HistoryTurn `json:"turns"`
}

// ChatAbortParams is the payload of a chat.abort request.
type ChatAbortParams struct {
	SessionKey string `json:"sessionKey"`
	RunID      string `json:"runId"`
}

// ChatEventPayload is the payload of a "chat" event. The gateway streams
// one or more of these per run while the agent produces output.
//
// Message shapes vary by agent backend: the streamed text may be nested
// under message, content, text, or output. internal/session extracts text
// from the raw payload rather than relying on a fixed field.
type ChatEventPayload struct {
	RunID      string `json:"runId"`
	SessionKey string `json:"sessionKey"`

	// Seq orders deltas within a run. Duplicated or out-of-order deltas
	// are tolerated by the client's merge engine.
	Seq *int64 `json:"seq,omitempty"`

	// State is the raw run state ("delta", "complete", "error", ...).
	State string `json:"state"`

	// Message carries the streamed payload. Shape varies by backend.
	Message interface{} `json:"message,omitempty"`

	// ErrorMessage is set when State indicates a failure.
	ErrorMessage string `json:"errorMessage,omitempty"`

	// Usage optionally reports token accounting for the run.
	Usage map[string]int64 `json:"usage,omitempty"`

	// StopReason is set on terminal events ("end_turn", "max_tokens", ...).
	StopReason string `json:"stopReason,omitempty"`
}

// StopReasonTokenLimit values indicate the agent hit a token limit and
// output may be truncated.
func StopReasonTokenLimit(reason string) bool {
	switch reason {
	case "max_tokens", "length", "token_limit", "max_output_tokens":
		return true
	}
	return false
}

// HealthResult is the payload of a health response.
type HealthResult struct {
	OK bool `json:"ok"`

	// Degraded lists subsystems that are up but unhealthy.
	Degraded []string `json:"degraded,omitempty"`
}
