package session

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Dedup windows for send dispatch.
const (
	// DuplicateWindow is how long an identical send is treated as an
	// accidental double-submit (double-tap, double key-press) and blocked.
	DuplicateWindow = 1400 * time.Millisecond

	// ReuseWindow is how long an identical send keeps the original
	// idempotency key, so client-side retries of the same logical send
	// dedupe on the gateway.
	ReuseWindow = 60 * time.Second
)

// ReasonDuplicateRapid is the block reason for sends inside
// DuplicateWindow.
const ReasonDuplicateRapid = "duplicate-rapid"

// SendFingerprint records the last dispatched send. It is replaced
// atomically on every dispatch decision that is not blocked.
type SendFingerprint struct {
	SessionKey string

	// Message is the normalized message text (whitespace collapsed,
	// trimmed).
	Message string

	// SentAt is when this send was last dispatched. The duplicate-rapid
	// window measures from here, so a double-tap right after a reused
	// retry is still caught.
	SentAt time.Time

	// KeyMintedAt is when IdempotencyKey was minted. The reuse window
	// measures from here, so a chain of retries cannot keep an old key
	// alive indefinitely.
	KeyMintedAt time.Time

	// IdempotencyKey is immutable once attached to a dispatched send.
	IdempotencyKey string
}

// DispatchDecision is the outcome of ResolveSendDispatch.
type DispatchDecision struct {
	// Blocked means the send must not be dispatched. Reason is set and
	// IdempotencyKey echoes the previous dispatch's key.
	Blocked bool
	Reason  string

	// IdempotencyKey is the key to attach to the send.
	IdempotencyKey string

	// ReusedIdempotencyKey means the key came from the previous
	// fingerprint rather than being freshly minted.
	ReusedIdempotencyKey bool

	// Fingerprint is the replacement fingerprint. Only meaningful when
	// the send is not blocked.
	Fingerprint SendFingerprint
}

// sendCounter makes idempotency keys monotonically distinguishable in
// addition to unique. The key is never interpreted by the client itself.
var sendCounter atomic.Uint64

func mintIdempotencyKey() string {
	return fmt.Sprintf("send-%d-%s", sendCounter.Add(1), uuid.NewString())
}

// NormalizeMessage collapses runs of whitespace to single spaces and trims
// the result. Dedup comparisons run over normalized text so trailing
// newlines or double spaces don't defeat duplicate detection.
func NormalizeMessage(message string) string {
	return strings.Join(strings.Fields(message), " ")
}

// ResolveSendDispatch decides whether a new send may be dispatched and
// which idempotency key it carries.
//
//   - Identical to the previous send (same session, same normalized
//     message) within DuplicateWindow: blocked with ReasonDuplicateRapid,
//     reporting the previous key.
//   - Identical within ReuseWindow: dispatched reusing the previous key
//     (covers automatic retries of the same logical send).
//   - Otherwise: dispatched with a freshly minted key.
//
// previous may be nil for the first send of a session.
func ResolveSendDispatch(previous *SendFingerprint, sessionKey, message string, now time.Time) DispatchDecision {
	normalized := NormalizeMessage(message)

	if previous != nil && previous.SessionKey == sessionKey && previous.Message == normalized {
		sinceDispatch := now.Sub(previous.SentAt)
		if sinceDispatch >= 0 && sinceDispatch < DuplicateWindow {
			return DispatchDecision{
				Blocked:        true,
				Reason:         ReasonDuplicateRapid,
				IdempotencyKey: previous.IdempotencyKey,
			}
		}
		sinceMint := now.Sub(previous.KeyMintedAt)
		if sinceMint >= 0 && sinceMint < ReuseWindow {
			return DispatchDecision{
				IdempotencyKey:       previous.IdempotencyKey,
				ReusedIdempotencyKey: true,
				Fingerprint: SendFingerprint{
					SessionKey:     sessionKey,
					Message:        normalized,
					SentAt:         now,
					KeyMintedAt:    previous.KeyMintedAt,
					IdempotencyKey: previous.IdempotencyKey,
				},
			}
		}
	}

	key := mintIdempotencyKey()
	return DispatchDecision{
		IdempotencyKey: key,
		Fingerprint: SendFingerprint{
			SessionKey:     sessionKey,
			Message:        normalized,
			SentAt:         now,
			KeyMintedAt:    now,
			IdempotencyKey: key,
		},
	}
}
