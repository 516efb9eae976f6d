package session

import "time"

// RetryInput describes one failed auto-connect attempt.
type RetryInput struct {
	// Attempt is the 1-based attempt number that just failed.
	Attempt int

	// MaxAttempts is the total number of attempts allowed.
	MaxAttempts int

	// BaseDelay scales the linear backoff: delay = BaseDelay * Attempt.
	BaseDelay time.Duration

	// ErrorText is the failure message of this attempt.
	ErrorText string
}

// RetryPlan is the planner's decision. The planner is pure; the caller
// schedules Delay and invokes connect again when ShouldRetry is true.
type RetryPlan struct {
	ShouldRetry bool
	NextAttempt int
	Delay       time.Duration

	// LastError carries the final failure text when retries are
	// exhausted, for surfacing a manual-reconnect prompt.
	LastError string
}

// ComputeRetryPlan decides whether a failed auto-connect attempt should be
// retried and after what delay. Backoff is linear: attempt 1 waits
// BaseDelay, attempt 2 waits twice that, and so on. At MaxAttempts the
// planner gives up and surfaces the last error for manual reconnection.
func ComputeRetryPlan(in RetryInput) RetryPlan {
	if in.Attempt < in.MaxAttempts {
		return RetryPlan{
			ShouldRetry: true,
			NextAttempt: in.Attempt + 1,
			Delay:       in.BaseDelay * time.Duration(in.Attempt),
		}
	}
	return RetryPlan{
		ShouldRetry: false,
		NextAttempt: in.Attempt,
		Delay:       0,
		LastError:   in.ErrorText,
	}
}
