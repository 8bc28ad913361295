package upstream

import (
	"fmt"
	"time"
)

// FailureKind classifies a failed completion call.
type FailureKind string

const (
	// FailureTimeout: the call exceeded the configured deadline.
	FailureTimeout FailureKind = "timeout"
	// FailureTransport: the request never completed (DNS, connect, TLS,
	// connection reset).
	FailureTransport FailureKind = "transport"
	// FailureRateLimited: upstream returned 429.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureStatus: upstream returned any other non-2xx status.
	FailureStatus FailureKind = "status"
)

// CallError is returned for every failed completion call. The gateway
// never retries; callers surface UserMessage to the client and abort the
// turn.
type CallError struct {
	Kind FailureKind
	// Status is the HTTP status for rate-limit and status failures.
	Status int
	// RetryAfter is the upstream's suggested wait in seconds (429 only).
	RetryAfter int
	// Body is the raw upstream response body, when one was received.
	Body string
	// Timeout is the deadline that expired (timeout failures only).
	Timeout time.Duration

	Err error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case FailureRateLimited:
		return fmt.Sprintf("upstream rate limited (retry after %ds)", e.RetryAfter)
	case FailureStatus:
		return fmt.Sprintf("upstream returned status %d", e.Status)
	case FailureTimeout:
		return fmt.Sprintf("upstream call timed out after %s", e.Timeout)
	default:
		return fmt.Sprintf("upstream call failed: %v", e.Err)
	}
}

func (e *CallError) Unwrap() error { return e.Err }

// UserMessage returns the human-readable description sent to the client.
func (e *CallError) UserMessage() string {
	switch e.Kind {
	case FailureRateLimited:
		return fmt.Sprintf("Rate limit exceeded. Please wait %d seconds before sending another message.", e.RetryAfter)
	case FailureTimeout:
		return fmt.Sprintf("Request timeout after %d seconds. The AI service is taking longer than expected to generate your response. Please try a shorter prompt or try again later.", int(e.Timeout.Seconds()))
	case FailureStatus:
		return fmt.Sprintf("API Error: %d - Unable to process your request at this time.", e.Status)
	default:
		return "AI service unavailable. Please try again later."
	}
}
