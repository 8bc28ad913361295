package monitoring

import "time"

// Turn outcomes recorded in telemetry. Success includes turns that fell
// back to the unparseable-answer placeholder (they are still billed).
const (
	OutcomeSuccess     = "success"
	OutcomeTimeout     = "timeout"
	OutcomeTransport   = "transport_error"
	OutcomeRateLimited = "rate_limited"
	OutcomeStatusError = "status_error"
)

// TurnEvent records one prompt/response exchange, completed or failed.
type TurnEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
	Outcome       string    `json:"outcome"`
	PromptChars   int       `json:"prompt_chars"`
	ResponseChars int       `json:"response_chars,omitempty"`
	UsageDelta    int       `json:"usage_delta,omitempty"`
	UsageTotal    int       `json:"usage_total,omitempty"`
	LatencyMs     int64     `json:"latency_ms"`
}

// ConnectionEvent records a connection opening or closing.
type ConnectionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Event     string    `json:"event"` // "connect" or "disconnect"
	Turns     int       `json:"turns,omitempty"`
	Usage     int       `json:"usage,omitempty"`
}
