// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// USAGE ESTIMATION
// =============================================================================

// UsageEstimateRatio is the approximate number of characters per usage unit.
// Used by the heuristic estimator when BPE counting is not configured.
const UsageEstimateRatio = 4

// DefaultUsageThreshold is the per-session usage ceiling. A session that
// reaches it has further prompts rejected.
const DefaultUsageThreshold = 10000

// CreditWarningRatio is the fraction of the threshold at which a
// CREDIT_WARNING is sent (0.8 = warn at 80% usage).
const CreditWarningRatio = 0.8

// =============================================================================
// UPSTREAM CALL PACING
// =============================================================================

// DefaultMinCallInterval is the process-wide minimum spacing between
// upstream calls. Shared across all connections.
const DefaultMinCallInterval = 2 * time.Second

// DefaultUpstreamTimeout covers slow generation; upstream latency is
// seconds to minutes.
const DefaultUpstreamTimeout = 300 * time.Second

// DefaultRetryAfterSeconds is the retry hint reported to the user when the
// upstream rate-limits us without a Retry-After header.
const DefaultRetryAfterSeconds = 60

// MaxUpstreamResponseSize is the maximum upstream response body read (10MB).
const MaxUpstreamResponseSize = 10 * 1024 * 1024

// MaxAnswerFallbackChars bounds the raw-envelope fallback when no known
// answer field matches. Larger envelopes degrade to a placeholder.
const MaxAnswerFallbackChars = 10000

// =============================================================================
// STREAMING
// =============================================================================

// DefaultChunkSize is the number of characters per streamed AI_TOKEN event.
const DefaultChunkSize = 20

// DefaultChunkDelay is the cosmetic pause between streamed chunks.
const DefaultChunkDelay = 50 * time.Millisecond

// =============================================================================
// HTTP AND NETWORKING
// =============================================================================

// DefaultListenAddr is the server bind address.
const DefaultListenAddr = ":8000"

// DefaultReadHeaderTimeout for the HTTP server.
const DefaultReadHeaderTimeout = 10 * time.Second

// MaxInboundMessageBytes limits a single client WebSocket frame.
const MaxInboundMessageBytes = 64 * 1024
