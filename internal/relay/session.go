package relay

import (
	"time"

	"github.com/google/uuid"
)

// Transcript roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Turn is one transcript entry.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Session is the per-connection conversation state. It is owned by
// exactly one Controller for the lifetime of the connection and is never
// shared or persisted; the optional archive copies completed turns out.
//
// The transcript is append-only and currently write-only: upstream calls
// are context-free, so it exists for display and archival, not replay.
type Session struct {
	ID         string
	Transcript []Turn
	UsageCount int
	Threshold  int
	StartedAt  time.Time
}

// NewSession allocates a fresh session with zero usage. Never fails and
// makes no external calls.
func NewSession(threshold int) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Threshold: threshold,
		StartedAt: time.Now(),
	}
}

// AppendUser appends a user turn to the transcript.
func (s *Session) AppendUser(text string) {
	s.Transcript = append(s.Transcript, Turn{Role: RoleUser, Text: text})
}

// AppendAgent appends an agent turn to the transcript.
func (s *Session) AppendAgent(text string) {
	s.Transcript = append(s.Transcript, Turn{Role: RoleAgent, Text: text})
}

// AddUsage increments the usage counter and returns the new total. The
// counter never decreases; only the controller calls this, immediately
// after a successful upstream exchange.
func (s *Session) AddUsage(n int) int {
	s.UsageCount += n
	return s.UsageCount
}

// Exhausted reports whether the session has reached its usage threshold.
func (s *Session) Exhausted() bool {
	return s.UsageCount >= s.Threshold
}
