package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costoptimizer/chat-relay/internal/config"
)

func TestTracker_DisabledWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turns.jsonl")
	tracker, err := NewTracker(config.TelemetryConfig{Enabled: false, LogPath: path})
	require.NoError(t, err)

	tracker.RecordTurn(&TurnEvent{Timestamp: time.Now(), SessionID: "s1", Outcome: OutcomeSuccess})
	require.NoError(t, tracker.Close())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "disabled tracker must not create files")
}

func TestTracker_AppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "turns.jsonl")
	tracker, err := NewTracker(config.TelemetryConfig{Enabled: true, LogPath: path})
	require.NoError(t, err)

	tracker.RecordTurn(&TurnEvent{
		Timestamp:   time.Now(),
		SessionID:   "session-1",
		Outcome:     OutcomeSuccess,
		PromptChars: 2,
		UsageDelta:  3,
		UsageTotal:  3,
	})
	tracker.RecordTurn(&TurnEvent{
		Timestamp: time.Now(),
		SessionID: "session-1",
		Outcome:   OutcomeTimeout,
	})
	tracker.RecordConnection(&ConnectionEvent{
		Timestamp: time.Now(),
		SessionID: "session-1",
		Event:     "disconnect",
		Turns:     2,
	})
	require.NoError(t, tracker.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var first TurnEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "session-1", first.SessionID)
	assert.Equal(t, OutcomeSuccess, first.Outcome)
	assert.Equal(t, 3, first.UsageDelta)

	var second TurnEvent
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, OutcomeTimeout, second.Outcome)

	var third ConnectionEvent
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &third))
	assert.Equal(t, "disconnect", third.Event)
	assert.Equal(t, 2, third.Turns)
}
