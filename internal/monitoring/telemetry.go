// Package monitoring records relay events to JSONL files.
//
// DESIGN: Tracker writes structured events as JSONL (one JSON object per line):
//   - TurnEvent:       every prompt/response exchange, completed or failed
//   - ConnectionEvent: WebSocket connect/disconnect
//
// Events are appended immediately after each event for real-time logging.
package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/costoptimizer/chat-relay/internal/config"
)

// Tracker handles telemetry event recording to file and stdout. A
// disabled tracker is a cheap no-op; callers never need nil checks.
type Tracker struct {
	config    config.TelemetryConfig
	logPath   string
	turnCount int
	mu        sync.Mutex
}

// NewTracker creates a telemetry tracker.
func NewTracker(cfg config.TelemetryConfig) (*Tracker, error) {
	t := &Tracker{config: cfg}

	if !cfg.Enabled || cfg.LogPath == "" {
		return t, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0750); err != nil {
		return nil, err
	}
	t.logPath = cfg.LogPath
	if _, err := os.Stat(cfg.LogPath); os.IsNotExist(err) {
		if f, err := os.Create(cfg.LogPath); err == nil {
			_ = f.Close()
		}
	}

	return t, nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = f.Write(data)
	return err
}

// RecordTurn records a turn event.
func (t *Tracker) RecordTurn(event *TurnEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.LogToStdout {
		sessionID := event.SessionID
		if len(sessionID) > 8 {
			sessionID = sessionID[:8]
		}
		log.Info().
			Str("session_id", sessionID).
			Str("outcome", event.Outcome).
			Int("usage_delta", event.UsageDelta).
			Int64("latency_ms", event.LatencyMs).
			Msg("telemetry")
	}

	if t.logPath != "" {
		if err := appendJSONL(t.logPath, event); err != nil {
			log.Error().Err(err).Str("path", t.logPath).Msg("telemetry: failed to write turn event")
		} else {
			t.turnCount++
		}
	}
}

// RecordConnection records a connect or disconnect event.
func (t *Tracker) RecordConnection(event *ConnectionEvent) {
	if !t.config.Enabled || t.logPath == "" || event == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := appendJSONL(t.logPath, event); err != nil {
		log.Error().Err(err).Str("path", t.logPath).Msg("telemetry: failed to write connection event")
	}
}

// Close logs a session summary.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logPath != "" && t.turnCount > 0 {
		log.Info().
			Str("path", t.logPath).
			Int("events", t.turnCount).
			Msg("telemetry: session complete")
	}

	return nil
}
