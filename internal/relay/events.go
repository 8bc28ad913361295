package relay

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/coder/websocket"
)

// Inbound message types. Unknown types are accepted and ignored so older
// relays tolerate newer frontends.
const MsgUserPrompt = "USER_PROMPT"

// Outbound event types. The exact names and field names are part of the
// client contract.
const (
	EventToken            = "AI_TOKEN"
	EventDone             = "AI_DONE"
	EventError            = "ERROR"
	EventCreditWarning    = "CREDIT_WARNING"
	EventCreditsExhausted = "CREDITS_EXHAUSTED"
)

// Event is one outbound client event.
type Event struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// Sink delivers events to one client connection. Implementations are
// owned by a single controller and are not safe for concurrent Send.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// wsSink writes events as JSON text frames on a WebSocket connection.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(ctx context.Context, ev Event) error {
	data, err := marshalNoEscape(ev)
	if err != nil {
		return err
	}
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// marshalNoEscape marshals JSON without HTML escaping. Chat text often
// contains '<' and '&'; escaping them as \u003c inflates frames for no
// benefit on a WebSocket transport.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder adds a trailing newline; remove it for parity with json.Marshal.
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
