// Connection orchestration for the chat relay.
//
// DESIGN: One Controller per live WebSocket connection:
//   - HandleMessage(): parses the inbound envelope and dispatches
//   - handlePrompt():  the single state-changing operation (quota check,
//     upstream call, usage accounting, streaming)
//   - Close():         releases the session on disconnect
//
// Controllers are fully independent; the only cross-connection coupling
// is the gateway's internal call pacing.
package relay

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/costoptimizer/chat-relay/internal/config"
	"github.com/costoptimizer/chat-relay/internal/monitoring"
	"github.com/costoptimizer/chat-relay/internal/upstream"
	"github.com/costoptimizer/chat-relay/internal/usage"
)

// State identifies where a connection is in its turn cycle.
type State int

const (
	StateAwaitingInput State = iota
	StateProcessing
	StateStreaming
	StateClosed
)

// Gateway is the upstream completion dependency.
type Gateway interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TurnRecorder persists completed turns. Implementations must be safe
// for concurrent use across connections.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, sessionID, prompt, response string, usageDelta, usageTotal int) error
}

// ControllerConfig wires a Controller's dependencies.
type ControllerConfig struct {
	Threshold int
	Gateway   Gateway
	Estimator usage.Estimator
	Emitter   *Emitter
	Sink      Sink
	Telemetry *monitoring.Tracker
	Archive   TurnRecorder // optional
}

// Controller drives one client connection: it owns the session, consumes
// inbound envelopes, enforces the usage quota, calls the gateway and
// streams answers back. All methods run on the connection's read loop;
// prompts are therefore processed strictly one at a time.
type Controller struct {
	session   *Session
	gateway   Gateway
	estimator usage.Estimator
	emitter   *Emitter
	sink      Sink
	telemetry *monitoring.Tracker
	archive   TurnRecorder
	state     State
}

// NewController allocates a fresh session and a controller in
// AwaitingInput. Never fails and makes no external calls.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		session:   NewSession(cfg.Threshold),
		gateway:   cfg.Gateway,
		estimator: cfg.Estimator,
		emitter:   cfg.Emitter,
		sink:      cfg.Sink,
		telemetry: cfg.Telemetry,
		archive:   cfg.Archive,
		state:     StateAwaitingInput,
	}
	log.Info().
		Str("session_id", c.session.ID).
		Int("threshold", c.session.Threshold).
		Msg("session initialized")
	return c
}

// Session exposes the controller's session for logging and tests.
func (c *Controller) Session() *Session { return c.session }

// State returns the current connection state.
func (c *Controller) State() State { return c.state }

// HandleMessage processes one inbound frame. Malformed input yields an
// ERROR event and no state change; unknown envelope types are logged and
// ignored for forward compatibility.
func (c *Controller) HandleMessage(ctx context.Context, raw []byte) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		log.Error().Str("session_id", c.session.ID).Msg("invalid message envelope")
		c.sendError(ctx, "Invalid message format")
		return
	}

	msgType := gjson.GetBytes(raw, "type").String()
	log.Debug().Str("session_id", c.session.ID).Str("type", msgType).Msg("received message")

	switch msgType {
	case MsgUserPrompt:
		c.handlePrompt(ctx, gjson.GetBytes(raw, "text").String())
	default:
		log.Warn().Str("session_id", c.session.ID).Str("type", msgType).Msg("unknown message type")
	}
}

// handlePrompt runs one full turn: quota check, upstream call, usage
// accounting, policy notifications, streaming.
func (c *Controller) handlePrompt(ctx context.Context, text string) {
	if c.state != StateAwaitingInput {
		c.sendError(ctx, "A response is already in progress. Please wait for it to finish.")
		return
	}

	if strings.TrimSpace(text) == "" {
		c.sendError(ctx, "Empty prompt received")
		return
	}

	if c.session.Exhausted() {
		log.Info().Str("session_id", c.session.ID).Int("usage", c.session.UsageCount).Msg("credits exhausted, rejecting prompt")
		c.send(ctx, Event{Type: EventCreditsExhausted})
		return
	}

	c.session.AppendUser(text)
	c.state = StateProcessing
	defer func() {
		if c.state != StateClosed {
			c.state = StateAwaitingInput
		}
	}()

	started := time.Now()
	answer, err := c.gateway.Complete(ctx, text)
	if err != nil {
		c.failTurn(ctx, text, err, started)
		return
	}

	promptUnits := c.estimator.Estimate(text)
	answerUnits := c.estimator.Estimate(answer)
	delta := promptUnits + answerUnits
	total := c.session.AddUsage(delta)

	log.Info().
		Str("session_id", c.session.ID).
		Int("prompt_units", promptUnits).
		Int("answer_units", answerUnits).
		Int("usage_total", total).
		Msg("usage recorded")

	// Exhausted supersedes the 80% warning within a turn; at most one
	// notification is sent.
	switch {
	case total >= c.session.Threshold:
		c.send(ctx, Event{Type: EventCreditsExhausted})
	case float64(total) >= config.CreditWarningRatio*float64(c.session.Threshold):
		c.send(ctx, Event{Type: EventCreditWarning})
	}

	c.session.AppendAgent(answer)

	if c.archive != nil {
		if err := c.archive.RecordTurn(ctx, c.session.ID, text, answer, delta, total); err != nil {
			log.Error().Err(err).Str("session_id", c.session.ID).Msg("archive write failed")
		}
	}

	c.telemetry.RecordTurn(&monitoring.TurnEvent{
		Timestamp:     time.Now(),
		SessionID:     c.session.ID,
		Outcome:       monitoring.OutcomeSuccess,
		PromptChars:   len(text),
		ResponseChars: len(answer),
		UsageDelta:    delta,
		UsageTotal:    total,
		LatencyMs:     time.Since(started).Milliseconds(),
	})

	c.state = StateStreaming
	if err := c.emitter.Emit(ctx, answer, c.sink); err != nil {
		log.Debug().Err(err).Str("session_id", c.session.ID).Msg("turn streaming abandoned")
	}
}

// failTurn reports an upstream failure to the client. The transcript
// keeps the user turn but gains no agent turn, and usage is untouched.
func (c *Controller) failTurn(ctx context.Context, prompt string, err error, started time.Time) {
	outcome := monitoring.OutcomeTransport
	message := "AI service unavailable. Please try again later."

	var callErr *upstream.CallError
	if errors.As(err, &callErr) {
		message = callErr.UserMessage()
		switch callErr.Kind {
		case upstream.FailureTimeout:
			outcome = monitoring.OutcomeTimeout
		case upstream.FailureRateLimited:
			outcome = monitoring.OutcomeRateLimited
		case upstream.FailureStatus:
			outcome = monitoring.OutcomeStatusError
		}
	}

	log.Error().Err(err).Str("session_id", c.session.ID).Str("outcome", outcome).Msg("upstream call failed")

	c.telemetry.RecordTurn(&monitoring.TurnEvent{
		Timestamp:   time.Now(),
		SessionID:   c.session.ID,
		Outcome:     outcome,
		PromptChars: len(prompt),
		LatencyMs:   time.Since(started).Milliseconds(),
	})

	c.sendError(ctx, message)
}

// Close marks the connection terminated and releases the session. Safe
// to call while a turn is in flight; in-progress output is abandoned at
// the next send.
func (c *Controller) Close() {
	c.state = StateClosed
	log.Info().
		Str("session_id", c.session.ID).
		Int("turns", len(c.session.Transcript)).
		Int("usage", c.session.UsageCount).
		Msg("session released")
}

func (c *Controller) send(ctx context.Context, ev Event) {
	if err := c.sink.Send(ctx, ev); err != nil {
		log.Debug().Err(err).Str("session_id", c.session.ID).Str("event", ev.Type).Msg("send failed")
	}
}

func (c *Controller) sendError(ctx context.Context, message string) {
	log.Info().Str("session_id", c.session.ID).Str("error", message).Msg("sending error to client")
	c.send(ctx, Event{Type: EventError, Message: message})
}
