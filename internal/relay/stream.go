package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Emitter streams a finished answer to a sink as an ordered sequence of
// fixed-size chunks followed by exactly one AI_DONE event.
//
// Chunking is purely size-based with no regard for word boundaries, and
// counts runes so multi-byte characters are never split across chunks.
// The inter-chunk delay is cosmetic; order and exact reconstruction are
// the contract. Emit is not re-entrant per connection - the controller
// serializes turns.
type Emitter struct {
	chunkSize int
	delay     time.Duration
}

// NewEmitter creates an emitter. chunkSize must be positive.
func NewEmitter(chunkSize int, delay time.Duration) *Emitter {
	return &Emitter{chunkSize: chunkSize, delay: delay}
}

// Emit sends text as AI_TOKEN chunks then one AI_DONE. Empty text sends
// zero chunks and still terminates with AI_DONE. Returns the sink or
// context error on abort; nothing further is emitted after a failed send.
func (e *Emitter) Emit(ctx context.Context, text string, sink Sink) error {
	runes := []rune(text)
	sent := 0

	for i := 0; i < len(runes); i += e.chunkSize {
		end := i + e.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		if err := sink.Send(ctx, Event{Type: EventToken, Text: string(runes[i:end])}); err != nil {
			log.Debug().Err(err).Int("chunks_sent", sent).Msg("stream aborted")
			return err
		}
		sent++

		if e.delay > 0 {
			timer := time.NewTimer(e.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	if err := sink.Send(ctx, Event{Type: EventDone}); err != nil {
		return err
	}

	log.Debug().Int("chunks", sent).Int("chars", len(runes)).Msg("streaming completed")
	return nil
}
