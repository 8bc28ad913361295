package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	events []Event
	failAt int // fail the Nth send (1-based); 0 never fails
}

func (s *captureSink) Send(_ context.Context, ev Event) error {
	if s.failAt > 0 && len(s.events)+1 == s.failAt {
		return errors.New("sink closed")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) tokens() []string {
	var out []string
	for _, ev := range s.events {
		if ev.Type == EventToken {
			out = append(out, ev.Text)
		}
	}
	return out
}

func TestEmitter_ReconstructsTextExactly(t *testing.T) {
	texts := []string{
		"hello there",
		"exactly twenty chars",
		"a",
		strings.Repeat("long answer text ", 25),
		"unicode: héllo wörld ñ 漢字テスト",
	}

	for _, text := range texts {
		sink := &captureSink{}
		err := NewEmitter(20, 0).Emit(context.Background(), text, sink)
		require.NoError(t, err)

		chunks := sink.tokens()
		assert.Equal(t, text, strings.Join(chunks, ""), "chunks must reconstruct the text")

		runeCount := len([]rune(text))
		wantChunks := (runeCount + 19) / 20
		assert.Len(t, chunks, wantChunks)

		// Every chunk except the last is exactly the chunk size.
		for i, chunk := range chunks[:len(chunks)-1] {
			assert.Len(t, []rune(chunk), 20, "chunk %d", i)
		}

		// Exactly one terminal AI_DONE, after all tokens.
		require.NotEmpty(t, sink.events)
		assert.Equal(t, EventDone, sink.events[len(sink.events)-1].Type)
		done := 0
		for _, ev := range sink.events {
			if ev.Type == EventDone {
				done++
			}
		}
		assert.Equal(t, 1, done)
	}
}

func TestEmitter_EmptyTextSendsOnlyDone(t *testing.T) {
	sink := &captureSink{}
	err := NewEmitter(20, 0).Emit(context.Background(), "", sink)
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventDone, sink.events[0].Type)
}

func TestEmitter_MultibyteCharactersNeverSplit(t *testing.T) {
	text := strings.Repeat("漢", 45)
	sink := &captureSink{}
	require.NoError(t, NewEmitter(20, 0).Emit(context.Background(), text, sink))

	chunks := sink.tokens()
	require.Len(t, chunks, 3)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, chunk := range chunks {
		assert.True(t, strings.HasPrefix(chunk, "漢"), "chunk boundaries must fall between runes")
	}
}

func TestEmitter_AbortsOnSinkError(t *testing.T) {
	sink := &captureSink{failAt: 2}
	err := NewEmitter(5, 0).Emit(context.Background(), "0123456789abcdefghij", sink)
	require.Error(t, err)

	// One chunk delivered, nothing after the failure, no AI_DONE.
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventToken, sink.events[0].Type)
}

func TestEmitter_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &captureSink{}
	err := NewEmitter(5, 10*time.Millisecond).Emit(ctx, "0123456789", sink)
	assert.ErrorIs(t, err, context.Canceled)

	for _, ev := range sink.events {
		assert.NotEqual(t, EventDone, ev.Type, "no AI_DONE after cancellation")
	}
}
