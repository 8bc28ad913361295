package upstream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAnswer_KnownFields(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"response", `{"response":"hello"}`, "hello"},
		{"message", `{"message":"hi there"}`, "hi there"},
		{"content", `{"content":"c"}`, "c"},
		{"text", `{"text":"t"}`, "t"},
		{"answer", `{"answer":"a"}`, "a"},
		{"nested data.response", `{"data":{"response":"nested"}}`, "nested"},
		{"nested data.message", `{"data":{"message":"nested msg"}}`, "nested msg"},
		{"result", `{"result":"r"}`, "r"},
		{"output", `{"output":"o"}`, "o"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractAnswer([]byte(tc.body)))
		})
	}
}

func TestExtractAnswer_FirstMatchWins(t *testing.T) {
	body := `{"message":"second","response":"first","output":"last"}`
	assert.Equal(t, "first", ExtractAnswer([]byte(body)))
}

func TestExtractAnswer_SkipsEmptyAndNonString(t *testing.T) {
	// Empty string and object values do not satisfy the probe; the next
	// field in order wins.
	body := `{"response":"","message":{"role":"agent"},"content":"real answer"}`
	assert.Equal(t, "real answer", ExtractAnswer([]byte(body)))
}

func TestExtractAnswer_FallsBackToRawEnvelope(t *testing.T) {
	body := `{"unexpected":"shape","code":7}`
	assert.Equal(t, body, ExtractAnswer([]byte(body)))
}

func TestExtractAnswer_OversizedEnvelopeDegrades(t *testing.T) {
	big := `{"blob":"` + strings.Repeat("x", 20000) + `"}`
	assert.Equal(t, UnparseableAnswer, ExtractAnswer([]byte(big)))
}

func TestExtractAnswer_EmptyBodyDegrades(t *testing.T) {
	assert.Equal(t, UnparseableAnswer, ExtractAnswer(nil))
	assert.Equal(t, UnparseableAnswer, ExtractAnswer([]byte("   ")))
}
