package upstream

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/costoptimizer/chat-relay/internal/config"
)

// UnparseableAnswer is the placeholder used when the upstream envelope
// cannot be reduced to answer text. The turn still succeeds and is billed.
const UnparseableAnswer = "Unable to parse AI response. Please try again."

// answerPaths are probed in order; the first non-empty string wins. The
// upstream's envelope shape varies between deployments, so the policy is
// an inspectable list rather than a fixed parse path.
var answerPaths = []string{
	"response",
	"message",
	"content",
	"text",
	"answer",
	"data.response",
	"data.message",
	"result",
	"output",
}

// ExtractAnswer pulls the answer text out of a successful upstream
// response envelope. When no known field matches, it degrades to the raw
// envelope if reasonably small, and to UnparseableAnswer otherwise.
func ExtractAnswer(body []byte) string {
	for _, path := range answerPaths {
		v := gjson.GetBytes(body, path)
		if v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}

	raw := strings.TrimSpace(string(body))
	if raw != "" && len(raw) < config.MaxAnswerFallbackChars {
		return raw
	}
	return UnparseableAnswer
}
