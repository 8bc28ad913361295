// Package usage estimates consumption units for quota accounting.
//
// Usage units are a proxy for billing tokens, not an exact count. The
// default estimator is a pure character heuristic; a BPE-backed estimator
// can be selected via configuration when closer-to-billing counts matter.
package usage

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"github.com/costoptimizer/chat-relay/internal/config"
)

// Estimator scores text in usage units. Implementations must be pure and
// deterministic; estimation has no failure mode.
type Estimator interface {
	Estimate(text string) int
}

// Heuristic approximates usage as len(text)/4, minimum 1.
type Heuristic struct{}

// Estimate returns max(len(text)/UsageEstimateRatio, 1).
func (Heuristic) Estimate(text string) int {
	n := len(text) / config.UsageEstimateRatio
	if n < 1 {
		return 1
	}
	return n
}

// Tiktoken counts BPE tokens with the cl100k_base encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the cl100k_base encoding.
func NewTiktoken() (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Tiktoken{enc: enc}, nil
}

// Estimate returns the BPE token count, minimum 1.
func (t *Tiktoken) Estimate(text string) int {
	n := len(t.enc.Encode(text, nil, nil))
	if n < 1 {
		return 1
	}
	return n
}

// ForConfig returns the estimator named in configuration. Unknown names
// and encoding load failures fall back to the heuristic so startup never
// blocks on estimator choice.
func ForConfig(name string) Estimator {
	switch name {
	case "", "heuristic":
		return Heuristic{}
	case "tiktoken":
		est, err := NewTiktoken()
		if err != nil {
			log.Warn().Err(err).Msg("tiktoken encoding unavailable, using heuristic estimator")
			return Heuristic{}
		}
		return est
	default:
		log.Warn().Str("estimator", name).Msg("unknown estimator, using heuristic")
		return Heuristic{}
	}
}
