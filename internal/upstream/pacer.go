package upstream

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a process-wide minimum interval between upstream call
// dispatches. All connections share one Pacer; it is the only mutable
// state shared across connections.
//
// The mutex guards only the timestamp check-and-set, never the network
// call itself, so pacing delays callers without serializing the calls.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	lastCall time.Time
}

// NewPacer creates a pacer with the given minimum interval. An interval
// of zero or less disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until at least the configured interval has passed since the
// previous dispatch, then records and returns the caller's dispatch time.
// Callers queue; they are never rejected. Returns early only when ctx is
// done.
func (p *Pacer) Wait(ctx context.Context) (time.Time, error) {
	if p.interval <= 0 {
		return time.Now(), nil
	}

	for {
		p.mu.Lock()
		now := time.Now()
		if p.lastCall.IsZero() || now.Sub(p.lastCall) >= p.interval {
			p.lastCall = now
			p.mu.Unlock()
			return now, nil
		}
		wait := p.interval - now.Sub(p.lastCall)
		p.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return time.Time{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// LastCall returns the most recent recorded dispatch time.
func (p *Pacer) LastCall() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCall
}
