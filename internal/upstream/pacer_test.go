package upstream

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_ZeroIntervalNeverBlocks(t *testing.T) {
	p := NewPacer(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		_, err := p.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacer_FirstCallImmediate(t *testing.T) {
	p := NewPacer(time.Second)

	start := time.Now()
	_, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacer_SpacesSequentialCalls(t *testing.T) {
	const interval = 50 * time.Millisecond
	p := NewPacer(interval)

	first, err := p.Wait(context.Background())
	require.NoError(t, err)

	second, err := p.Wait(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, second.Sub(first), interval)
	assert.Equal(t, second, p.LastCall())
}

// Dispatch timestamps across concurrent callers must never be closer
// than the interval, for any interleaving.
func TestPacer_ConcurrentCallsRespectInterval(t *testing.T) {
	const (
		interval = 20 * time.Millisecond
		callers  = 8
	)
	p := NewPacer(interval)

	var (
		mu         sync.Mutex
		dispatches []time.Time
		wg         sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at, err := p.Wait(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			dispatches = append(dispatches, at)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, dispatches, callers)
	sort.Slice(dispatches, func(i, j int) bool { return dispatches[i].Before(dispatches[j]) })
	for i := 1; i < len(dispatches); i++ {
		assert.GreaterOrEqual(t, dispatches[i].Sub(dispatches[i-1]), interval,
			"dispatches %d and %d too close", i-1, i)
	}
}

func TestPacer_WaitHonorsContextCancel(t *testing.T) {
	p := NewPacer(time.Hour)
	_, err := p.Wait(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
