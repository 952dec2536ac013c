package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Gate enforces a minimum interval between successive permits for one
// named resource. It is safe for concurrent use.
type Gate struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time // zero until the first permit
}

// NewGate creates a Gate with the given minimum interval between
// permits. An interval of zero or less disables throttling entirely.
func NewGate(minInterval time.Duration) *Gate {
	return &Gate{minInterval: minInterval}
}

// MinInterval returns the configured minimum interval.
func (g *Gate) MinInterval() time.Duration {
	return g.minInterval
}

// Acquire blocks until at least the gate's minimum interval has
// elapsed since the last permit, records the new permit time, and
// returns nil. The first permit on a fresh gate is granted
// immediately.
//
// The measure-sleep-record sequence runs under the gate's own mutex so
// that two callers can never both observe a stale permit time and
// proceed within the interval of each other. No other gate's lock is
// ever held, so waiting here never blocks unrelated gates.
//
// The only error path is cancellation: if ctx ends mid-wait, the
// context's error is returned and no permit is recorded.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.minInterval <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() {
		// time.Since reads the monotonic clock, but clamp anyway so a
		// timestamp that lost its monotonic reading can never produce
		// a negative wait.
		wait := g.minInterval - time.Since(g.last)
		if wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	g.last = time.Now()
	return nil
}
