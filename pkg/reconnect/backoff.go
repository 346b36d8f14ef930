package reconnect

import (
	"context"
	"math"
	"sync"
	"time"
)

// Config controls exponential backoff between failed attempts
type Config struct {
	MinBackoff time.Duration // default 500ms
	MaxBackoff time.Duration // default 30s
	Multiplier float64       // default 2
}

// Backoff tracks consecutive failures of a reconnecting loop (Kafka reads,
// database pings) and yields the delay before the next attempt.
type Backoff struct {
	cfg Config

	mu       sync.Mutex
	failures int
}

// NewBackoff creates a backoff with defaults applied
func NewBackoff(cfg Config) *Backoff {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
		if cfg.MaxBackoff < cfg.MinBackoff {
			cfg.MaxBackoff = cfg.MinBackoff
		}
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	return &Backoff{cfg: cfg}
}

// Failure records a failed attempt and returns how long to wait
func (b *Backoff) Failure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.delay(b.failures)
	b.failures++
	return d
}

// Success resets the failure streak
func (b *Backoff) Success() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// Failures returns the current streak length
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Backoff) delay(n int) time.Duration {
	d := float64(b.cfg.MinBackoff) * math.Pow(b.cfg.Multiplier, float64(n))
	if d > float64(b.cfg.MaxBackoff) || math.IsInf(d, 0) {
		return b.cfg.MaxBackoff
	}
	return time.Duration(d)
}

// Wait records a failure and sleeps for the backoff, returning early with
// ctx.Err() when the context is cancelled
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Failure())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
