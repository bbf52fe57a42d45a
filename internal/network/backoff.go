package network

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

var ErrBackoffExhausted = errors.New("network: reconnect attempts exhausted")

// Delay is the un-jittered wait before attempt (1-based). It grows by
// Multiplier per attempt and never exceeds MaxDelay when one is set.
func (c BackoffConfig) Delay(attempt int) time.Duration {
	if c.InitialDelay <= 0 || attempt < 1 {
		return 0
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(d) * mult)
		if next < d {
			break
		}
		d = next
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			break
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Backoff paces reconnect attempts to one target. Next hands out attempts
// until MaxAttempts is spent; Reset starts over after a successful connect.
type Backoff struct {
	cfg BackoffConfig

	mu      sync.Mutex
	rng     *rand.Rand
	attempt int
}

// NewBackoff builds a schedule. rng drives jitter; nil seeds from the clock.
func NewBackoff(cfg BackoffConfig, rng *rand.Rand) *Backoff {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Backoff{cfg: cfg, rng: rng}
}

// Next counts one attempt and returns its number and the wait before it.
// With jitter the wait falls in [Delay/2, Delay].
func (b *Backoff) Next() (int, time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.MaxAttempts > 0 && b.attempt >= b.cfg.MaxAttempts {
		return b.attempt, 0, ErrBackoffExhausted
	}
	b.attempt++
	d := b.cfg.Delay(b.attempt)
	if b.cfg.Jitter && d > 1 {
		half := d / 2
		d = half + time.Duration(b.rng.Int63n(int64(d-half)+1))
	}
	return b.attempt, d, nil
}

func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}

// Attempts is how many attempts were handed out since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}
