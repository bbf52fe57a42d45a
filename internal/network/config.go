package network

import (
	"time"

	"github.com/danmuck/rovlink/internal/protocol/frame"
)

// BackoffConfig paces surface reconnects. MaxAttempts zero retries forever.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
	MaxAttempts  int
}

// Config defines link timeouts and limits. It is fixed once a Transport starts.
type Config struct {
	// PeerTimeout is how long the current peer may stay silent before an
	// accepted candidate may replace it.
	PeerTimeout    time.Duration
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	Limits         frame.Limits
	Backoff        BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		PeerTimeout:    10 * time.Second,
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   2 * time.Second,
		Limits:         frame.DefaultLimits(),
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}
