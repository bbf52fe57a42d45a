// Package peripheral defines the actuator sink the robot drives and a
// simulated 16-channel PWM bank used when no hardware is attached.
package peripheral

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/rovlink/internal/types"
	"github.com/rs/zerolog/log"
)

// Channels is the number of PWM outputs on the controller board.
const Channels = 16

var ErrChannelRange = errors.New("peripheral: channel out of range")

// WriteMismatchError reports a hardware write whose read-back differs.
type WriteMismatchError struct {
	Channel  uint8
	Expected uint16
	Observed uint16
}

func (e *WriteMismatchError) Error() string {
	return fmt.Sprintf("peripheral: channel %d wrote 0x%03x, read back 0x%03x", e.Channel, e.Expected, e.Observed)
}

// Actuator is the opaque output sink. Implementations need not be safe for
// concurrent use; the motor system is the only caller.
type Actuator interface {
	SetChannelOutput(channel uint8, pulse time.Duration) error
	EnableOutput() error
	DisableOutput() error
}

// PulseRange maps a signed speed onto an ESC pulse width.
type PulseRange struct {
	Min     time.Duration
	Neutral time.Duration
	Max     time.Duration
}

func DefaultPulseRange() PulseRange {
	return PulseRange{
		Min:     1100 * time.Microsecond,
		Neutral: 1500 * time.Microsecond,
		Max:     1900 * time.Microsecond,
	}
}

func (r PulseRange) Pulse(speed types.Percent) time.Duration {
	s := types.NewPercent(speed.Float64())
	if s >= 0 {
		return r.Neutral + time.Duration(float64(r.Max-r.Neutral)*s.Float64())
	}
	return r.Neutral + time.Duration(float64(r.Neutral-r.Min)*s.Float64())
}

// RawCounts converts a pulse into 12-bit off counts for a PWM period.
func RawCounts(period, pulse time.Duration) uint16 {
	if period <= 0 || pulse <= 0 {
		return 0
	}
	raw := int64(pulse) * 4096 / int64(period)
	if raw > 4095 {
		raw = 4095
	}
	return uint16(raw)
}

// SimBank is an in-memory PWM bank that verifies every write by reading it back.
type SimBank struct {
	mu      sync.Mutex
	period  time.Duration
	regs    [Channels]uint16
	enabled bool
	corrupt map[uint8]bool
	writes  int
}

// NewSimBank creates a bank running at the given PWM period (20ms for ESCs).
func NewSimBank(period time.Duration) *SimBank {
	return &SimBank{period: period, corrupt: make(map[uint8]bool)}
}

// Corrupt makes subsequent writes on channel read back wrong.
func (b *SimBank) Corrupt(channel uint8, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.corrupt[channel] = on
}

func (b *SimBank) SetChannelOutput(channel uint8, pulse time.Duration) error {
	if channel >= Channels {
		return fmt.Errorf("%w: %d", ErrChannelRange, channel)
	}
	raw := RawCounts(b.period, pulse)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	b.regs[channel] = raw
	if b.corrupt[channel] {
		b.regs[channel] = raw ^ 0x0f00
	}
	if observed := b.regs[channel]; observed != raw {
		return &WriteMismatchError{Channel: channel, Expected: raw, Observed: observed}
	}
	return nil
}

func (b *SimBank) EnableOutput() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled {
		log.Info().Msg("peripheral.SimBank output enabled")
	}
	b.enabled = true
	return nil
}

func (b *SimBank) DisableOutput() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.enabled {
		log.Info().Msg("peripheral.SimBank output disabled")
	}
	b.enabled = false
	return nil
}

// Enabled reports whether outputs are live.
func (b *SimBank) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Raw returns the last register value written to channel.
func (b *SimBank) Raw(channel uint8) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if channel >= Channels {
		return 0
	}
	return b.regs[channel]
}

func (b *SimBank) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}
