package robot

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/rovlink/internal/events"
	"github.com/danmuck/rovlink/internal/peripheral"
	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/store/tokens"
	"github.com/danmuck/rovlink/internal/systems"
	"github.com/danmuck/rovlink/internal/types"
	"github.com/rs/zerolog/log"
)

// MotorConfig tunes the thruster watchdog.
type MotorConfig struct {
	MaxAge time.Duration
	Tick   time.Duration
	Pulse  peripheral.PulseRange
}

func DefaultMotorConfig() MotorConfig {
	return MotorConfig{
		MaxAge: tokens.MotorMaxAge,
		Tick:   100 * time.Millisecond,
		Pulse:  peripheral.DefaultPulseRange(),
	}
}

// MotorSystem drives the actuator from armed and motor speed updates. Outputs
// are disabled while disarmed and a motor falls back to neutral once its
// speed is older than MaxAge.
type MotorSystem struct {
	cfg      MotorConfig
	actuator peripheral.Actuator
	opts     []store.Option

	store   *store.Store
	sub     *events.Subscription
	enabled bool
}

func NewMotorSystem(cfg MotorConfig, actuator peripheral.Actuator, opts ...store.Option) *MotorSystem {
	return &MotorSystem{cfg: cfg, actuator: actuator, opts: opts}
}

func (m *MotorSystem) Name() string { return "motor" }

func (m *MotorSystem) Start(ctx context.Context, sc *systems.Context) error {
	m.sub = sc.Subscribe(events.Only(
		events.SharedUpdate{},
		events.BroadcastUpdate{},
		events.ResetShared{},
	))
	m.store = store.New(nil, m.opts...)
	if err := m.actuator.DisableOutput(); err != nil {
		return err
	}
	sc.Go(m.run(ctx))
	return nil
}

func (m *MotorSystem) run(ctx context.Context) func() {
	return func() {
		defer m.stop()
		for {
			waitCtx, cancel := context.WithTimeout(ctx, m.cfg.Tick)
			ev, err := m.sub.Recv(waitCtx)
			cancel()
			switch {
			case err == nil:
				if _, ok := ev.(events.Exit); ok {
					return
				}
				m.handle(ev)
			case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			default:
				return
			}
			m.drive()
		}
	}
}

func (m *MotorSystem) handle(ev events.Event) {
	switch e := ev.(type) {
	case events.SharedUpdate:
		m.store.HandleUpdateShared(e.Update)
	case events.BroadcastUpdate:
		m.store.HandleUpdateShared(e.Update)
	case events.ResetShared:
		m.store.ResetShared()
	}
}

// drive writes one pulse per motor, or disables outputs when disarmed.
func (m *MotorSystem) drive() {
	armed, _ := store.Get(m.store, tokens.Armed)
	if armed != types.Armed {
		if m.enabled {
			m.neutral()
			m.setEnabled(false)
		}
		return
	}
	if !m.enabled {
		m.setEnabled(true)
	}
	for id := types.MotorID(0); id < types.MotorCount; id++ {
		pulse := m.cfg.Pulse.Neutral
		if speed, ok := store.GetAlive(m.store, tokens.MotorSpeed(id), m.cfg.MaxAge); ok {
			pulse = m.cfg.Pulse.Pulse(speed)
		}
		m.write(id, pulse)
	}
}

func (m *MotorSystem) write(id types.MotorID, pulse time.Duration) {
	if err := m.actuator.SetChannelOutput(uint8(id), pulse); err != nil {
		log.Error().Err(err).Str("motor", id.String()).Msg("robot.MotorSystem write")
		m.sub.Publish(events.Error{Source: m.Name(), Err: err})
	}
}

func (m *MotorSystem) neutral() {
	for id := types.MotorID(0); id < types.MotorCount; id++ {
		m.write(id, m.cfg.Pulse.Neutral)
	}
}

func (m *MotorSystem) setEnabled(on bool) {
	var err error
	if on {
		err = m.actuator.EnableOutput()
	} else {
		err = m.actuator.DisableOutput()
	}
	if err != nil {
		log.Error().Err(err).Bool("enable", on).Msg("robot.MotorSystem output")
		m.sub.Publish(events.Error{Source: m.Name(), Err: err})
		return
	}
	m.enabled = on
	log.Info().Bool("enabled", on).Msg("robot.MotorSystem output")
}

func (m *MotorSystem) stop() {
	m.neutral()
	m.setEnabled(false)
}
