package robot

import (
	"testing"
	"time"

	"github.com/danmuck/rovlink/internal/events"
	"github.com/danmuck/rovlink/internal/peripheral"
	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/store/tokens"
	"github.com/danmuck/rovlink/internal/testutil/testlog"
	"github.com/danmuck/rovlink/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pwmPeriod = 20 * time.Millisecond

func testMotorConfig() MotorConfig {
	cfg := DefaultMotorConfig()
	cfg.Tick = 10 * time.Millisecond
	return cfg
}

func rawFor(cfg MotorConfig, speed types.Percent) uint16 {
	return peripheral.RawCounts(pwmPeriod, cfg.Pulse.Pulse(speed))
}

func TestMotorSystemGatesOnArm(t *testing.T) {
	testlog.Start(t)
	bank := peripheral.NewSimBank(pwmPeriod)
	cfg := testMotorConfig()
	bus := events.NewBus()
	startSystems(t, bus, NewMotorSystem(cfg, bank))

	speed := tokens.MotorSpeed(types.MotorFrontL)
	bus.Publish(events.SharedUpdate{Update: store.CreateUpdate(speed, types.Percent(0.5))})
	time.Sleep(5 * cfg.Tick)
	assert.False(t, bank.Enabled(), "disarmed robot must not enable outputs")

	bus.Publish(events.SharedUpdate{Update: store.CreateUpdate(tokens.Armed, types.Armed)})
	require.Eventually(t, func() bool {
		return bank.Enabled() && bank.Raw(uint8(types.MotorFrontL)) == rawFor(cfg, 0.5)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, rawFor(cfg, 0), bank.Raw(uint8(types.MotorRearR)), "motors without a command idle at neutral")

	bus.Publish(events.SharedUpdate{Update: store.CreateUpdate(tokens.Armed, types.Disarmed)})
	require.Eventually(t, func() bool { return !bank.Enabled() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, rawFor(cfg, 0), bank.Raw(uint8(types.MotorFrontL)))
}

func TestMotorSystemStaleSpeedFallsBackToNeutral(t *testing.T) {
	testlog.Start(t)
	bank := peripheral.NewSimBank(pwmPeriod)
	cfg := testMotorConfig()
	clock := newFakeClock()
	bus := events.NewBus()
	startSystems(t, bus, NewMotorSystem(cfg, bank, store.WithClock(clock.Now)))

	bus.Publish(events.SharedUpdate{Update: store.CreateUpdate(tokens.Armed, types.Armed)})
	bus.Publish(events.SharedUpdate{Update: store.CreateUpdate(tokens.MotorSpeed(types.MotorUpR), types.Percent(-1))})
	require.Eventually(t, func() bool {
		return bank.Raw(uint8(types.MotorUpR)) == rawFor(cfg, -1)
	}, time.Second, 5*time.Millisecond)

	clock.Advance(cfg.MaxAge + time.Millisecond)
	require.Eventually(t, func() bool {
		return bank.Raw(uint8(types.MotorUpR)) == rawFor(cfg, 0)
	}, time.Second, 5*time.Millisecond)
	assert.True(t, bank.Enabled(), "staleness idles the motor but keeps outputs armed")
}

func TestMotorSystemReportsWriteFailures(t *testing.T) {
	testlog.Start(t)
	bank := peripheral.NewSimBank(pwmPeriod)
	bank.Corrupt(uint8(types.MotorRearL), true)
	bus := events.NewBus()
	errs := bus.Subscribe("errs", events.Only(events.Error{}))
	startSystems(t, bus, NewMotorSystem(testMotorConfig(), bank))

	bus.Publish(events.SharedUpdate{Update: store.CreateUpdate(tokens.Armed, types.Armed)})
	ev := recvEvent(t, errs)
	e, ok := ev.(events.Error)
	require.True(t, ok, "expected error event, got %T", ev)
	assert.Equal(t, "motor", e.Source)
	var mismatch *peripheral.WriteMismatchError
	assert.ErrorAs(t, e.Err, &mismatch)
}

func TestMotorSystemResetSharedDisarms(t *testing.T) {
	testlog.Start(t)
	bank := peripheral.NewSimBank(pwmPeriod)
	bus := events.NewBus()
	startSystems(t, bus, NewMotorSystem(testMotorConfig(), bank))

	bus.Publish(events.SharedUpdate{Update: store.CreateUpdate(tokens.Armed, types.Armed)})
	require.Eventually(t, bank.Enabled, time.Second, 5*time.Millisecond)
	bus.Publish(events.ResetShared{})
	require.Eventually(t, func() bool { return !bank.Enabled() }, time.Second, 5*time.Millisecond)
}
