// Package tokens declares every well-known store slot and its wire adapter.
package tokens

import (
	"fmt"
	"time"

	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/types"
)

// MotorMaxAge is how long a motor speed command stays live.
const MotorMaxAge = 500 * time.Millisecond

var (
	Armed  = store.NewToken[types.ArmState]("armed")
	Status = store.NewToken[types.RobotStatus]("status")
	Leak   = store.NewToken[types.Leak]("leak")
)

var motorSpeeds = func() [types.MotorCount]store.Token[types.Percent] {
	var out [types.MotorCount]store.Token[types.Percent]
	for i := range out {
		out[i] = store.NewToken[types.Percent](store.Key(fmt.Sprintf("motor_speed.%d", i)))
	}
	return out
}()

// MotorSpeed returns the token for one motor. It panics for ids past MotorCount.
func MotorSpeed(id types.MotorID) store.Token[types.Percent] {
	return motorSpeeds[id]
}

// MotorSpeeds returns every motor token in id order.
func MotorSpeeds() []store.Token[types.Percent] {
	out := make([]store.Token[types.Percent], len(motorSpeeds))
	copy(out, motorSpeeds[:])
	return out
}

// RobotAuthored reports keys only the robot may write. Peers sending them are
// rejected before they reach robot state.
func RobotAuthored(key store.Key) bool {
	return key == Status.Key() || key == Leak.Key()
}

// GenerateAdapters returns the sealed adapter table for every token above.
func GenerateAdapters() *store.Adapters {
	a := store.NewAdapters()
	must(store.RegisterJSON(a, Armed))
	must(store.RegisterJSON(a, Status))
	must(store.RegisterJSON(a, Leak))
	for _, tok := range motorSpeeds {
		must(store.RegisterJSON(a, tok))
	}
	a.Seal()
	return a
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
