package surface

import (
	"sync/atomic"

	"github.com/danmuck/rovlink/internal/queue"
	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/types"
	"github.com/rs/zerolog/log"
)

// Robot is the surface's view of the remote robot. Reads through Store are
// safe from any goroutine; writes should go through EmitUpdate/EmitDelete so
// they are applied and sent by the service loop.
type Robot struct {
	store *store.Store
	owned *queue.Queue[store.Update]
	arm   atomic.Uint32
}

func NewRobot(opts ...store.Option) *Robot {
	r := &Robot{owned: queue.New[store.Update]()}
	r.store = store.New(r.enqueue, opts...)
	return r
}

func (r *Robot) Store() *store.Store { return r.store }

// Arm sets the requested arm state; the arming heartbeat carries it to the robot.
func (r *Robot) Arm() { r.arm.Store(uint32(types.Armed)) }

func (r *Robot) Disarm() { r.arm.Store(uint32(types.Disarmed)) }

// ArmState is the requested arm state, not what the robot reported.
func (r *Robot) ArmState() types.ArmState { return types.ArmState(r.arm.Load()) }

// Pending reports owned updates not yet applied by the pump.
func (r *Robot) Pending() int { return r.owned.Len() }

func (r *Robot) enqueue(u store.Update) {
	if !r.owned.Push(u) {
		log.Debug().Str("key", string(u.Key)).Msg("surface.Robot.enqueue after close")
	}
}

// EmitUpdate queues a locally authored write for the robot.
func EmitUpdate[V any](r *Robot, tok store.Token[V], v V) {
	r.enqueue(store.CreateUpdate(tok, v))
}

// EmitDelete queues a locally authored delete for the robot.
func EmitDelete[V any](r *Robot, tok store.Token[V]) {
	r.enqueue(store.CreateDelete(tok))
}
