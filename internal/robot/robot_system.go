package robot

import (
	"context"

	"github.com/danmuck/rovlink/internal/events"
	"github.com/danmuck/rovlink/internal/protocol"
	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/systems"
	"github.com/rs/zerolog/log"
)

// RobotSystem is the single writer of State.
type RobotSystem struct {
	state    *State
	adapters *store.Adapters
}

func NewRobotSystem(state *State, adapters *store.Adapters) *RobotSystem {
	return &RobotSystem{state: state, adapters: adapters}
}

func (r *RobotSystem) Name() string { return "robot" }

func (r *RobotSystem) Start(ctx context.Context, sc *systems.Context) error {
	sub := sc.Subscribe(events.Only(events.StateUpdate{}, events.StateRefresh{}))
	sc.Go(func() {
		systems.Loop(ctx, sub, func(ev events.Event) {
			r.handle(sub, ev)
		})
	})
	return nil
}

func (r *RobotSystem) handle(sub *events.Subscription, ev events.Event) {
	switch e := ev.(type) {
	case events.StateUpdate:
		changed := r.state.ApplyBatch(e.Updates)
		log.Debug().Int("updates", len(e.Updates)).Int("changed", len(changed)).Msg("robot.RobotSystem state update")
		for _, u := range changed {
			sub.Publish(events.BroadcastUpdate{Update: u})
		}
	case events.StateRefresh:
		sub.Publish(events.PacketSend{Packet: r.batch(r.state.ToUpdates())})
	}
}

// batch serializes a full-state snapshot, skipping keys with no adapter.
func (r *RobotSystem) batch(updates []store.Update) protocol.StateBatch {
	out := protocol.StateBatch{Updates: make([]protocol.StoreUpdate, 0, len(updates))}
	for _, u := range updates {
		data, err := r.adapters.Serialize(u)
		if err != nil {
			log.Warn().Err(err).Str("key", string(u.Key)).Msg("robot.RobotSystem refresh skipped key")
			continue
		}
		out.Updates = append(out.Updates, protocol.StoreUpdate{Key: string(u.Key), Data: data})
	}
	return out
}
