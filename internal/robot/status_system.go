package robot

import (
	"context"
	"time"

	"github.com/danmuck/rovlink/internal/events"
	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/store/tokens"
	"github.com/danmuck/rovlink/internal/systems"
	"github.com/danmuck/rovlink/internal/types"
	"github.com/rs/zerolog/log"
)

// StatusSystem derives the operator-facing RobotStatus and broadcasts it when
// it changes.
type StatusSystem struct {
	maxAge time.Duration

	peers int
	last  *types.RobotStatus
	store *store.Store
	sub   *events.Subscription
}

func NewStatusSystem(maxAge time.Duration, opts ...store.Option) *StatusSystem {
	s := &StatusSystem{maxAge: maxAge}
	s.store = store.New(s.broadcast, opts...)
	return s
}

// Store exposes the status view. Reads are safe from any goroutine.
func (s *StatusSystem) Store() *store.Store { return s.store }

func (s *StatusSystem) Name() string { return "status" }

func (s *StatusSystem) Start(ctx context.Context, sc *systems.Context) error {
	sub := sc.Subscribe(events.Only(
		events.PeerConnected{},
		events.PeerDisconnected{},
		events.SharedUpdate{},
		events.BroadcastUpdate{},
		events.ResetShared{},
		events.SyncStore{},
		events.Error{},
	))
	s.sub = sub
	sc.Go(func() {
		systems.Loop(ctx, sub, s.handle)
	})
	return nil
}

func (s *StatusSystem) handle(ev events.Event) {
	switch e := ev.(type) {
	case events.PeerConnected:
		s.peers++
	case events.PeerDisconnected:
		if s.peers > 0 {
			s.peers--
		}
	case events.SharedUpdate:
		s.store.HandleUpdateShared(e.Update)
	case events.BroadcastUpdate:
		s.store.HandleUpdateShared(e.Update)
	case events.ResetShared:
		s.store.ResetShared()
	case events.SyncStore:
		s.last = nil
	case events.Error:
	default:
		return
	}
	s.recompute()
}

func (s *StatusSystem) broadcast(u store.Update) {
	if s.sub == nil {
		return
	}
	s.sub.Publish(events.BroadcastUpdate{Update: u})
}

func (s *StatusSystem) recompute() {
	status := ComputeStatus(s.store, s.peers, s.maxAge)
	if s.last != nil && *s.last == status {
		return
	}
	log.Info().Str("status", status.String()).Int("peers", s.peers).Msg("robot.StatusSystem status changed")
	prev, had := store.Get(s.store, tokens.Status)
	store.Insert(s.store, tokens.Status, status)
	if had && prev == status {
		// Insert suppressed an unchanged value; a sync still republishes it.
		s.broadcast(store.CreateUpdate(tokens.Status, status))
	}
	s.last = &status
}

// ComputeStatus applies NoPeer, Disarmed, Ready, Moving precedence. Motor
// speeds older than maxAge are ignored.
func ComputeStatus(st *store.Store, peers int, maxAge time.Duration) types.RobotStatus {
	if peers == 0 {
		return types.NoPeer()
	}
	armed, ok := store.Get(st, tokens.Armed)
	if !ok || armed != types.Armed {
		return types.DisarmedStatus()
	}
	var max types.Percent
	live := false
	for _, tok := range tokens.MotorSpeeds() {
		speed, ok := store.GetAlive(st, tok, maxAge)
		if !ok {
			continue
		}
		live = true
		if a := speed.Abs(); a > max {
			max = a
		}
	}
	if !live {
		return types.Ready()
	}
	return types.Moving(max)
}
