package robot

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/danmuck/rovlink/internal/events"
	"github.com/danmuck/rovlink/internal/network"
	"github.com/danmuck/rovlink/internal/observability"
	"github.com/danmuck/rovlink/internal/protocol"
	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/store/tokens"
	"github.com/danmuck/rovlink/internal/systems"
	"github.com/rs/zerolog/log"
)

// NetworkSystem owns the link. Inbound packets become bus events; outbound
// broadcasts become packets.
type NetworkSystem struct {
	node       string
	listenAddr string
	cfg        network.Config
	adapters   *store.Adapters
	now        func() time.Time

	bus *events.Bus

	mu    sync.RWMutex
	net   *network.Network
	bound net.Addr
}

func NewNetworkSystem(node, listenAddr string, cfg network.Config, adapters *store.Adapters) *NetworkSystem {
	return &NetworkSystem{
		node:       node,
		listenAddr: listenAddr,
		cfg:        cfg,
		adapters:   adapters,
		now:        time.Now,
	}
}

func (n *NetworkSystem) Name() string { return "network" }

// Start binds the listener before returning, so a bind failure fails the
// whole manager.
func (n *NetworkSystem) Start(ctx context.Context, sc *systems.Context) error {
	n.bus = sc.Bus
	sub := sc.Subscribe(events.Only(events.BroadcastUpdate{}, events.PacketSend{}))
	link := network.New(n.node, n.cfg, n)
	n.mu.Lock()
	n.net = link
	n.mu.Unlock()
	addr, err := link.Listen(n.listenAddr)
	if err != nil {
		link.Stop()
		sub.Unsubscribe()
		return err
	}
	n.mu.Lock()
	n.bound = addr
	n.mu.Unlock()

	sc.Go(func() {
		defer link.Stop()
		systems.Loop(ctx, sub, n.handle)
	})
	return nil
}

// Addr is the bound listen address, nil before Start.
func (n *NetworkSystem) Addr() net.Addr {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.bound
}

// Current reports the live peer connection.
func (n *NetworkSystem) Current() (network.Connection, bool) {
	n.mu.RLock()
	link := n.net
	n.mu.RUnlock()
	if link == nil {
		return network.Connection{}, false
	}
	return link.Current()
}

func (n *NetworkSystem) handle(ev events.Event) {
	switch e := ev.(type) {
	case events.BroadcastUpdate:
		data, err := n.adapters.Serialize(e.Update)
		if err != nil {
			observability.RecordLinkError(n.node, observability.ErrKindEncode)
			log.Warn().Err(err).Msg("robot.NetworkSystem broadcast dropped")
			n.bus.Publish(events.Error{Source: n.Name(), Err: err})
			return
		}
		n.net.SendPacket(protocol.StoreUpdate{Key: string(e.Update.Key), Data: data, Delete: e.Update.IsDelete()})
	case events.PacketSend:
		n.net.SendPacket(e.Packet)
	}
}

func (n *NetworkSystem) HandleConnected(ep network.Endpoint) {
	n.bus.Publish(events.PeerConnected{Endpoint: ep})
	n.bus.Publish(events.StateRefresh{})
	n.bus.Publish(events.SyncStore{})
}

func (n *NetworkSystem) HandleDisconnected(ep network.Endpoint) {
	n.bus.Publish(events.PeerDisconnected{Endpoint: ep})
	n.bus.Publish(events.ResetShared{})
}

func (n *NetworkSystem) HandleConnectionFailed(ep network.Endpoint, err error) {
	n.bus.Publish(events.ConnectionFailed{Endpoint: ep, Err: err})
}

func (n *NetworkSystem) HandlePacket(ep network.Endpoint, p protocol.Packet) error {
	switch pk := p.(type) {
	case protocol.StoreUpdate:
		u, err := n.decode(pk)
		if err != nil {
			return err
		}
		n.bus.Publish(events.StateUpdate{Updates: []store.Update{u}})
		n.bus.Publish(events.SharedUpdate{Update: u})
	case protocol.StateBatch:
		batch := make([]store.Update, 0, len(pk.Updates))
		for _, su := range pk.Updates {
			u, err := n.decode(su)
			if err != nil {
				log.Warn().Err(err).Str("endpoint", ep.String()).Msg("robot.NetworkSystem batch entry dropped")
				continue
			}
			batch = append(batch, u)
		}
		n.bus.Publish(events.StateUpdate{Updates: batch})
		for _, u := range batch {
			n.bus.Publish(events.SharedUpdate{Update: u})
		}
	case protocol.RequestSync:
		n.bus.Publish(events.StateRefresh{})
		n.bus.Publish(events.SyncStore{})
	case protocol.Ping:
		n.net.SendPacket(protocol.Pong{PingMS: pk.SentMS, PongMS: uint64(n.now().UnixMilli())})
	case protocol.Pong:
		rtt := n.now().Sub(time.UnixMilli(int64(pk.PingMS)))
		observability.ObserveRTT(n.node, rtt)
	}
	return nil
}

func (n *NetworkSystem) decode(su protocol.StoreUpdate) (store.Update, error) {
	if tokens.RobotAuthored(store.Key(su.Key)) {
		observability.RecordLinkError(n.node, observability.ErrKindRejected)
		return store.Update{}, fmt.Errorf("%w: %s", ErrRobotAuthoredKey, su.Key)
	}
	var data []byte
	if !su.Delete {
		data = su.Data
		if data == nil {
			data = []byte{}
		}
	}
	u, err := n.adapters.Deserialize(store.Key(su.Key), data)
	if err != nil {
		observability.RecordLinkError(n.node, observability.ErrKindDecode)
		return store.Update{}, err
	}
	observability.RecordStoreUpdate(n.node, store.OriginShared.String())
	return u, nil
}
