package network

import (
	"net"
	"sync"
	"time"

	"github.com/danmuck/rovlink/internal/observability"
	"github.com/danmuck/rovlink/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Connection is the single live peer.
type Connection struct {
	Endpoint   Endpoint
	LastPacket time.Time
}

// PacketHandler receives guard decisions and attributed packets. Every method
// runs on the transport loop and must not block.
type PacketHandler interface {
	HandleConnected(ep Endpoint)
	HandleDisconnected(ep Endpoint)
	HandleConnectionFailed(ep Endpoint, err error)
	HandlePacket(ep Endpoint, p protocol.Packet) error
}

type Option func(*Network)

// WithClock replaces the clock used for last-packet stamps and takeover age.
func WithClock(now func() time.Time) Option {
	return func(n *Network) {
		if now != nil {
			n.now = now
		}
	}
}

// Network guards the current-peer slot on top of a Transport.
type Network struct {
	node      string
	cfg       Config
	handler   PacketHandler
	transport *Transport
	now       func() time.Time

	mu      sync.RWMutex
	current *Connection
}

// New starts a transport whose events are filtered through the guard. node
// labels logs and metrics.
func New(node string, cfg Config, h PacketHandler, opts ...Option) *Network {
	n := &Network{
		node:    node,
		cfg:     cfg,
		handler: h,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.transport = NewTransport(cfg, n)
	return n
}

func (n *Network) Listen(addr string) (net.Addr, error) {
	return n.transport.Listen(addr)
}

func (n *Network) Connect(addr string) (Endpoint, error) {
	return n.transport.Connect(addr)
}

// Stop tears down the transport; no handler method runs after it returns.
func (n *Network) Stop() {
	n.transport.Stop()
}

// Current returns a snapshot of the live connection.
func (n *Network) Current() (Connection, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == nil {
		return Connection{}, false
	}
	return *n.current, true
}

// SendPacket queues p for the current peer. It reports false once stopped.
// Packets with no current peer are dropped.
func (n *Network) SendPacket(p protocol.Packet) bool {
	return n.transport.Post(func() {
		n.sendCurrent(p)
	})
}

func (n *Network) sendCurrent(p protocol.Packet) {
	conn, ok := n.Current()
	if !ok {
		log.Debug().Str("tag", p.Tag().String()).Msg("network.Network.send dropped no peer")
		return
	}
	payload, err := protocol.Encode(p)
	if err != nil {
		observability.RecordLinkError(n.node, observability.ErrKindEncode)
		log.Error().Err(err).Str("tag", p.Tag().String()).Msg("network.Network.send encode")
		return
	}
	if err := n.transport.Send(conn.Endpoint, payload); err != nil {
		observability.RecordLinkError(n.node, observability.ErrKindSend)
		log.Warn().Err(err).Str("tag", p.Tag().String()).Msg("network.Network.send")
		return
	}
	observability.RecordPacket(n.node, "out", p.Tag().String())
}

func (n *Network) install(ep Endpoint) {
	n.mu.Lock()
	n.current = &Connection{Endpoint: ep, LastPacket: n.now()}
	n.mu.Unlock()
}

// replace installs ep and reports the previous connection, if any.
func (n *Network) replace(ep Endpoint) (Connection, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var prev Connection
	had := n.current != nil
	if had {
		prev = *n.current
	}
	n.current = &Connection{Endpoint: ep, LastPacket: n.now()}
	return prev, had
}

// HandleTransportEvent implements Handler. It runs on the transport loop.
func (n *Network) HandleTransportEvent(ev TransportEvent) error {
	switch ev.Kind {
	case EventAccepted:
		n.onAccepted(ev.Endpoint)
	case EventConnected:
		n.onConnected(ev)
	case EventMessage:
		return n.onMessage(ev)
	case EventDisconnected:
		n.onDisconnected(ev)
	}
	return nil
}

func (n *Network) onAccepted(ep Endpoint) {
	cur, ok := n.Current()
	if ok {
		age := n.now().Sub(cur.LastPacket)
		if age <= n.cfg.PeerTimeout {
			log.Info().Str("candidate", ep.String()).Str("current", cur.Endpoint.String()).Dur("age", age).
				Msg("network.Network.accept rejected, current peer alive")
			observability.RecordConnectionEvent(n.node, "rejected")
			n.transport.Close(ep)
			return
		}
		log.Warn().Str("candidate", ep.String()).Str("current", cur.Endpoint.String()).Dur("age", age).
			Msg("network.Network.accept takeover")
		observability.RecordConnectionEvent(n.node, "takeover")
		n.transport.Close(cur.Endpoint)
		n.replace(ep)
		n.handler.HandleDisconnected(cur.Endpoint)
		n.handler.HandleConnected(ep)
		return
	}
	n.install(ep)
	observability.RecordConnectionEvent(n.node, "connected")
	log.Info().Str("endpoint", ep.String()).Msg("network.Network.accept connected")
	n.handler.HandleConnected(ep)
}

func (n *Network) onConnected(ev TransportEvent) {
	if !ev.Success {
		observability.RecordConnectionEvent(n.node, "connect_failed")
		n.handler.HandleConnectionFailed(ev.Endpoint, ev.Err)
		return
	}
	prev, had := n.replace(ev.Endpoint)
	if had && prev.Endpoint.ID != ev.Endpoint.ID {
		n.transport.Close(prev.Endpoint)
		n.handler.HandleDisconnected(prev.Endpoint)
	}
	observability.RecordConnectionEvent(n.node, "connected")
	log.Info().Str("endpoint", ev.Endpoint.String()).Msg("network.Network.connect connected")
	n.handler.HandleConnected(ev.Endpoint)
}

func (n *Network) onMessage(ev TransportEvent) error {
	p, err := protocol.Decode(ev.Payload)
	if err != nil {
		observability.RecordLinkError(n.node, observability.ErrKindDecode)
		log.Warn().Err(err).Str("endpoint", ev.Endpoint.String()).Msg("network.Network.message decode")
		return nil
	}

	n.mu.Lock()
	if n.current == nil {
		n.mu.Unlock()
		observability.RecordLinkError(n.node, observability.ErrKindOrphan)
		log.Warn().Str("endpoint", ev.Endpoint.String()).Msg("network.Network.message no current connection, dropped")
		return nil
	}
	if n.current.Endpoint.ID != ev.Endpoint.ID {
		cur := n.current.Endpoint
		n.mu.Unlock()
		observability.RecordLinkError(n.node, observability.ErrKindOrphan)
		log.Warn().Str("endpoint", ev.Endpoint.String()).Str("current", cur.String()).
			Msg("network.Network.message unknown endpoint, dropped")
		return nil
	}
	n.current.LastPacket = n.now()
	n.mu.Unlock()

	observability.RecordPacket(n.node, "in", p.Tag().String())
	return n.handler.HandlePacket(ev.Endpoint, p)
}

func (n *Network) onDisconnected(ev TransportEvent) {
	n.mu.Lock()
	if n.current == nil || n.current.Endpoint.ID != ev.Endpoint.ID {
		n.mu.Unlock()
		log.Debug().Str("endpoint", ev.Endpoint.String()).Msg("network.Network.disconnect stale endpoint")
		return
	}
	n.current = nil
	n.mu.Unlock()

	observability.RecordConnectionEvent(n.node, "disconnected")
	log.Info().Err(ev.Err).Str("endpoint", ev.Endpoint.String()).Msg("network.Network.disconnect")
	n.handler.HandleDisconnected(ev.Endpoint)
}
