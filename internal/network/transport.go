package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/rovlink/internal/protocol/frame"
	"github.com/danmuck/rovlink/internal/queue"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
)

// Endpoint identifies one socket for its lifetime.
type Endpoint struct {
	ID   uuid.UUID
	Addr string
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s(%s)", e.Addr, e.ID.String()[:8])
}

type EventKind uint8

const (
	EventAccepted EventKind = iota + 1
	EventConnected
	EventMessage
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventAccepted:
		return "accepted"
	case EventConnected:
		return "connected"
	case EventMessage:
		return "message"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// TransportEvent is one lifecycle or data event delivered on the loop.
// Success and Err describe EventConnected; Payload is set for EventMessage.
type TransportEvent struct {
	Kind     EventKind
	Endpoint Endpoint
	Success  bool
	Err      error
	Payload  []byte
}

// Handler receives every TransportEvent serially. It must not block and must
// not call Stop.
type Handler interface {
	HandleTransportEvent(ev TransportEvent) error
}

type loopItem struct {
	event *TransportEvent
	fn    func()
}

type peerConn struct {
	endpoint Endpoint
	conn     net.Conn
	writeMu  sync.Mutex
	seq      uint64
}

// Transport runs framed TCP I/O and funnels everything through one loop goroutine.
type Transport struct {
	cfg     Config
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	inbox  *queue.Queue[loopItem]
	done   chan struct{}

	peers     *xsync.MapOf[uuid.UUID, *peerConn]
	listeners *xsync.MapOf[string, net.Listener]
	stopped   atomic.Bool
	stopOnce  sync.Once
}

// NewTransport starts the event loop. h receives every event until Stop returns.
func NewTransport(cfg Config, h Handler) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		cfg:       cfg,
		handler:   h,
		ctx:       ctx,
		cancel:    cancel,
		inbox:     queue.New[loopItem](),
		done:      make(chan struct{}),
		peers:     xsync.NewMapOf[uuid.UUID, *peerConn](),
		listeners: xsync.NewMapOf[string, net.Listener](),
	}
	go t.loop()
	return t
}

func (t *Transport) loop() {
	defer close(t.done)
	for {
		it, err := t.inbox.Pop(context.Background())
		if err != nil {
			return
		}
		t.dispatch(it)
	}
}

func (t *Transport) dispatch(it loopItem) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("network.Transport.loop handler panic")
		}
	}()
	if it.fn != nil {
		it.fn()
		return
	}
	if err := t.handler.HandleTransportEvent(*it.event); err != nil {
		log.Warn().Err(err).Str("kind", it.event.Kind.String()).Str("endpoint", it.event.Endpoint.String()).
			Msg("network.Transport.loop handler error")
	}
}

func (t *Transport) emit(ev TransportEvent) {
	if !t.inbox.Push(loopItem{event: &ev}) {
		log.Debug().Str("kind", ev.Kind.String()).Msg("network.Transport.emit after stop")
	}
}

// Post runs fn on the event loop. It reports false once the transport stopped.
func (t *Transport) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	return t.inbox.Push(loopItem{fn: fn})
}

// Listen binds addr and accepts peers in the background.
func (t *Transport) Listen(addr string) (net.Addr, error) {
	if t.stopped.Load() {
		return nil, &BindError{Addr: addr, Err: ErrStopped}
	}
	hostport, err := parseAddr(addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(t.ctx, "tcp", hostport)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	t.listeners.Store(ln.Addr().String(), ln)
	log.Info().Str("addr", ln.Addr().String()).Msg("network.Transport.Listen listening")

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.acceptLoop(ln)
	}()
	return ln.Addr(), nil
}

func (t *Transport) acceptLoop(ln net.Listener) {
	defer t.listeners.Delete(ln.Addr().String())
	for t.ctx.Err() == nil {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || t.ctx.Err() != nil {
				break
			}
			log.Warn().Err(err).Str("addr", ln.Addr().String()).Msg("network.Transport.accept error")
			continue
		}
		p := &peerConn{
			endpoint: Endpoint{ID: uuid.Must(uuid.NewV7()), Addr: conn.RemoteAddr().String()},
			conn:     conn,
		}
		if !t.register(p) {
			break
		}
		log.Info().Str("endpoint", p.endpoint.String()).Msg("network.Transport.accept peer")
		t.emit(TransportEvent{Kind: EventAccepted, Endpoint: p.endpoint})
		t.startReader(p)
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("network.Transport.accept listener closed")
}

// Connect resolves addr and dials it in the background. The outcome arrives as
// an EventConnected for the returned endpoint.
func (t *Transport) Connect(addr string) (Endpoint, error) {
	if t.stopped.Load() {
		return Endpoint{}, &ConnectError{Addr: addr, Err: ErrStopped}
	}
	hostport, err := parseAddr(addr)
	if err != nil {
		return Endpoint{}, &ConnectError{Addr: addr, Err: err}
	}
	raddr, err := net.ResolveTCPAddr("tcp", hostport)
	if err != nil {
		return Endpoint{}, &ConnectError{Addr: addr, Err: err}
	}
	ep := Endpoint{ID: uuid.Must(uuid.NewV7()), Addr: raddr.String()}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		d := net.Dialer{Timeout: t.cfg.ConnectTimeout}
		conn, err := d.DialContext(t.ctx, "tcp", raddr.String())
		if err != nil {
			log.Warn().Err(err).Str("endpoint", ep.String()).Msg("network.Transport.Connect dial failed")
			t.emit(TransportEvent{Kind: EventConnected, Endpoint: ep, Success: false, Err: err})
			return
		}
		p := &peerConn{endpoint: ep, conn: conn}
		if !t.register(p) {
			return
		}
		log.Info().Str("endpoint", ep.String()).Msg("network.Transport.Connect connected")
		t.emit(TransportEvent{Kind: EventConnected, Endpoint: ep, Success: true})
		t.startReader(p)
	}()
	return ep, nil
}

// register tracks p unless Stop already began, in which case p is closed.
func (t *Transport) register(p *peerConn) bool {
	t.peers.Store(p.endpoint.ID, p)
	if t.ctx.Err() != nil {
		t.peers.Delete(p.endpoint.ID)
		_ = p.conn.Close()
		return false
	}
	return true
}

func (t *Transport) startReader(p *peerConn) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.readLoop(p)
	}()
}

func (t *Transport) readLoop(p *peerConn) {
	var cause error
	for {
		f, err := frame.ReadFrame(p.conn, t.cfg.Limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				cause = err
			}
			break
		}
		t.emit(TransportEvent{Kind: EventMessage, Endpoint: p.endpoint, Payload: f.Payload})
	}
	_ = p.conn.Close()
	// Close() forgets the endpoint first, so only unexpected drops are reported.
	if _, ok := t.peers.LoadAndDelete(p.endpoint.ID); ok {
		log.Info().Err(cause).Str("endpoint", p.endpoint.String()).Msg("network.Transport.read disconnected")
		t.emit(TransportEvent{Kind: EventDisconnected, Endpoint: p.endpoint, Err: cause})
	}
}

// Send writes payload as one frame to ep. Failures are returned, never retried.
func (t *Transport) Send(ep Endpoint, payload []byte) error {
	p, ok := t.peers.Load(ep.ID)
	if !ok {
		return &SendError{Endpoint: ep, Err: ErrUnknownEndpoint}
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.seq++
	if t.cfg.WriteTimeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	err := frame.WriteFrame(p.conn, frame.Frame{Header: frame.Header{Sequence: p.seq}, Payload: payload}, t.cfg.Limits)
	if err != nil {
		return &SendError{Endpoint: ep, Err: err}
	}
	return nil
}

// Close forgets ep and closes its socket without raising EventDisconnected.
func (t *Transport) Close(ep Endpoint) {
	p, ok := t.peers.LoadAndDelete(ep.ID)
	if !ok {
		return
	}
	if err := p.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Debug().Err(err).Str("endpoint", ep.String()).Msg("network.Transport.Close")
	}
}

// Peers reports how many sockets are open.
func (t *Transport) Peers() int { return t.peers.Size() }

// Stop closes every socket and blocks until all I/O goroutines and the event
// loop have returned. Safe to call more than once; must not be called from a
// Handler.
func (t *Transport) Stop() {
	t.stopOnce.Do(func() {
		t.stopped.Store(true)
		t.cancel()
		t.listeners.Range(func(_ string, ln net.Listener) bool {
			_ = ln.Close()
			return true
		})
		t.peers.Range(func(id uuid.UUID, p *peerConn) bool {
			t.peers.Delete(id)
			_ = p.conn.Close()
			return true
		})
		t.wg.Wait()
		t.inbox.Close()
		log.Info().Msg("network.Transport.Stop quiesced")
	})
	<-t.done
}
