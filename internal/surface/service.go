package surface

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/rovlink/internal/network"
	"github.com/danmuck/rovlink/internal/observability"
	"github.com/danmuck/rovlink/internal/protocol"
	"github.com/danmuck/rovlink/internal/queue"
	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/store/tokens"
	"github.com/danmuck/rovlink/internal/types"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotRunning          = errors.New("surface: service not running")
	ErrAlreadyRunning      = errors.New("surface: service already running")
	ErrInvalidArmInterval  = errors.New("surface: invalid arm interval")
	ErrInvalidPingInterval = errors.New("surface: invalid ping interval")
)

// ServiceConfig configures the surface process.
type ServiceConfig struct {
	Name string
	// RobotAddr is dialed on start when set.
	RobotAddr    string
	ArmInterval  time.Duration
	PingInterval time.Duration
	Reconnect    bool
	Network      network.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:         "surface.local",
		RobotAddr:    "",
		ArmInterval:  250 * time.Millisecond,
		PingInterval: time.Second,
		Reconnect:    true,
		Network:      network.DefaultConfig(),
	}
}

func (c ServiceConfig) Validate() error {
	if c.ArmInterval <= 0 {
		return ErrInvalidArmInterval
	}
	if c.PingInterval <= 0 {
		return ErrInvalidPingInterval
	}
	return nil
}

// Service runs the surface link. Store mutations, inbound packets and
// lifecycle changes are applied serially on one loop goroutine.
type Service struct {
	cfg      ServiceConfig
	robot    *Robot
	adapters *store.Adapters
	now      func() time.Time
	notes    chan Notification
	inbox    *queue.Queue[func()]
	backoff  *network.Backoff

	mu       sync.Mutex
	ctx      context.Context
	link     *network.Network
	target   string
	rttNanos atomic.Int64
}

type Option func(*Service)

// WithClock replaces the clock used for pings and the robot store.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		adapters: tokens.GenerateAdapters(),
		now:      time.Now,
		notes:    make(chan Notification, notificationBuffer),
		inbox:    queue.New[func()](),
		backoff:  network.NewBackoff(cfg.Network.Backoff, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.robot = NewRobot(store.WithClock(s.now))
	return s
}

func (s *Service) Robot() *Robot { return s.robot }

func (s *Service) Config() ServiceConfig { return s.cfg }

// Notifications delivers operator messages. Slow readers miss some.
func (s *Service) Notifications() <-chan Notification { return s.notes }

// Status is the robot status last replicated from the robot.
func (s *Service) Status() (types.RobotStatus, bool) {
	return store.Get(s.robot.Store(), tokens.Status)
}

// RTT is the last measured round trip, zero before the first pong.
func (s *Service) RTT() time.Duration { return time.Duration(s.rttNanos.Load()) }

// Connected reports the live robot connection.
func (s *Service) Connected() (network.Connection, bool) {
	link := s.currentLink()
	if link == nil {
		return network.Connection{}, false
	}
	return link.Current()
}

// ReconnectAttempts counts reconnects scheduled since the last successful
// connect.
func (s *Service) ReconnectAttempts() int { return s.backoff.Attempts() }

func (s *Service) Arm()    { s.robot.Arm() }
func (s *Service) Disarm() { s.robot.Disarm() }

func (s *Service) currentLink() *network.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

// Connect dials addr and remembers it for reconnects. Address errors are
// returned; dial failures arrive as notifications.
func (s *Service) Connect(addr string) error {
	s.mu.Lock()
	link := s.link
	if link == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.target = addr
	s.mu.Unlock()
	s.backoff.Reset()

	ep, err := link.Connect(addr)
	if err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("surface.Service.Connect")
		return err
	}
	log.Info().Str("endpoint", ep.String()).Msg("surface.Service.Connect dialing")
	return nil
}

// RequestResync asks the robot to resend its full state.
func (s *Service) RequestResync() error {
	link := s.currentLink()
	if link == nil || !link.SendPacket(protocol.RequestSync{}) {
		return ErrNotRunning
	}
	return nil
}

// Run blocks until SIGINT/SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext starts the link and blocks until ctx ends.
func (s *Service) RunContext(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.link != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	link := network.New(s.cfg.Name, s.cfg.Network, s, network.WithClock(s.now))
	s.link = link
	s.ctx = ctx
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.loop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.pump(ctx)
	}()
	go func() {
		defer wg.Done()
		s.heartbeat(ctx)
	}()

	if s.cfg.RobotAddr != "" {
		if err := s.Connect(s.cfg.RobotAddr); err != nil {
			s.notify(LevelError, "Connect failed", err.Error())
		}
	}
	log.Info().Str("name", s.cfg.Name).Str("robot", s.cfg.RobotAddr).Msg("surface.Service.Run started")

	<-ctx.Done()
	link.Stop()
	s.robot.owned.Close()
	s.inbox.Close()
	wg.Wait()
	log.Info().Msg("surface.Service.Run stopped")
	return nil
}

func (s *Service) post(fn func()) {
	if !s.inbox.Push(fn) {
		log.Debug().Msg("surface.Service.post after stop")
	}
}

func (s *Service) loop(ctx context.Context) {
	for {
		fn, err := s.inbox.Pop(ctx)
		if err != nil {
			return
		}
		fn()
	}
}

// pump moves owned updates onto the loop, where they are applied and sent.
func (s *Service) pump(ctx context.Context) {
	for {
		u, err := s.robot.owned.Pop(ctx)
		if err != nil {
			return
		}
		s.post(func() { s.applyOwned(u) })
	}
}

// heartbeat re-emits the arm state and pings the robot while connected. The
// arm heartbeat keeps the robot's last-packet age fresh.
func (s *Service) heartbeat(ctx context.Context) {
	arm := time.NewTicker(s.cfg.ArmInterval)
	defer arm.Stop()
	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-arm.C:
			EmitUpdate(s.robot, tokens.Armed, s.robot.ArmState())
		case <-ping.C:
			if _, ok := s.Connected(); ok {
				s.link.SendPacket(protocol.Ping{SentMS: uint64(s.now().UnixMilli())})
			}
		}
	}
}

func (s *Service) applyOwned(u store.Update) {
	s.robot.store.HandleUpdateOwned(u)
	observability.RecordStoreUpdate(s.cfg.Name, store.OriginOwned.String())
	data, err := s.adapters.Serialize(u)
	if err != nil {
		observability.RecordLinkError(s.cfg.Name, observability.ErrKindEncode)
		log.Error().Err(err).Str("key", string(u.Key)).Msg("surface.Service.applyOwned encode")
		return
	}
	s.link.SendPacket(protocol.StoreUpdate{Key: string(u.Key), Data: data, Delete: u.IsDelete()})
}

func (s *Service) applyShared(su protocol.StoreUpdate) {
	var data []byte
	if !su.Delete {
		data = su.Data
		if data == nil {
			data = []byte{}
		}
	}
	u, err := s.adapters.Deserialize(store.Key(su.Key), data)
	if err != nil {
		observability.RecordLinkError(s.cfg.Name, observability.ErrKindDecode)
		log.Warn().Err(err).Str("key", su.Key).Msg("surface.Service.applyShared dropped")
		return
	}
	s.robot.store.HandleUpdateShared(u)
	observability.RecordStoreUpdate(s.cfg.Name, store.OriginShared.String())
	if leak, ok := store.HandleUpdate(tokens.Leak, u); ok && bool(leak) {
		s.notify(LevelWarn, "Leak Detected!", "Take robot to surface!")
	}
}

// scheduleReconnect dials the remembered target after a backoff delay.
func (s *Service) scheduleReconnect() {
	if !s.cfg.Reconnect {
		return
	}
	s.mu.Lock()
	target, ctx, link := s.target, s.ctx, s.link
	s.mu.Unlock()
	if target == "" || ctx == nil || ctx.Err() != nil {
		return
	}
	attempt, delay, err := s.backoff.Next()
	if err != nil {
		s.notify(LevelError, "Reconnect abandoned", fmt.Sprintf("%s after %d attempts", target, attempt))
		return
	}
	log.Info().Str("addr", target).Int("attempt", attempt).Dur("delay", delay).Msg("surface.Service reconnect scheduled")
	time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		if _, ok := link.Current(); ok {
			return
		}
		if _, err := link.Connect(target); err != nil {
			log.Warn().Err(err).Str("addr", target).Msg("surface.Service reconnect")
		}
	})
}

// HandleConnected implements network.PacketHandler. Like every handler
// method it runs on the transport loop and only posts work to the service
// loop.
func (s *Service) HandleConnected(ep network.Endpoint) {
	s.post(func() {
		s.backoff.Reset()
		s.robot.store.Reset()
		s.notify(LevelInfo, "Robot Connected", "Peer: "+ep.Addr)
	})
}

func (s *Service) HandleDisconnected(ep network.Endpoint) {
	s.post(func() {
		s.robot.store.Reset()
		s.notify(LevelInfo, "Robot Disconnected", "Peer: "+ep.Addr)
		s.scheduleReconnect()
	})
}

func (s *Service) HandleConnectionFailed(ep network.Endpoint, err error) {
	s.post(func() {
		s.notify(LevelError, "Network error", err.Error())
		s.scheduleReconnect()
	})
}

func (s *Service) HandlePacket(ep network.Endpoint, p protocol.Packet) error {
	switch pk := p.(type) {
	case protocol.StoreUpdate:
		s.post(func() { s.applyShared(pk) })
	case protocol.StateBatch:
		s.post(func() {
			for _, su := range pk.Updates {
				s.applyShared(su)
			}
		})
	case protocol.Ping:
		s.link.SendPacket(protocol.Pong{PingMS: pk.SentMS, PongMS: uint64(s.now().UnixMilli())})
	case protocol.Pong:
		rtt := s.now().Sub(time.UnixMilli(int64(pk.PingMS)))
		s.rttNanos.Store(int64(rtt))
		observability.ObserveRTT(s.cfg.Name, rtt)
	case protocol.RequestSync:
		log.Debug().Str("endpoint", ep.String()).Msg("surface.Service ignoring resync request")
	}
	return nil
}
