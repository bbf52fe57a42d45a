package robot

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/rovlink/internal/events"
	"github.com/danmuck/rovlink/internal/network"
	"github.com/danmuck/rovlink/internal/peripheral"
	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/store/tokens"
	"github.com/danmuck/rovlink/internal/systems"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidListenAddr = errors.New("robot: listen address is required")
	ErrRobotAuthoredKey  = errors.New("robot: key is written by the robot only")
)

// ServiceConfig configures the robot process.
type ServiceConfig struct {
	Name            string
	ListenAddr      string
	AdminListenAddr string
	// AdminToken, when set, is required as a bearer token on state endpoints.
	AdminToken      string
	PWMPeriod       time.Duration
	Network         network.Config
	Motor           MotorConfig
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:            "robot.local",
		ListenAddr:      "0.0.0.0:44444",
		AdminListenAddr: "127.0.0.1:8090",
		PWMPeriod:       20 * time.Millisecond,
		Network:         network.DefaultConfig(),
		Motor:           DefaultMotorConfig(),
	}
}

// Service wires state, systems and the admin surface into one process.
type Service struct {
	cfg      ServiceConfig
	bus      *events.Bus
	state    *State
	adapters *store.Adapters
	manager  *systems.Manager
	network  *NetworkSystem
	status   *StatusSystem
	actuator peripheral.Actuator
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// NewServiceWithConfig builds a robot service driving a simulated PWM bank.
func NewServiceWithConfig(cfg ServiceConfig) *Service {
	return NewServiceWithActuator(cfg, peripheral.NewSimBank(cfg.PWMPeriod))
}

func NewServiceWithActuator(cfg ServiceConfig, actuator peripheral.Actuator) *Service {
	bus := events.NewBus()
	s := &Service{
		cfg:      cfg,
		bus:      bus,
		state:    NewState(),
		adapters: tokens.GenerateAdapters(),
		manager:  systems.NewManager(bus),
		actuator: actuator,
	}
	s.network = NewNetworkSystem(cfg.Name, cfg.ListenAddr, cfg.Network, s.adapters)
	s.status = NewStatusSystem(cfg.Motor.MaxAge)
	return s
}

func (s *Service) State() *State { return s.state }
func (s *Service) Bus() *events.Bus { return s.bus }
func (s *Service) Network() *NetworkSystem { return s.network }
func (s *Service) Adapters() *store.Adapters { return s.adapters }
func (s *Service) Config() ServiceConfig { return s.cfg }

// Run blocks until SIGINT/SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext starts every system and the admin server and blocks until ctx
// ends or every system has exited.
func (s *Service) RunContext(ctx context.Context) error {
	if strings.TrimSpace(s.cfg.ListenAddr) == "" {
		return ErrInvalidListenAddr
	}
	for _, sys := range []systems.System{
		NewRobotSystem(s.state, s.adapters),
		s.status,
		s.network,
		NewMotorSystem(s.cfg.Motor, s.actuator),
	} {
		if err := s.manager.Add(sys); err != nil {
			return err
		}
	}

	var admin *http.Server
	if strings.TrimSpace(s.cfg.AdminListenAddr) != "" {
		admin = &http.Server{Addr: s.cfg.AdminListenAddr, Handler: NewAdminRouter(s)}
		go func() {
			log.Info().Str("addr", s.cfg.AdminListenAddr).Msg("robot.Service admin listening")
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("robot.Service admin server")
			}
		}()
	}

	log.Info().Str("name", s.cfg.Name).Str("listen", s.cfg.ListenAddr).Msg("robot.Service.Run starting")
	err := s.manager.Run(ctx)
	s.bus.Close()
	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = admin.Shutdown(shutdownCtx)
	}
	if err != nil {
		log.Error().Err(err).Msg("robot.Service.Run failed")
		return err
	}
	log.Info().Msg("robot.Service.Run stopped")
	return nil
}
