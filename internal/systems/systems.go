// Package systems runs independent long-lived workers over a shared event bus.
package systems

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/rovlink/internal/events"
	"github.com/rs/zerolog/log"
)

var (
	ErrSystemExists = errors.New("systems: system already registered")
	ErrSystemNil    = errors.New("systems: system is nil")
	ErrRunning      = errors.New("systems: manager already running")
)

// System is one worker. Start subscribes and spawns its loop with Context.Go,
// then returns without blocking.
type System interface {
	Name() string
	Start(ctx context.Context, sc *Context) error
}

// Context is handed to each System at start.
type Context struct {
	Bus  *events.Bus
	name string
	wg   *sync.WaitGroup
}

// Subscribe opens a mailbox named after the system.
func (c *Context) Subscribe(filter events.Filter) *events.Subscription {
	return c.Bus.Subscribe(c.name, filter)
}

// Go runs fn as a tracked worker; Manager.Run waits for it.
func (c *Context) Go(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("system", c.name).Interface("panic", r).Msg("systems.worker panic")
				c.Bus.Publish(events.Error{Source: c.name, Err: fmt.Errorf("panic: %v", r)})
			}
		}()
		fn()
	}()
}

// Loop receives from sub and hands each event to handle until Exit arrives,
// the bus closes, or ctx ends.
func Loop(ctx context.Context, sub *events.Subscription, handle func(events.Event)) {
	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			log.Debug().Str("system", sub.Name()).Err(err).Msg("systems.Loop stopped")
			return
		}
		if _, ok := ev.(events.Exit); ok {
			log.Debug().Str("system", sub.Name()).Msg("systems.Loop exit")
			return
		}
		handle(ev)
	}
}

// Manager owns a set of systems and their workers.
type Manager struct {
	bus     *events.Bus
	mu      sync.Mutex
	systems []System
	names   map[string]struct{}
	running bool
	started chan struct{}
}

func NewManager(bus *events.Bus) *Manager {
	return &Manager{bus: bus, names: make(map[string]struct{}), started: make(chan struct{})}
}

// Started is closed once every system's Start has returned successfully.
func (m *Manager) Started() <-chan struct{} { return m.started }

func (m *Manager) Bus() *events.Bus { return m.bus }

// Add registers s. Names must be unique.
func (m *Manager) Add(s System) error {
	if s == nil {
		return ErrSystemNil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrRunning
	}
	if _, ok := m.names[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrSystemExists, s.Name())
	}
	m.names[s.Name()] = struct{}{}
	m.systems = append(m.systems, s)
	return nil
}

// Run starts every system in registration order and blocks until all
// workers return. Cancelling ctx publishes Exit. A start failure publishes
// Exit, waits for the already started workers, and returns the error.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrRunning
	}
	m.running = true
	list := append([]System(nil), m.systems...)
	m.mu.Unlock()

	var wg sync.WaitGroup
	var startErr error
	for _, s := range list {
		sc := &Context{Bus: m.bus, name: s.Name(), wg: &wg}
		if err := s.Start(ctx, sc); err != nil {
			startErr = fmt.Errorf("systems: start %s: %w", s.Name(), err)
			break
		}
		log.Info().Str("system", s.Name()).Msg("systems.Manager.Run started")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if startErr != nil {
		m.bus.Publish(events.Exit{})
		<-done
		return startErr
	}
	close(m.started)

	select {
	case <-ctx.Done():
		log.Info().Msg("systems.Manager.Run exit requested")
		m.bus.Publish(events.Exit{})
		<-done
	case <-done:
	}
	log.Info().Msg("systems.Manager.Run all systems stopped")
	return nil
}
