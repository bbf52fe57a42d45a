package events

import (
	"context"
	"sync"

	"github.com/danmuck/rovlink/internal/queue"
	"github.com/rs/zerolog/log"
)

// Filter selects the events a subscriber wants. Exit bypasses every filter.
type Filter func(Event) bool

// Only builds a filter accepting the named event kinds.
func Only(kinds ...Event) Filter {
	names := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		names[Name(k)] = struct{}{}
	}
	return func(ev Event) bool {
		_, ok := names[Name(ev)]
		return ok
	}
}

// Bus fans every published event out to each matching subscriber. Each
// subscriber owns an unbounded mailbox, so Publish never blocks and order is
// preserved per publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscription is one subscriber's receiving end.
type Subscription struct {
	bus    *Bus
	name   string
	filter Filter
	box    *queue.Queue[Event]
}

// Subscribe registers a mailbox. A nil filter receives everything.
func (b *Bus) Subscribe(name string, filter Filter) *Subscription {
	s := &Subscription{bus: b, name: name, filter: filter, box: queue.New[Event]()}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.box.Close()
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every matching subscriber.
func (b *Bus) Publish(ev Event) {
	b.publish(ev, nil)
}

func (b *Bus) publish(ev Event, from *Subscription) {
	if ev == nil {
		return
	}
	_, exit := ev.(Exit)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		log.Debug().Str("event", Name(ev)).Msg("events.Bus.Publish after close")
		return
	}
	for s := range b.subs {
		if s == from {
			continue
		}
		if !exit && s.filter != nil && !s.filter(ev) {
			continue
		}
		s.box.Push(ev)
	}
}

// Close closes every mailbox. Pending events are still delivered.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.box.Close()
	}
}

func (s *Subscription) Name() string { return s.name }

// Publish sends ev to every other subscriber.
func (s *Subscription) Publish(ev Event) {
	s.bus.publish(ev, s)
}

// Recv blocks for the next event. It returns queue.ErrClosed once the bus is
// closed and drained, or ctx's error.
func (s *Subscription) Recv(ctx context.Context) (Event, error) {
	return s.box.Pop(ctx)
}

func (s *Subscription) Pending() int { return s.box.Len() }

// Unsubscribe detaches and closes the mailbox.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	s.box.Close()
}
