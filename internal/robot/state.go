package robot

import (
	"reflect"
	"sort"
	"sync"

	"github.com/danmuck/rovlink/internal/store"
)

// State is the authoritative robot state. Writes go through Apply/ApplyBatch
// under one write lock; reads take the read lock.
type State struct {
	mu     sync.RWMutex
	values map[store.Key]any
}

func NewState() *State {
	return &State{values: make(map[store.Key]any)}
}

// Apply writes one update and reports whether it changed anything.
func (s *State) Apply(u store.Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(u)
}

// ApplyBatch applies every update under one lock acquisition and returns the
// updates that changed state, in input order.
func (s *State) ApplyBatch(updates []store.Update) []store.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := make([]store.Update, 0, len(updates))
	for _, u := range updates {
		if s.apply(u) {
			changed = append(changed, u)
		}
	}
	return changed
}

func (s *State) apply(u store.Update) bool {
	prev, had := s.values[u.Key]
	if !u.Present {
		if !had {
			return false
		}
		delete(s.values, u.Key)
		return true
	}
	if had && reflect.DeepEqual(prev, u.Value) {
		return false
	}
	s.values[u.Key] = u.Value
	return true
}

// ToUpdates snapshots every field as present updates sorted by key.
func (s *State) ToUpdates() []store.Update {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Update, 0, len(s.values))
	for k, v := range s.values {
		out = append(out, store.Update{Key: k, Value: v, Present: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Read returns the typed field for tok.
func Read[V any](s *State, tok store.Token[V]) (V, bool) {
	s.mu.RLock()
	v, ok := s.values[tok.Key()]
	s.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	return store.HandleUpdate(tok, store.Update{Key: tok.Key(), Value: v, Present: true})
}
