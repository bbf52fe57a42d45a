package store

import (
	"reflect"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
)

// Origin records which side of the link authored an entry.
type Origin uint8

const (
	OriginOwned Origin = iota
	OriginShared
)

func (o Origin) String() string {
	if o == OriginShared {
		return "shared"
	}
	return "owned"
}

type entry struct {
	value   any
	written time.Time
	origin  Origin
}

// Callback receives owned changes that must be propagated to the peer.
type Callback func(Update)

type Option func(*Store)

// WithClock replaces the wall clock used to stamp and age entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store maps keys to immutable entries. See package doc for the threading rules.
type Store struct {
	entries  *xsync.MapOf[Key, *entry]
	callback Callback
	now      func() time.Time
}

// New creates an empty store. cb may be nil when nothing propagates outward.
func New(cb Callback, opts ...Option) *Store {
	s := &Store{
		entries:  xsync.NewMapOf[Key, *entry](),
		callback: cb,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current value for tok.
func Get[V any](s *Store, tok Token[V]) (V, bool) {
	v, _, ok := load(s, tok)
	return v, ok
}

// GetAlive is Get, but values written more than maxAge ago read as absent.
func GetAlive[V any](s *Store, tok Token[V], maxAge time.Duration) (V, bool) {
	v, written, ok := load(s, tok)
	if !ok {
		return v, false
	}
	if s.now().Sub(written) > maxAge {
		var zero V
		return zero, false
	}
	return v, true
}

func load[V any](s *Store, tok Token[V]) (V, time.Time, bool) {
	var zero V
	e, ok := s.entries.Load(tok.key)
	if !ok {
		return zero, time.Time{}, false
	}
	v, ok := e.value.(V)
	if !ok {
		invariant("store.Get key=%s holds %T want %T", tok.key, e.value, zero)
		return zero, time.Time{}, false
	}
	return v, e.written, true
}

// Insert writes a locally authored value. The callback fires once when the
// typed value differs from the previous one; the timestamp is refreshed either way.
func Insert[V any](s *Store, tok Token[V], v V) {
	prev, _, had := load(s, tok)
	s.entries.Store(tok.key, &entry{value: v, written: s.now(), origin: OriginOwned})
	if had && reflect.DeepEqual(prev, v) {
		return
	}
	s.propagate(CreateUpdate(tok, v))
}

// Delete removes a locally owned key and propagates the delete when it existed.
func Delete[V any](s *Store, tok Token[V]) {
	if _, existed := s.entries.LoadAndDelete(tok.key); !existed {
		return
	}
	s.propagate(CreateDelete(tok))
}

func (s *Store) propagate(u Update) {
	if s.callback == nil {
		return
	}
	s.callback(u)
}

// HandleUpdateOwned folds an update this process already propagated back
// into the store without propagating it again.
func (s *Store) HandleUpdateOwned(u Update) {
	s.apply(u, OriginOwned)
}

// HandleUpdateShared applies an update received from the peer. It never
// invokes the callback; deleting an absent key is a no-op.
func (s *Store) HandleUpdateShared(u Update) {
	s.apply(u, OriginShared)
}

func (s *Store) apply(u Update, origin Origin) {
	if !u.Present {
		s.entries.Delete(u.Key)
		return
	}
	s.entries.Store(u.Key, &entry{value: u.Value, written: s.now(), origin: origin})
}

// HandleWireUpdateShared deserializes data with adapters and applies it as a
// shared update. Nil data deletes key.
func (s *Store) HandleWireUpdateShared(adapters *Adapters, key Key, data []byte) error {
	u, err := adapters.Deserialize(key, data)
	if err != nil {
		return err
	}
	s.HandleUpdateShared(u)
	return nil
}

// Reset drops every entry.
func (s *Store) Reset() {
	s.entries.Clear()
}

// ResetShared drops entries received from the peer and keeps owned ones.
func (s *Store) ResetShared() {
	dropped := 0
	s.entries.Range(func(k Key, e *entry) bool {
		if e.origin == OriginShared {
			s.entries.Delete(k)
			dropped++
		}
		return true
	})
	log.Debug().Int("dropped", dropped).Msg("store.Store.ResetShared")
}

// Keys returns every present key in sorted order.
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, s.entries.Size())
	s.entries.Range(func(k Key, _ *entry) bool {
		keys = append(keys, k)
		return true
	})
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (s *Store) Len() int { return s.entries.Size() }

// Snapshot returns the erased value of every entry as a present Update,
// sorted by key.
func (s *Store) Snapshot() []Update {
	out := make([]Update, 0, s.entries.Size())
	s.entries.Range(func(k Key, e *entry) bool {
		out = append(out, Update{Key: k, Value: e.value, Present: true})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// OriginOf reports who authored key's current entry.
func (s *Store) OriginOf(key Key) (Origin, bool) {
	e, ok := s.entries.Load(key)
	if !ok {
		return 0, false
	}
	return e.origin, true
}
