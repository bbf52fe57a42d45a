package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Adapter translates one key's erased value to and from wire bytes.
type Adapter interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte) (any, error)
}

type jsonAdapter[V any] struct{}

// JSONAdapter encodes values of type V as JSON.
func JSONAdapter[V any]() Adapter {
	return jsonAdapter[V]{}
}

func (jsonAdapter[V]) Serialize(v any) ([]byte, error) {
	typed, ok := v.(V)
	if !ok {
		var zero V
		return nil, fmt.Errorf("%w: value %T is not %T", ErrInvariant, v, zero)
	}
	return json.Marshal(typed)
}

func (jsonAdapter[V]) Deserialize(data []byte) (any, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Adapters is the key to adapter table. It is built once at startup and
// sealed; lookups after Seal never contend with writers.
type Adapters struct {
	mu     sync.RWMutex
	items  map[Key]Adapter
	sealed bool
}

// NewAdapters creates an empty, unsealed table.
func NewAdapters() *Adapters {
	return &Adapters{items: make(map[Key]Adapter)}
}

// Register adds the adapter for key.
func (a *Adapters) Register(key Key, ad Adapter) error {
	if ad == nil {
		return ErrAdapterNil
	}
	if !isValidKey(string(key)) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return ErrAdaptersSealed
	}
	if _, ok := a.items[key]; ok {
		return fmt.Errorf("%w: %s", ErrAdapterExists, key)
	}
	a.items[key] = ad
	return nil
}

// RegisterJSON registers a JSON adapter typed by tok.
func RegisterJSON[V any](a *Adapters, tok Token[V]) error {
	return a.Register(tok.key, JSONAdapter[V]())
}

// Seal makes the table immutable.
func (a *Adapters) Seal() {
	a.mu.Lock()
	a.sealed = true
	a.mu.Unlock()
}

func (a *Adapters) Resolve(key Key) (Adapter, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ad, ok := a.items[key]
	return ad, ok
}

// Keys returns registered keys in deterministic order.
func (a *Adapters) Keys() []Key {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]Key, 0, len(a.items))
	for k := range a.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Serialize renders u for the wire. A delete yields nil data.
func (a *Adapters) Serialize(u Update) ([]byte, error) {
	ad, ok := a.Resolve(u.Key)
	if !ok {
		return nil, &EncodeError{Key: u.Key, Err: ErrNoAdapter}
	}
	if !u.Present {
		return nil, nil
	}
	data, err := ad.Serialize(u.Value)
	if err != nil {
		return nil, &EncodeError{Key: u.Key, Err: err}
	}
	return data, nil
}

// Deserialize turns wire data for key into an update. Nil data is a delete.
func (a *Adapters) Deserialize(key Key, data []byte) (Update, error) {
	ad, ok := a.Resolve(key)
	if !ok {
		return Update{}, &DecodeError{Key: key, Err: ErrNoAdapter}
	}
	if data == nil {
		return Update{Key: key}, nil
	}
	v, err := ad.Deserialize(data)
	if err != nil {
		return Update{}, &DecodeError{Key: key, Err: err}
	}
	return Update{Key: key, Value: v, Present: true}, nil
}

// isValidKey accepts lowercase dotted identifiers such as "motor_speed.3".
func isValidKey(key string) bool {
	if key == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(key); i++ {
		c := key[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(key)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
