package store

// Key is the erased identity of a token, stable across processes.
type Key string

// Token names one typed slot in the store. A key must map to exactly one value
// type for the lifetime of the process.
type Token[V any] struct {
	key Key
}

func NewToken[V any](key Key) Token[V] {
	return Token[V]{key: key}
}

func (t Token[V]) Key() Key { return t.key }

// Update is one change record. Present=false means the key was deleted.
type Update struct {
	Key     Key
	Value   any
	Present bool
}

func (u Update) IsDelete() bool { return !u.Present }

func CreateUpdate[V any](tok Token[V], v V) Update {
	return Update{Key: tok.key, Value: v, Present: true}
}

func CreateDelete[V any](tok Token[V]) Update {
	return Update{Key: tok.key}
}

// HandleUpdate extracts a typed value from u when it addresses tok.
// ok is false for other keys and for deletes.
func HandleUpdate[V any](tok Token[V], u Update) (V, bool) {
	var zero V
	if u.Key != tok.key || !u.Present {
		return zero, false
	}
	v, ok := u.Value.(V)
	if !ok {
		invariant("store.HandleUpdate key=%s holds %T", u.Key, u.Value)
		return zero, false
	}
	return v, true
}
