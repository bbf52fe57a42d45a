package store

import (
	"errors"
	"fmt"
)

var (
	ErrInvariant      = errors.New("store: invariant violation")
	ErrNoAdapter      = errors.New("store: no adapter for key")
	ErrAdapterExists  = errors.New("store: adapter already registered")
	ErrAdapterNil     = errors.New("store: adapter is nil")
	ErrAdaptersSealed = errors.New("store: adapters sealed")
	ErrInvalidKey     = errors.New("store: invalid key")
)

// EncodeError reports an update that could not be serialized for the wire.
type EncodeError struct {
	Key Key
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("store: encode key=%s: %v", e.Key, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports wire data that could not be turned into an update.
type DecodeError struct {
	Key Key
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("store: decode key=%s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
