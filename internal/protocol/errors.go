package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrDecode   = errors.New("protocol: decode failed")
	ErrInternal = errors.New("protocol: internal encode error")
)

// DecodeError describes why an untrusted payload was rejected.
type DecodeError struct {
	Tag    Tag
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("protocol: decode tag=%d: %s", e.Tag, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Err}
}

func decodeErr(tag Tag, reason string, err error) error {
	return &DecodeError{Tag: tag, Reason: reason, Err: err}
}

func internalErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
