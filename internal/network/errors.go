package network

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrAddressInvalid  = errors.New("network: invalid address")
	ErrUnknownEndpoint = errors.New("network: unknown endpoint")
	ErrStopped         = errors.New("network: transport stopped")
)

// BindError reports a listener that could not be opened.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("network: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ConnectError reports an outbound connect that could not be started.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("network: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports one payload that was not fully written. It is never retried.
type SendError struct {
	Endpoint Endpoint
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("network: send to %s: %v", e.Endpoint, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// parseAddr accepts "host:port" or "tcp://host:port".
func parseAddr(addr string) (string, error) {
	raw := strings.TrimSpace(addr)
	if scheme, rest, ok := strings.Cut(raw, "://"); ok {
		switch scheme {
		case "tcp", "tcp4", "tcp6":
			raw = rest
		default:
			return "", fmt.Errorf("%w: scheme %q", ErrAddressInvalid, scheme)
		}
	}
	if _, _, err := net.SplitHostPort(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAddressInvalid, err)
	}
	return raw, nil
}
