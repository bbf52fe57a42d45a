//go:build rovdebug

package store

import "fmt"

func invariant(format string, args ...any) {
	panic(fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...)))
}
