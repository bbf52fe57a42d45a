//go:build !rovdebug

package store

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

func invariant(format string, args ...any) {
	log.Error().Err(ErrInvariant).Msg(fmt.Sprintf(format, args...))
}
