package surface

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Level uint8

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is an operator-facing message about the link or the robot.
type Notification struct {
	Level Level
	Title string
	Body  string
	At    time.Time
}

const notificationBuffer = 64

// notify logs n and offers it to the notification channel. A full channel
// drops the notification; the log line remains.
func (s *Service) notify(level Level, title, body string) {
	n := Notification{Level: level, Title: title, Body: body, At: s.now()}
	var ev *zerolog.Event
	switch level {
	case LevelWarn:
		ev = log.Warn()
	case LevelError:
		ev = log.Error()
	default:
		ev = log.Info()
	}
	ev.Str("title", title).Str("body", body).Msg("surface.Service notification")
	select {
	case s.notes <- n:
	default:
		log.Debug().Str("title", title).Msg("surface.Service notification dropped")
	}
}
