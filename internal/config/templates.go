package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	KindRobot   = "robot"
	KindSurface = "surface"
)

func DefaultRobotFile() RobotFile {
	return RobotFile{
		Name:            "robot.local",
		ListenAddr:      "0.0.0.0:44444",
		AdminListenAddr: "127.0.0.1:8090",
		MotorMaxAge:     "500ms",
		MotorTick:       "100ms",
		PWMPeriod:       "20ms",
		LinkConfig:      defaultLink(),
	}
}

func DefaultSurfaceFile() SurfaceFile {
	return SurfaceFile{
		Name:              "surface.local",
		RobotAddr:         "127.0.0.1:44444",
		ArmInterval:       "250ms",
		PingInterval:      "1s",
		Reconnect:         true,
		BackoffInitial:    "250ms",
		BackoffMax:        "5s",
		BackoffMultiplier: 2,
		BackoffJitter:     true,
		LinkConfig:        defaultLink(),
	}
}

func defaultLink() LinkConfig {
	return LinkConfig{
		PeerTimeout:     "10s",
		ConnectTimeout:  "5s",
		WriteTimeout:    "2s",
		MaxPayloadBytes: 1 << 20,
	}
}

// Template renders the default file for kind.
func Template(kind string) (string, error) {
	var v any
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindRobot:
		v = DefaultRobotFile()
	case KindSurface:
		v = DefaultSurfaceFile()
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	b, err := toml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("config render failed (%s): %w", kind, err)
	}
	return string(b), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path strictly as kind.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindRobot:
		_, err := LoadRobotConfig(path)
		return err
	case KindSurface:
		_, err := LoadSurfaceConfig(path)
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}
