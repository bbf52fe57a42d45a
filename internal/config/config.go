package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

var (
	ErrUnknownKind = errors.New("config: unknown kind")
	ErrMissing     = errors.New("config: missing required value")
	ErrInvalid     = errors.New("config: invalid value")
)

// LinkConfig holds the link keys shared by robot and surface files.
type LinkConfig struct {
	PeerTimeout     string `toml:"peer_timeout,omitempty"`
	ConnectTimeout  string `toml:"connect_timeout,omitempty"`
	WriteTimeout    string `toml:"write_timeout,omitempty"`
	MaxPayloadBytes int64  `toml:"max_payload_bytes,omitempty"`
}

// RobotFile is the on-disk robotctl configuration.
type RobotFile struct {
	Name            string `toml:"name"`
	ListenAddr      string `toml:"listen_addr"`
	AdminListenAddr string `toml:"admin_listen_addr"`
	AdminToken      string `toml:"admin_token,omitempty"`
	MotorMaxAge     string `toml:"motor_max_age,omitempty"`
	MotorTick       string `toml:"motor_tick,omitempty"`
	PWMPeriod       string `toml:"pwm_period,omitempty"`
	LinkConfig
}

// SurfaceFile is the on-disk surfacectl configuration.
type SurfaceFile struct {
	Name                 string  `toml:"name"`
	RobotAddr            string  `toml:"robot_addr"`
	ArmInterval          string  `toml:"arm_interval,omitempty"`
	PingInterval         string  `toml:"ping_interval,omitempty"`
	Reconnect            bool    `toml:"reconnect"`
	ReconnectMaxAttempts int     `toml:"reconnect_max_attempts"`
	BackoffInitial       string  `toml:"backoff_initial,omitempty"`
	BackoffMax           string  `toml:"backoff_max,omitempty"`
	BackoffMultiplier    float64 `toml:"backoff_multiplier,omitempty"`
	BackoffJitter        bool    `toml:"backoff_jitter"`
	LinkConfig
}

func LoadRobotConfig(path string) (RobotFile, error) {
	var cfg RobotFile
	if err := loadToml(path, &cfg); err != nil {
		return RobotFile{}, err
	}
	if err := ValidateRobotConfig(cfg); err != nil {
		return RobotFile{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func LoadSurfaceConfig(path string) (SurfaceFile, error) {
	var cfg SurfaceFile
	if err := loadToml(path, &cfg); err != nil {
		return SurfaceFile{}, err
	}
	if err := ValidateSurfaceConfig(cfg); err != nil {
		return SurfaceFile{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// loadToml decodes strictly: unknown keys are errors so typos do not
// silently fall back to defaults.
func loadToml(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	defer f.Close()
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config parse failed (%s): %w: %s", path, ErrInvalid, strict.String())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateRobotConfig(cfg RobotFile) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: name", ErrMissing)
	}
	if err := validateAddr("listen_addr", cfg.ListenAddr, true); err != nil {
		return err
	}
	if err := validateAddr("admin_listen_addr", cfg.AdminListenAddr, false); err != nil {
		return err
	}
	for key, v := range map[string]string{
		"motor_max_age": cfg.MotorMaxAge,
		"motor_tick":    cfg.MotorTick,
		"pwm_period":    cfg.PWMPeriod,
	} {
		if err := validateDuration(key, v); err != nil {
			return err
		}
	}
	return validateLink(cfg.LinkConfig)
}

func ValidateSurfaceConfig(cfg SurfaceFile) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: name", ErrMissing)
	}
	if err := validateAddr("robot_addr", cfg.RobotAddr, false); err != nil {
		return err
	}
	for key, v := range map[string]string{
		"arm_interval":    cfg.ArmInterval,
		"ping_interval":   cfg.PingInterval,
		"backoff_initial": cfg.BackoffInitial,
		"backoff_max":     cfg.BackoffMax,
	} {
		if err := validateDuration(key, v); err != nil {
			return err
		}
	}
	if cfg.BackoffMultiplier != 0 && cfg.BackoffMultiplier < 1 {
		return fmt.Errorf("%w: backoff_multiplier must be >= 1", ErrInvalid)
	}
	if cfg.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("%w: reconnect_max_attempts must not be negative", ErrInvalid)
	}
	return validateLink(cfg.LinkConfig)
}

func validateLink(cfg LinkConfig) error {
	for key, v := range map[string]string{
		"peer_timeout":    cfg.PeerTimeout,
		"connect_timeout": cfg.ConnectTimeout,
		"write_timeout":   cfg.WriteTimeout,
	} {
		if err := validateDuration(key, v); err != nil {
			return err
		}
	}
	if cfg.MaxPayloadBytes < 0 {
		return fmt.Errorf("%w: max_payload_bytes must not be negative", ErrInvalid)
	}
	return nil
}

func validateAddr(key, v string, required bool) error {
	v = strings.TrimSpace(v)
	if v == "" {
		if required {
			return fmt.Errorf("%w: %s", ErrMissing, key)
		}
		return nil
	}
	v = strings.TrimPrefix(v, "tcp://")
	if _, _, err := net.SplitHostPort(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return nil
}

// validateDuration accepts an empty value, meaning the default applies.
func validateDuration(key, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, key)
	}
	return nil
}
