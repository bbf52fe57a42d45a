package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/rovlink/internal/surface"
)

type fileConfig struct {
	Name                 string  `toml:"name"`
	RobotAddr            string  `toml:"robot_addr"`
	ArmInterval          string  `toml:"arm_interval"`
	PingInterval         string  `toml:"ping_interval"`
	Reconnect            bool    `toml:"reconnect"`
	ReconnectMaxAttempts int     `toml:"reconnect_max_attempts"`
	BackoffInitial       string  `toml:"backoff_initial"`
	BackoffMax           string  `toml:"backoff_max"`
	BackoffMultiplier    float64 `toml:"backoff_multiplier"`
	BackoffJitter        bool    `toml:"backoff_jitter"`
	PeerTimeout          string  `toml:"peer_timeout"`
	ConnectTimeout       string  `toml:"connect_timeout"`
	WriteTimeout         string  `toml:"write_timeout"`
	MaxPayloadBytes      int64   `toml:"max_payload_bytes"`
}

// loadServiceConfig overlays the keys present in path onto the defaults.
func loadServiceConfig(path string) (surface.ServiceConfig, error) {
	cfg := surface.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return surface.ServiceConfig{}, fmt.Errorf("load surface config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return surface.ServiceConfig{}, fmt.Errorf("load surface config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}
	if meta.IsDefined("robot_addr") {
		cfg.RobotAddr = strings.TrimSpace(raw.RobotAddr)
	}
	if meta.IsDefined("reconnect") {
		cfg.Reconnect = raw.Reconnect
	}
	if meta.IsDefined("reconnect_max_attempts") {
		if raw.ReconnectMaxAttempts < 0 {
			return surface.ServiceConfig{}, fmt.Errorf("reconnect_max_attempts must not be negative: %d", raw.ReconnectMaxAttempts)
		}
		cfg.Network.Backoff.MaxAttempts = raw.ReconnectMaxAttempts
	}
	if meta.IsDefined("backoff_multiplier") {
		cfg.Network.Backoff.Multiplier = raw.BackoffMultiplier
	}
	if meta.IsDefined("backoff_jitter") {
		cfg.Network.Backoff.Jitter = raw.BackoffJitter
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"arm_interval", raw.ArmInterval, &cfg.ArmInterval},
		{"ping_interval", raw.PingInterval, &cfg.PingInterval},
		{"backoff_initial", raw.BackoffInitial, &cfg.Network.Backoff.InitialDelay},
		{"backoff_max", raw.BackoffMax, &cfg.Network.Backoff.MaxDelay},
		{"peer_timeout", raw.PeerTimeout, &cfg.Network.PeerTimeout},
		{"connect_timeout", raw.ConnectTimeout, &cfg.Network.ConnectTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Network.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return surface.ServiceConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 || raw.MaxPayloadBytes > int64(^uint32(0)) {
			return surface.ServiceConfig{}, fmt.Errorf("max_payload_bytes out of range: %d", raw.MaxPayloadBytes)
		}
		cfg.Network.Limits.MaxPayloadBytes = uint32(raw.MaxPayloadBytes)
	}

	if err := cfg.Validate(); err != nil {
		return surface.ServiceConfig{}, err
	}
	return cfg, nil
}
