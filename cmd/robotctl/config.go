package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/rovlink/internal/robot"
)

type fileConfig struct {
	Name            string `toml:"name"`
	ListenAddr      string `toml:"listen_addr"`
	AdminListenAddr string `toml:"admin_listen_addr"`
	AdminToken      string `toml:"admin_token"`
	MotorMaxAge     string `toml:"motor_max_age"`
	MotorTick       string `toml:"motor_tick"`
	PWMPeriod       string `toml:"pwm_period"`
	PeerTimeout     string `toml:"peer_timeout"`
	ConnectTimeout  string `toml:"connect_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	MaxPayloadBytes int64  `toml:"max_payload_bytes"`
}

// loadServiceConfig overlays the keys present in path onto the defaults.
func loadServiceConfig(path string) (robot.ServiceConfig, error) {
	cfg := robot.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return robot.ServiceConfig{}, fmt.Errorf("load robot config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return robot.ServiceConfig{}, fmt.Errorf("load robot config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"motor_max_age", raw.MotorMaxAge, &cfg.Motor.MaxAge},
		{"motor_tick", raw.MotorTick, &cfg.Motor.Tick},
		{"pwm_period", raw.PWMPeriod, &cfg.PWMPeriod},
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
			return robot.ServiceConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 || raw.MaxPayloadBytes > int64(^uint32(0)) {
			return robot.ServiceConfig{}, fmt.Errorf("max_payload_bytes out of range: %d", raw.MaxPayloadBytes)
		}
		cfg.Network.Limits.MaxPayloadBytes = uint32(raw.MaxPayloadBytes)
	}

	return cfg, nil
}
