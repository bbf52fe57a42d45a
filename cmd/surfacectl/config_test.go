package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/rovlink/internal/testutil/testlog"
)

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadServiceConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Name != "console.bench" {
		t.Fatalf("unexpected name: %q", cfg.Name)
	}
	if cfg.RobotAddr != "192.168.1.40:44444" {
		t.Fatalf("unexpected robot addr: %q", cfg.RobotAddr)
	}
	if cfg.ArmInterval != 100*time.Millisecond {
		t.Fatalf("unexpected arm interval: %v", cfg.ArmInterval)
	}
	if cfg.Network.Backoff.InitialDelay != 500*time.Millisecond || cfg.Network.Backoff.MaxDelay != 10*time.Second {
		t.Fatalf("unexpected backoff: %+v", cfg.Network.Backoff)
	}
	if cfg.Network.Backoff.MaxAttempts != 20 {
		t.Fatalf("expected 20 reconnect attempts, got %d", cfg.Network.Backoff.MaxAttempts)
	}
	if cfg.Network.Backoff.Jitter {
		t.Fatalf("expected jitter disabled")
	}
	if cfg.Network.Backoff.Multiplier != 2.0 {
		t.Fatalf("expected default multiplier, got %v", cfg.Network.Backoff.Multiplier)
	}
	if cfg.Network.PeerTimeout != 10*time.Second {
		t.Fatalf("expected default peer timeout, got %v", cfg.Network.PeerTimeout)
	}
}

func TestLoadServiceConfigRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	for name, body := range map[string]string{
		"zero arm interval": "arm_interval = \"0s\"\n",
		"unknown key":       "robot = \"x\"\n",
		"bad duration":      "ping_interval = \"often\"\n",
		"negative attempts": "reconnect_max_attempts = -1\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "surfacectl.toml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := loadServiceConfig(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
