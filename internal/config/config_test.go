package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"MAESTRO_PORT", "MAESTRO_STORE", "MAESTRO_HEARTBEAT_INTERVAL_SECONDS",
		"MAESTRO_HEARTBEAT_TTL_SECONDS", "MAESTRO_EVENT_QUEUE_DEPTH",
		"MAESTRO_WATCH_DEBOUNCE_MS", "OTEL_ENABLED",
	} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != 7777 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.Heartbeat.Interval != 30*time.Second || cfg.Heartbeat.TTL != 90*time.Second {
		t.Errorf("heartbeat = %+v", cfg.Heartbeat)
	}
	if cfg.Bus.QueueDepth != 256 {
		t.Errorf("queue depth = %d", cfg.Bus.QueueDepth)
	}
	if cfg.Debounce() != DefaultDebounce {
		t.Errorf("debounce = %v", cfg.Debounce())
	}
	if cfg.Telemetry.Enabled {
		t.Error("telemetry defaults off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAESTRO_PORT", "9000")
	t.Setenv("MAESTRO_STORE", "/data/store")
	t.Setenv("MAESTRO_HEARTBEAT_TTL_SECONDS", "120")
	t.Setenv("MAESTRO_WATCH_DEBOUNCE_MS", "50")
	cfg := Load()
	if cfg.Port != 9000 || cfg.StoreRoot != "/data/store" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Heartbeat.TTL != 2*time.Minute {
		t.Errorf("ttl = %v", cfg.Heartbeat.TTL)
	}
	if cfg.Debounce() != 50*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Debounce())
	}
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("MAESTRO_PORT", "not-a-number")
	t.Setenv("MAESTRO_HEARTBEAT_TTL_SECONDS", "-5")
	cfg := Load()
	if cfg.Port != 7777 || cfg.Heartbeat.TTL != 90*time.Second {
		t.Errorf("garbage env must fall back to defaults, got %+v", cfg)
	}
}
