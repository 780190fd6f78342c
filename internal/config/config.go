package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Maestro runtime.
type Config struct {
	Port    int
	Version string

	// StoreRoot is the knowledge-store root. Empty means "resolve from
	// install state" (~/.maestro-solo/install.json).
	StoreRoot string

	// ActiveProjectSlug overrides active-project selection.
	ActiveProjectSlug string

	Heartbeat HeartbeatConfig
	Bus       BusConfig
	Telemetry TelemetryConfig
}

type HeartbeatConfig struct {
	// Interval is how often a project agent writes its heartbeat file.
	Interval time.Duration
	// TTL is the freshness window: a heartbeat older than this is stale.
	TTL time.Duration
}

type BusConfig struct {
	// QueueDepth is the bounded per-subscriber event queue size.
	QueueDepth int
	// Debounce is the filesystem watcher coalescing window.
	Debounce time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:              envInt("MAESTRO_PORT", 7777),
		Version:           envStr("MAESTRO_VERSION", "0.4.0"),
		StoreRoot:         envStr("MAESTRO_STORE", ""),
		ActiveProjectSlug: envStr("MAESTRO_ACTIVE_PROJECT_SLUG", ""),
		Heartbeat: HeartbeatConfig{
			Interval: envSeconds("MAESTRO_HEARTBEAT_INTERVAL_SECONDS", 30*time.Second),
			TTL:      envSeconds("MAESTRO_HEARTBEAT_TTL_SECONDS", 90*time.Second),
		},
		Bus: BusConfig{
			QueueDepth: envInt("MAESTRO_EVENT_QUEUE_DEPTH", 256),
			Debounce:   envMillis("MAESTRO_WATCH_DEBOUNCE_MS", 0),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "maestro-runtime"),
		},
	}
}

// DefaultDebounce is the watcher coalescing window when unconfigured.
const DefaultDebounce = 150 * time.Millisecond

// Debounce returns the configured watcher debounce or the default.
func (c *Config) Debounce() time.Duration {
	if c.Bus.Debounce > 0 {
		return c.Bus.Debounce
	}
	return DefaultDebounce
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}

func envMillis(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return time.Duration(i) * time.Millisecond
		}
	}
	return fallback
}
