package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBind is the default TCP address the embedded node listens on.
	DefaultBind = ":43127"
	// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 1 << 20
	// DefaultMaxClients is the default for Config.MaxClients, where zero means
	// no limit. Start does not read MaxClients, so it does not bound the
	// number of concurrent dashboard connections.
	DefaultMaxClients = 256

	// DefaultCoalesceWindow bounds how long a recorder buffers events before
	// flushing a delta batch to subscribers.
	DefaultCoalesceWindow = 10 * time.Millisecond
	// DefaultCoalesceBatch caps the number of events a recorder buffers before
	// flushing regardless of DefaultCoalesceWindow.
	DefaultCoalesceBatch = 64
	// DefaultSubscriberBufferSize bounds the per-subscriber delivery queue;
	// a subscriber whose queue is full is dropped (unsubscribed).
	DefaultSubscriberBufferSize = 128

	// DefaultLogLevel controls verbosity for flowbus logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "flowbus.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultAppName is used when FLOWBUS_APP_NAME is not set.
	DefaultAppName = "flowbus"
)

// Config captures all runtime tunables for an embedded flowbus node.
//
// Loading a config *file* (spec.md's asset bundle / dashboard UI config) is
// out of scope; Load only ever reads environment variables.
type Config struct {
	// Node is the address of an external flowbus node to attach to. When
	// empty, Start spawns an embedded node instead (spec.md §6 "node").
	Node    string
	AppName string

	Bind           string
	AllowedOrigins []string

	MaxPayloadBytes int64
	PingInterval    time.Duration
	MaxClients      int

	CoalesceWindow       time.Duration
	CoalesceBatch        int
	SubscriberBufferSize int

	TLSCertPath string
	TLSKeyPath  string

	Logging LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the flowbus configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Node:            strings.TrimSpace(os.Getenv("FLOWBUS_NODE")),
		AppName:         getString("FLOWBUS_APP_NAME", DefaultAppName),
		Bind:            getString("FLOWBUS_BIND", DefaultBind),
		AllowedOrigins:  parseList(os.Getenv("FLOWBUS_ALLOWED_ORIGINS")),
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		PingInterval:    DefaultPingInterval,
		MaxClients:      DefaultMaxClients,

		CoalesceWindow:       DefaultCoalesceWindow,
		CoalesceBatch:        DefaultCoalesceBatch,
		SubscriberBufferSize: DefaultSubscriberBufferSize,

		TLSCertPath: strings.TrimSpace(os.Getenv("FLOWBUS_TLS_CERT")),
		TLSKeyPath:  strings.TrimSpace(os.Getenv("FLOWBUS_TLS_KEY")),

		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("FLOWBUS_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("FLOWBUS_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("FLOWBUS_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("FLOWBUS_MAX_PAYLOAD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLOWBUS_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("FLOWBUS_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLOWBUS_MAX_CLIENTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("FLOWBUS_MAX_CLIENTS must be a non-negative integer, got %q", raw))
		} else {
			cfg.MaxClients = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLOWBUS_COALESCE_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("FLOWBUS_COALESCE_WINDOW must be a non-negative duration, got %q", raw))
		} else {
			cfg.CoalesceWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLOWBUS_COALESCE_BATCH")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("FLOWBUS_COALESCE_BATCH must be a positive integer, got %q", raw))
		} else {
			cfg.CoalesceBatch = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLOWBUS_SUBSCRIBER_BUFFER_SIZE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("FLOWBUS_SUBSCRIBER_BUFFER_SIZE must be a positive integer, got %q", raw))
		} else {
			cfg.SubscriberBufferSize = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLOWBUS_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("FLOWBUS_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLOWBUS_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("FLOWBUS_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLOWBUS_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("FLOWBUS_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLOWBUS_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("FLOWBUS_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		problems = append(problems, "FLOWBUS_TLS_CERT and FLOWBUS_TLS_KEY must be provided together")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
