// Package config loads the daemon configuration: defaults, then a JSON
// file, then MARS_-prefixed environment overrides. Every struct validates
// itself; a config that fails validation never reaches the adapter.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ZeMeny/Mars-Sensor/errors"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "MARS"

// Duration wraps time.Duration so JSON configs can say "30s" instead of
// nanosecond counts.
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or a number of
// nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(v))
		return nil
	default:
		return fmt.Errorf("duration must be a string or number, got %T", raw)
	}
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete daemon configuration.
type Config struct {
	Device     DeviceConfig     `json:"device"`
	Adapter    AdapterConfig    `json:"adapter"`
	Transports TransportsConfig `json:"transports"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
}

// DeviceConfig points at the JSON documents describing the device.
type DeviceConfig struct {
	// ConfigurationFile holds the device configuration payload sent to
	// registering parties
	ConfigurationFile string `json:"configuration_file"`

	// StatusFile holds the initial device status report payload
	StatusFile string `json:"status_file"`
}

// AdapterConfig mirrors the adapter options.
type AdapterConfig struct {
	ValidateMessages   bool     `json:"validate_messages"`
	ValidateClients    bool     `json:"validate_clients"`
	AutoHeartbeat      bool     `json:"auto_heartbeat"`
	HeartbeatInterval  Duration `json:"heartbeat_interval"`
	FullStatusInterval Duration `json:"full_status_interval"`
	CanTimeout         bool     `json:"can_timeout"`
	SessionTimeout     Duration `json:"session_timeout"`
	MaxIndicationBatch int      `json:"max_indication_batch"`
	InboundRate        float64  `json:"inbound_rate"`
	InboundBurst       int      `json:"inbound_burst"`
}

// TransportsConfig enables and addresses the wire bindings.
type TransportsConfig struct {
	Websocket WebsocketConfig `json:"websocket"`
	NATS      NATSConfig      `json:"nats"`
	TCP       TCPConfig       `json:"tcp"`
}

// WebsocketConfig configures the websocket binding.
type WebsocketConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Path    string `json:"path"`
}

// NATSConfig configures the NATS binding.
type NATSConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

// TCPConfig configures the raw TCP binding.
type TCPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level"`

	// Format is json or text
	Format string `json:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// DefaultConfig returns the documented defaults: websocket binding on
// :8870, client and message validation on, metrics off.
func DefaultConfig() *Config {
	return &Config{
		Adapter: AdapterConfig{
			ValidateMessages:   true,
			ValidateClients:    true,
			AutoHeartbeat:      false,
			HeartbeatInterval:  Duration(time.Second),
			FullStatusInterval: Duration(60 * time.Second),
			CanTimeout:         true,
			SessionTimeout:     Duration(60 * time.Second),
			MaxIndicationBatch: 400,
			InboundBurst:       10,
		},
		Transports: TransportsConfig{
			Websocket: WebsocketConfig{Enabled: true, Addr: ":8870", Path: "/mars"},
			NATS:      NATSConfig{URL: "nats://127.0.0.1:4222", Subject: "mars.inbound"},
			TCP:       TCPConfig{Addr: ":8871"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Addr: ":9100"},
	}
}

// Load builds the configuration from defaults, the optional file at path,
// and environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "Config", "Load", path)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapFatal(err, "Config", "Load",
				fmt.Sprintf("parse %s", path))
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies MARS_-prefixed environment variables on top of
// the loaded configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "_DEVICE_CONFIGURATION_FILE"); v != "" {
		cfg.Device.ConfigurationFile = v
	}
	if v := os.Getenv(EnvPrefix + "_DEVICE_STATUS_FILE"); v != "" {
		cfg.Device.StatusFile = v
	}
	if v := os.Getenv(EnvPrefix + "_WEBSOCKET_ADDR"); v != "" {
		cfg.Transports.Websocket.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "_NATS_URL"); v != "" {
		cfg.Transports.NATS.URL = v
	}
	if v := os.Getenv(EnvPrefix + "_NATS_SUBJECT"); v != "" {
		cfg.Transports.NATS.Subject = v
	}
	if v := os.Getenv(EnvPrefix + "_TCP_ADDR"); v != "" {
		cfg.Transports.TCP.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "_SESSION_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Adapter.SessionTimeout = Duration(parsed)
		}
	}
	if v := os.Getenv(EnvPrefix + "_AUTO_HEARTBEAT"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Adapter.AutoHeartbeat = parsed
		}
	}
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.Device.ConfigurationFile == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate",
			"device.configuration_file is required")
	}
	if c.Device.StatusFile == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate",
			"device.status_file is required")
	}
	if c.Adapter.HeartbeatInterval.Std() <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"adapter.heartbeat_interval must be positive")
	}
	if c.Adapter.FullStatusInterval.Std() < c.Adapter.HeartbeatInterval.Std() {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"adapter.full_status_interval must be at least one heartbeat interval")
	}
	if c.Adapter.CanTimeout && c.Adapter.SessionTimeout.Std() <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"adapter.session_timeout must be positive when timeouts are enabled")
	}
	if c.Adapter.MaxIndicationBatch <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"adapter.max_indication_batch must be positive")
	}

	if !c.Transports.Websocket.Enabled && !c.Transports.NATS.Enabled && !c.Transports.TCP.Enabled {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"at least one transport must be enabled")
	}
	if c.Transports.Websocket.Enabled && c.Transports.Websocket.Addr == "" {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"transports.websocket.addr is required when enabled")
	}
	if c.Transports.NATS.Enabled && c.Transports.NATS.URL == "" {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"transports.nats.url is required when enabled")
	}
	if c.Transports.TCP.Enabled && c.Transports.TCP.Addr == "" {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"transports.tcp.addr is required when enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("logging.format %q is not one of json, text", c.Logging.Format))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"metrics.addr is required when enabled")
	}
	return nil
}
