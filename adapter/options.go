package adapter

import (
	"log/slog"
	"time"

	"github.com/ZeMeny/Mars-Sensor/errors"
	"github.com/ZeMeny/Mars-Sensor/metric"
	"github.com/ZeMeny/Mars-Sensor/mrs"
)

// Default option values
const (
	DefaultHeartbeatInterval  = time.Second
	DefaultFullStatusInterval = 60 * time.Second
	DefaultSessionTimeout     = 60 * time.Second
	DefaultMaxIndicationBatch = 400
	DefaultInboundBurst       = 10
)

// Options configures an Adapter. Start from DefaultOptions and override.
type Options struct {
	// ValidateMessages runs the schema validator on every inbound and
	// outbound message
	ValidateMessages bool

	// ValidateClients silently discards traffic from unregistered
	// identities
	ValidateClients bool

	// AutoHeartbeat sends an empty status report to every technical-status
	// subscriber on each scheduler tick
	AutoHeartbeat bool

	// HeartbeatInterval is the scheduler tick period
	HeartbeatInterval time.Duration

	// FullStatusInterval is the period of the full status broadcast
	FullStatusInterval time.Duration

	// CanTimeout enables idle-session eviction
	CanTimeout bool

	// SessionTimeout is the idle time after which a session is evicted
	SessionTimeout time.Duration

	// MaxIndicationBatch caps detections per indication report; overflow
	// is truncated, not carried to the next tick
	MaxIndicationBatch int

	// InboundRate limits envelopes per second accepted from one origin
	// address; zero disables limiting
	InboundRate float64

	// InboundBurst is the token bucket burst for InboundRate
	InboundBurst int

	// Codec overrides the wire codec; nil selects the JSON codec
	Codec mrs.Codec

	// Validator overrides the schema validator; nil selects the built-in
	// JSON Schema validator
	Validator mrs.Validator

	// Logger receives structured logs; nil selects slog.Default
	Logger *slog.Logger

	// Metrics optionally registers adapter metrics; nil disables them
	Metrics *metric.Registry
}

// DefaultOptions returns the documented option defaults.
func DefaultOptions() Options {
	return Options{
		ValidateMessages:   true,
		ValidateClients:    true,
		AutoHeartbeat:      false,
		HeartbeatInterval:  DefaultHeartbeatInterval,
		FullStatusInterval: DefaultFullStatusInterval,
		CanTimeout:         true,
		SessionTimeout:     DefaultSessionTimeout,
		MaxIndicationBatch: DefaultMaxIndicationBatch,
		InboundBurst:       DefaultInboundBurst,
	}
}

// Validate checks option invariants and fills derived defaults.
func (o *Options) Validate() error {
	if o.HeartbeatInterval <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Options", "Validate",
			"heartbeat interval must be positive")
	}
	if o.FullStatusInterval < o.HeartbeatInterval {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Options", "Validate",
			"full status interval must be at least one tick")
	}
	if o.CanTimeout && o.SessionTimeout <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Options", "Validate",
			"session timeout must be positive when eviction is enabled")
	}
	if o.MaxIndicationBatch <= 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Options", "Validate",
			"max indication batch must be positive")
	}
	if o.InboundRate < 0 {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Options", "Validate",
			"inbound rate cannot be negative")
	}
	if o.InboundRate > 0 && o.InboundBurst <= 0 {
		o.InboundBurst = DefaultInboundBurst
	}
	return nil
}
