// Package adapter implements the session and delivery engine of the sensor
// adapter: it tracks registered parties, enforces their subscription state,
// runs the periodic scheduler that evicts stale parties and flushes pending
// status and detection traffic, and enriches raw detections into indication
// batches.
//
// The adapter is transport-agnostic: wire bindings feed inbound frames
// through HandleMessage and outbound traffic leaves through the opaque
// transport handles captured at registration. Each adapter instance is
// explicitly constructed and owns no process-wide state, so several
// adapters can serve different ports in one process.
package adapter

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ZeMeny/Mars-Sensor/errors"
	"github.com/ZeMeny/Mars-Sensor/indication"
	"github.com/ZeMeny/Mars-Sensor/mrs"
	"github.com/ZeMeny/Mars-Sensor/mrs/mrsjson"
	"github.com/ZeMeny/Mars-Sensor/mrs/schema"
	"github.com/ZeMeny/Mars-Sensor/session"
)

// Adapter is the session and delivery engine.
type Adapter struct {
	opts      Options
	codec     mrs.Codec
	validator mrs.Validator
	logger    *slog.Logger
	metrics   *adapterMetrics

	// configMu guards the device configuration against SetLocation racing
	// the dispatcher's configuration replies and snapshot reads.
	configMu sync.RWMutex
	config   *mrs.DeviceConfiguration

	statusMu sync.RWMutex
	status   *mrs.DeviceStatusReport

	registry *session.Registry
	enricher *indication.Enricher
	events   *eventBus

	// pendingMu guards the indication buffer against concurrent producers
	// and the scheduler flush; it is independent of the registry's lock.
	pendingMu sync.Mutex
	pending   []mrs.Detection

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	lifecycleMu sync.Mutex
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// New constructs an adapter for the given device configuration and full
// status report. Construction fails on missing aggregates or invalid
// options; the adapter never starts in an undefined state.
func New(config *mrs.DeviceConfiguration, status *mrs.DeviceStatusReport, opts Options) (*Adapter, error) {
	if config == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Adapter", "New", "device configuration")
	}
	if status == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Adapter", "New", "status report")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	codec := opts.Codec
	if codec == nil {
		codec = mrsjson.New()
	}
	validator := opts.Validator
	if validator == nil {
		v, err := schema.New()
		if err != nil {
			return nil, err
		}
		validator = v
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("device", config.DeviceIdentification.DeviceName)

	metrics, err := newAdapterMetrics(opts.Metrics)
	if err != nil {
		logger.Error("metrics initialization failed, continuing without", "error", err)
		metrics = nil
	}

	return &Adapter{
		opts:      opts,
		codec:     codec,
		validator: validator,
		logger:    logger,
		metrics:   metrics,
		config:    config,
		status:    status,
		registry:  session.NewRegistry(),
		enricher:  indication.NewEnricher(config, opts.MaxIndicationBatch),
		events:    newEventBus(logger),
		limiters:  make(map[string]*rate.Limiter),
	}, nil
}

// Start launches the scheduler and the observer dispatcher.
func (a *Adapter) Start() error {
	a.lifecycleMu.Lock()
	defer a.lifecycleMu.Unlock()

	if a.running {
		return errors.Wrap(errors.ErrAlreadyStarted, "Adapter", "Start", "lifecycle check")
	}
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.events.start()
	go a.run()
	a.running = true
	a.logger.Info("adapter started",
		"heartbeat_interval", a.opts.HeartbeatInterval,
		"full_status_interval", a.opts.FullStatusInterval,
		"session_timeout", a.opts.SessionTimeout)
	return nil
}

// Stop halts the scheduler, closes every session's transport handle, and
// drains the observer queue. Safe to call once after Start.
func (a *Adapter) Stop() error {
	a.lifecycleMu.Lock()
	defer a.lifecycleMu.Unlock()

	if !a.running {
		return errors.Wrap(errors.ErrNotStarted, "Adapter", "Stop", "lifecycle check")
	}
	close(a.stopCh)
	<-a.doneCh

	for _, sess := range a.registry.Snapshot() {
		a.closeSession(sess)
	}
	a.events.stop()
	a.running = false
	a.logger.Info("adapter stopped")
	return nil
}

// RegisterIndications appends canonical detections to the pending buffer.
// The buffer is flushed into one indication report on the next scheduler
// tick; anything beyond the batch cap at flush time is dropped.
func (a *Adapter) RegisterIndications(detections ...mrs.Detection) {
	if len(detections) == 0 {
		return
	}
	a.pendingMu.Lock()
	a.pending = append(a.pending, detections...)
	a.pendingMu.Unlock()
}

// OnMessageReceived registers an observer for inbound protocol messages.
func (a *Adapter) OnMessageReceived(fn MessageFunc) { a.events.onReceived(fn) }

// OnMessageSent registers an observer for outbound protocol messages.
func (a *Adapter) OnMessageSent(fn MessageFunc) { a.events.onSent(fn) }

// OnValidationError registers an observer for rejected messages.
func (a *Adapter) OnValidationError(fn ValidationErrorFunc) { a.events.onValidationError(fn) }

// Configuration returns a snapshot of the adapter's device configuration.
func (a *Adapter) Configuration() *mrs.DeviceConfiguration {
	a.configMu.RLock()
	defer a.configMu.RUnlock()
	cfg := *a.config
	return &cfg
}

// Sessions returns a snapshot of the registered sessions.
func (a *Adapter) Sessions() []*session.Session {
	return a.registry.Snapshot()
}

// SetStatus flips the communication, power and technical state of every
// sensor in the status report. True means OK.
func (a *Adapter) SetStatus(ok bool) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.status.SetStatus(ok)
}

// SetLocation updates the device and per-sensor location in both the
// configuration and the status report.
func (a *Adapter) SetLocation(latitude, longitude, altitude float64, reference mrs.AltitudeReference) {
	a.configMu.Lock()
	a.config.SetLocation(latitude, longitude, altitude, reference)
	a.configMu.Unlock()
	a.statusMu.Lock()
	a.status.SetLocation(latitude, longitude, altitude, reference)
	a.statusMu.Unlock()
}

// SendFullStatus sends the full status report to one registered party.
func (a *Adapter) SendFullStatus(identity string) error {
	sess, ok := a.registry.Get(identity)
	if !ok {
		return errors.WrapInvalid(errors.ErrUnknownParty, "Adapter", "SendFullStatus", identity)
	}
	return a.sendToSession(sess, a.fullStatus())
}

// SendEmptyStatus sends the redacted status report to one registered party.
func (a *Adapter) SendEmptyStatus(identity string) error {
	sess, ok := a.registry.Get(identity)
	if !ok {
		return errors.WrapInvalid(errors.ErrUnknownParty, "Adapter", "SendEmptyStatus", identity)
	}
	return a.sendToSession(sess, a.emptyStatus())
}

// BroadcastFullStatus sends the full status report to every technical-status
// subscriber.
func (a *Adapter) BroadcastFullStatus() {
	a.sendToSubscribed(mrs.TechnicalStatus, a.fullStatus())
}

// fullStatus snapshots the status report under the read lock so scheduler
// sends never race SetStatus/SetLocation.
func (a *Adapter) fullStatus() *mrs.DeviceStatusReport {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status.Clone()
}

func (a *Adapter) emptyStatus() *mrs.DeviceStatusReport {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status.Redacted()
}

// configReply is the adapter's own configuration, marked as a response.
// The snapshot is taken under the read lock so a concurrent SetLocation
// never tears the copy.
func (a *Adapter) configReply() *mrs.DeviceConfiguration {
	a.configMu.RLock()
	reply := *a.config
	a.configMu.RUnlock()
	reply.MessageType = mrs.MessageTypeResponse
	reply.RequestorIdentification = reply.DeviceIdentification.DeviceName
	return &reply
}

// allowInbound applies the per-origin rate limit.
func (a *Adapter) allowInbound(origin string) bool {
	if a.opts.InboundRate <= 0 {
		return true
	}
	a.limiterMu.Lock()
	defer a.limiterMu.Unlock()

	// Bounded: a flood of one-shot origins must not grow the map forever.
	if len(a.limiters) > 4096 {
		a.limiters = make(map[string]*rate.Limiter)
	}
	lim, ok := a.limiters[origin]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(a.opts.InboundRate), a.opts.InboundBurst)
		a.limiters[origin] = lim
	}
	return lim.Allow()
}

func (a *Adapter) closeSession(sess *session.Session) {
	if sess.Handle == nil {
		return
	}
	if err := sess.Handle.Close(); err != nil {
		a.logger.Debug("session close failed", "party", sess.Identity, "error", err)
	}
}

// tickInterval is exposed for the scheduler loop.
func (a *Adapter) tickInterval() time.Duration {
	return a.opts.HeartbeatInterval
}
