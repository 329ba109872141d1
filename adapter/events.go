package adapter

import (
	"log/slog"
	"sync"

	"github.com/ZeMeny/Mars-Sensor/mrs"
)

// MessageFunc observes a message exchanged with a party.
type MessageFunc func(msg mrs.Message, party string)

// ValidationErrorFunc observes a message that failed validation, with the
// human-readable reason.
type ValidationErrorFunc func(msg mrs.Message, reason string)

type eventKind int

const (
	eventReceived eventKind = iota
	eventSent
	eventValidationError
)

type event struct {
	kind   eventKind
	msg    mrs.Message
	party  string
	reason string
}

// eventQueueSize bounds the observer queue; overflow is dropped so slow
// observers can never block the send path.
const eventQueueSize = 256

// eventBus fans events out to registered observers from a dedicated
// goroutine.
type eventBus struct {
	mu         sync.RWMutex
	received   []MessageFunc
	sent       []MessageFunc
	validation []ValidationErrorFunc

	queue  chan event
	done   chan struct{}
	logger *slog.Logger

	dropMu  sync.Mutex
	dropped uint64
}

// newEventBus builds a stopped bus; events published before start are
// dropped.
func newEventBus(logger *slog.Logger) *eventBus {
	return &eventBus{logger: logger}
}

func (b *eventBus) start() {
	b.mu.Lock()
	b.queue = make(chan event, eventQueueSize)
	b.done = make(chan struct{})
	queue, done := b.queue, b.done
	b.mu.Unlock()
	go b.dispatch(queue, done)
}

func (b *eventBus) stop() {
	b.mu.Lock()
	queue, done := b.queue, b.done
	b.queue = nil
	b.mu.Unlock()
	close(queue)
	<-done
}

func (b *eventBus) dispatch(queue chan event, done chan struct{}) {
	defer close(done)
	for ev := range queue {
		b.mu.RLock()
		var msgFns []MessageFunc
		var valFns []ValidationErrorFunc
		switch ev.kind {
		case eventReceived:
			msgFns = append(msgFns, b.received...)
		case eventSent:
			msgFns = append(msgFns, b.sent...)
		case eventValidationError:
			valFns = append(valFns, b.validation...)
		}
		b.mu.RUnlock()

		for _, fn := range msgFns {
			fn(ev.msg, ev.party)
		}
		for _, fn := range valFns {
			fn(ev.msg, ev.reason)
		}
	}
}

// publish enqueues an event without blocking; overflow is counted and
// logged, never waited on. Events published while the bus is stopped are
// dropped the same way. The read lock is held across the send: stop takes
// the write lock before closing the queue, so an in-flight publish can
// never hit a closed channel.
func (b *eventBus) publish(ev event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.queue == nil {
		return
	}
	select {
	case b.queue <- ev:
	default:
		b.dropMu.Lock()
		b.dropped++
		n := b.dropped
		b.dropMu.Unlock()
		if n%100 == 1 {
			b.logger.Warn("observer queue full, dropping events", "dropped", n)
		}
	}
}

func (b *eventBus) onReceived(fn MessageFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.received = append(b.received, fn)
}

func (b *eventBus) onSent(fn MessageFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, fn)
}

func (b *eventBus) onValidationError(fn ValidationErrorFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validation = append(b.validation, fn)
}
