package adapter

import (
	"time"

	"github.com/ZeMeny/Mars-Sensor/mrs"
)

// run is the scheduler loop. A single goroutine consumes the ticker, so
// ticks can never overlap: a tick that overruns simply delays the next one,
// and the ticker drops intermediate fires. Within a tick the order is
// fixed: eviction, heartbeat, full-status broadcast, indication flush.
func (a *Adapter) run() {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.tickInterval())
	defer ticker.Stop()

	var elapsed time.Duration
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			elapsed += a.tickInterval()
			a.tick(time.Now(), elapsed)
		}
	}
}

func (a *Adapter) tick(now time.Time, elapsed time.Duration) {
	if a.opts.CanTimeout {
		a.evictStale(now)
	}

	if a.opts.AutoHeartbeat {
		a.sendToSubscribed(mrs.TechnicalStatus, a.emptyStatus())
	}

	if a.fullStatusDue(elapsed) {
		a.sendToSubscribed(mrs.TechnicalStatus, a.fullStatus())
	}

	a.flushIndications()
}

// evictStale removes idle sessions before any send this tick, so an
// expired session never receives the tick's output.
func (a *Adapter) evictStale(now time.Time) {
	evicted := a.registry.EvictExpired(now, a.opts.SessionTimeout)
	if len(evicted) == 0 {
		return
	}
	for _, sess := range evicted {
		a.closeSession(sess)
		a.logger.Info("session evicted", "party", sess.Identity, "idle_since", sess.LastActivity)
	}
	a.metrics.recordEvictions(len(evicted))
	a.metrics.recordSessions(a.registry.Len())
}

// fullStatusDue reports whether the accumulated elapsed time lands within
// half a tick of a full-status interval boundary.
func (a *Adapter) fullStatusDue(elapsed time.Duration) bool {
	rem := elapsed % a.opts.FullStatusInterval
	tol := a.tickInterval() / 2
	return rem < tol || a.opts.FullStatusInterval-rem < tol
}

// flushIndications drains the pending buffer into one enriched report and
// fans it out to every operational-indication subscriber. The buffer lock
// is held across build and clear so producers cannot interleave.
func (a *Adapter) flushIndications() {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()

	if len(a.pending) == 0 {
		return
	}
	dropped := len(a.pending) - a.opts.MaxIndicationBatch
	report := a.enricher.BuildReport(a.pending)
	if dropped > 0 {
		a.logger.Warn("indication batch truncated", "dropped", dropped, "cap", a.opts.MaxIndicationBatch)
	}
	a.pending = a.pending[:0]

	if report == nil {
		return
	}
	a.metrics.recordBatch(report.DetectionCount())
	a.sendToSubscribed(mrs.OperationalIndication, report)
}
