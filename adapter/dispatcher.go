package adapter

import (
	"fmt"

	"github.com/ZeMeny/Mars-Sensor/mrs"
	"github.com/ZeMeny/Mars-Sensor/session"
	"github.com/ZeMeny/Mars-Sensor/transport"
)

// HandleMessage is the inbound callback handed to every transport binding.
// It decodes the envelope kind, validates the message, raises the
// message-received event and routes to the kind handler. Each envelope is
// terminal in one call; nothing below this boundary unwinds past it.
func (a *Adapter) HandleMessage(h transport.Handle, remoteAddr string, data []byte) {
	if !a.allowInbound(remoteAddr) {
		a.logger.Debug("inbound rate limit exceeded", "origin", remoteAddr)
		return
	}

	msg, err := a.codec.Decode(data)
	if err != nil {
		// Unknown kinds and unparseable envelopes are discarded, never
		// propagated to the sender.
		a.logger.Info("discarding undecodable envelope", "origin", remoteAddr, "error", err)
		return
	}

	if a.opts.ValidateMessages {
		if err := a.validator.Validate(msg); err != nil {
			a.metrics.recordValidationError()
			a.events.publish(event{kind: eventValidationError, msg: msg, reason: err.Error()})
			return
		}
	}

	identity := partyIdentity(msg)
	a.metrics.recordReceived(msg.Kind().String())
	a.events.publish(event{kind: eventReceived, msg: msg, party: identity})

	// Reply construction must not take down the dispatcher; a panic is
	// reported on the validation-error channel and the next envelope
	// proceeds normally.
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("reply construction panicked: %v", r)
			a.logger.Error("dispatcher recovered", "party", identity, "panic", r)
			a.events.publish(event{kind: eventValidationError, msg: msg, reason: reason})
		}
	}()

	switch m := msg.(type) {
	case *mrs.DeviceConfiguration:
		a.handleConfiguration(h, remoteAddr, m)
	case *mrs.DeviceSubscription:
		a.handleSubscription(h, m)
	case *mrs.CommandMessage:
		a.handleCommand(h, m)
	default:
		// Report kinds are outbound-only; a party pushing one is noise.
		a.logger.Info("discarding unroutable message", "kind", msg.Kind(), "origin", remoteAddr)
	}
}

// partyIdentity extracts the requestor identity carried by the message.
func partyIdentity(msg mrs.Message) string {
	switch m := msg.(type) {
	case *mrs.DeviceConfiguration:
		return m.RequestorIdentification
	case *mrs.DeviceSubscription:
		return m.RequestorIdentification
	case *mrs.CommandMessage:
		return m.RequestorIdentification
	default:
		return ""
	}
}

// handleConfiguration registers the requesting party and replies with the
// adapter's own configuration. Only requests proceed; echoes and responses
// are ignored.
func (a *Adapter) handleConfiguration(h transport.Handle, remoteAddr string, m *mrs.DeviceConfiguration) {
	if m.MessageType != mrs.MessageTypeRequest {
		return
	}
	identity := m.RequestorIdentification
	if identity == "" {
		a.logger.Info("configuration request without requestor identity", "origin", remoteAddr)
		return
	}

	sess, replaced := a.registry.Register(identity, h, remoteAddr)
	if replaced != nil {
		// The party reconnected on a new transport; drop the stale one.
		if err := replaced.Close(); err != nil {
			a.logger.Debug("stale handle close failed", "party", identity, "error", err)
		}
	}
	a.metrics.recordSessions(a.registry.Len())
	a.logger.Info("party registered", "party", identity, "origin", remoteAddr)

	if err := a.sendToSession(sess, a.configReply()); err != nil {
		a.logger.Warn("configuration reply failed", "party", identity, "error", err)
	}
}

// handleSubscription applies the requested category set. A non-empty result
// earns an immediate full status report; an empty set unsubscribes the
// party and closes its transport.
func (a *Adapter) handleSubscription(h transport.Handle, m *mrs.DeviceSubscription) {
	identity := m.RequestorIdentification

	if a.opts.ValidateClients {
		if _, ok := a.registry.Get(identity); !ok {
			a.logger.Info("subscription from unknown party discarded", "party", identity)
			return
		}
	}

	known, removed := a.registry.SetSubscriptions(identity, m.SubscriptionTypes, !a.opts.ValidateClients)
	a.metrics.recordSessions(a.registry.Len())
	if !known {
		return
	}

	if len(m.SubscriptionTypes) == 0 {
		if removed != nil {
			if err := removed.Close(); err != nil {
				a.logger.Debug("unsubscribe close failed", "party", identity, "error", err)
			}
		}
		a.logger.Info("party unsubscribed", "party", identity)
		return
	}

	a.logger.Info("subscriptions updated", "party", identity, "categories", m.SubscriptionTypes)
	sess, ok := a.registry.Get(identity)
	if !ok {
		return
	}
	if sess.Handle == nil {
		// Speculative session recorded before registration; it will
		// receive traffic once a configuration exchange supplies a handle.
		sess = &session.Session{Identity: identity, Handle: h, Subscriptions: sess.Subscriptions}
	}
	if err := a.sendToSession(sess, a.fullStatus()); err != nil {
		a.logger.Warn("subscription status reply failed", "party", identity, "error", err)
	}
}

// handleCommand refreshes the party's session and answers with a redacted
// status report.
func (a *Adapter) handleCommand(h transport.Handle, m *mrs.CommandMessage) {
	identity := m.RequestorIdentification

	known := a.registry.Touch(identity)
	if a.opts.ValidateClients && !known {
		a.logger.Info("command from unknown party discarded", "party", identity)
		return
	}

	reply := a.emptyStatus()
	if sess, ok := a.registry.Get(identity); ok {
		if err := a.sendToSession(sess, reply); err != nil {
			a.logger.Warn("command reply failed", "party", identity, "error", err)
		}
		return
	}
	// Client validation disabled and no session: answer on the inbound
	// handle directly.
	sess := &session.Session{Identity: identity, Handle: h}
	if err := a.sendToSession(sess, reply); err != nil {
		a.logger.Warn("command reply failed", "party", identity, "error", err)
	}
}
