package adapter

import (
	"context"

	"github.com/ZeMeny/Mars-Sensor/errors"
	"github.com/ZeMeny/Mars-Sensor/mrs"
	"github.com/ZeMeny/Mars-Sensor/session"
)

// sendToSession validates, encodes and delivers one message to one party.
// Validation failures raise the validation-error event instead of sending;
// transport failures are logged and returned but never retried.
func (a *Adapter) sendToSession(sess *session.Session, msg mrs.Message) error {
	if a.opts.ValidateMessages {
		if err := a.validator.Validate(msg); err != nil {
			a.metrics.recordValidationError()
			a.events.publish(event{kind: eventValidationError, msg: msg, reason: err.Error()})
			return err
		}
	}
	if sess.Handle == nil {
		// Speculative sessions have no transport yet; delivery resumes
		// after the party completes a configuration exchange.
		return nil
	}

	data, err := a.codec.Encode(msg)
	if err != nil {
		return errors.Wrap(err, "Adapter", "sendToSession", "encode")
	}
	if err := sess.Handle.Send(context.Background(), data); err != nil {
		a.logger.Warn("send failed", "party", sess.Identity, "kind", msg.Kind(), "error", err)
		return errors.WrapTransient(errors.ErrSendFailed, "Adapter", "sendToSession", sess.Identity)
	}

	a.metrics.recordSent(msg.Kind().String())
	a.events.publish(event{kind: eventSent, msg: msg, party: sess.Identity})
	return nil
}

// sendToSubscribed fans one message out to every session subscribed to the
// category. A failed send never aborts the fan-out; remaining sessions
// still receive their copy.
func (a *Adapter) sendToSubscribed(category mrs.SubscriptionType, msg mrs.Message) {
	a.registry.ForEachSubscribed(category, func(sess *session.Session) {
		_ = a.sendToSession(sess, msg)
	})
}
