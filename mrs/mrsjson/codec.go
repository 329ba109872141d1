// Package mrsjson implements the mrs.Codec interface over a JSON envelope.
// Every wire message is an envelope with a kind discriminator, a unique ID,
// a millisecond timestamp, and the protocol message as raw payload.
package mrsjson

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ZeMeny/Mars-Sensor/errors"
	"github.com/ZeMeny/Mars-Sensor/mrs"
)

// Envelope is the wire frame wrapping every protocol message.
type Envelope struct {
	Type      mrs.MessageKind `json:"type"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Codec implements mrs.Codec with JSON envelopes.
type Codec struct{}

// New returns a JSON codec
func New() *Codec {
	return &Codec{}
}

var _ mrs.Codec = (*Codec)(nil)

// Decode parses a wire envelope into its protocol message.
func (c *Codec) Decode(data []byte) (mrs.Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Codec", "Decode", err.Error())
	}

	var msg mrs.Message
	switch env.Type {
	case mrs.KindDeviceConfiguration:
		msg = &mrs.DeviceConfiguration{}
	case mrs.KindDeviceSubscription:
		msg = &mrs.DeviceSubscription{}
	case mrs.KindCommandMessage:
		msg = &mrs.CommandMessage{}
	case mrs.KindDeviceStatusReport:
		msg = &mrs.DeviceStatusReport{}
	case mrs.KindDeviceIndicationReport:
		msg = &mrs.DeviceIndicationReport{}
	default:
		return nil, errors.WrapInvalid(errors.ErrUnknownKind, "Codec", "Decode",
			fmt.Sprintf("kind %q", env.Type))
	}

	if len(env.Payload) == 0 {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Codec", "Decode", "empty payload")
	}
	if err := json.Unmarshal(env.Payload, msg); err != nil {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Codec", "Decode", err.Error())
	}
	return msg, nil
}

// Encode wraps a protocol message in a wire envelope.
func (c *Codec) Encode(msg mrs.Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "Codec", "Encode", "payload marshal")
	}
	env := Envelope{
		Type:      msg.Kind(),
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "Codec", "Encode", "envelope marshal")
	}
	return data, nil
}
