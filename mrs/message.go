package mrs

// MessageKind identifies the protocol message carried by an envelope
type MessageKind string

// Protocol message kinds
const (
	KindDeviceConfiguration    MessageKind = "DeviceConfiguration"
	KindDeviceSubscription     MessageKind = "DeviceSubscriptionConfiguration"
	KindCommandMessage         MessageKind = "CommandMessage"
	KindDeviceStatusReport     MessageKind = "DeviceStatusReport"
	KindDeviceIndicationReport MessageKind = "DeviceIndicationReport"
)

// String returns the wire name of the message kind
func (k MessageKind) String() string {
	return string(k)
}

// Known reports whether the kind is part of the protocol catalogue
func (k MessageKind) Known() bool {
	switch k {
	case KindDeviceConfiguration, KindDeviceSubscription, KindCommandMessage,
		KindDeviceStatusReport, KindDeviceIndicationReport:
		return true
	default:
		return false
	}
}

// Message is implemented by every protocol message type.
type Message interface {
	Kind() MessageKind
}

// Codec serializes protocol messages to and from their wire representation.
// The core is codec-agnostic; mrs/mrsjson provides the JSON implementation.
type Codec interface {
	// Decode parses a wire envelope into its protocol message.
	// Unknown kinds and malformed payloads return errors.ErrUnknownKind
	// and errors.ErrDecodeFailed respectively.
	Decode(data []byte) (Message, error)

	// Encode wraps a protocol message in a wire envelope.
	Encode(msg Message) ([]byte, error)
}

// Validator checks a decoded message against the protocol's structural
// rules. A nil return means valid; otherwise the error carries a
// human-readable reason.
type Validator interface {
	Validate(msg Message) error
}

// MessageType distinguishes a configuration request from an echo/response.
type MessageType string

// Configuration message types
const (
	MessageTypeRequest  MessageType = "Request"
	MessageTypeResponse MessageType = "Response"
	MessageTypeReport   MessageType = "Report"
)

// SubscriptionType is a traffic category a party can opt into.
type SubscriptionType string

// Subscription categories
const (
	// TechnicalStatus subscribes a party to periodic status reports
	TechnicalStatus SubscriptionType = "TechnicalStatus"
	// OperationalIndication subscribes a party to batched detection reports
	OperationalIndication SubscriptionType = "OperationalIndication"
)
