package mrs

import "encoding/json"

// DeviceIdentification names a device within the protocol.
type DeviceIdentification struct {
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType,omitempty"`
}

// SensorIdentification names a sensor within a device.
type SensorIdentification struct {
	SensorName string `json:"sensorName"`
	SensorType string `json:"sensorType,omitempty"`
}

// SensorConfiguration describes one sensor under a device. Detail carries
// sensor-family-specific configuration the core forwards unmodified.
type SensorConfiguration struct {
	SensorIdentification SensorIdentification `json:"sensorIdentification"`
	Detail               json.RawMessage      `json:"detail,omitempty"`
}

// DeviceConfiguration is the protocol's configuration aggregate. Inbound,
// it is the registration request of a party (MessageType == Request) naming
// its callback address. Outbound, it is the adapter's own configuration
// echoed back to the requesting party.
//
// A non-empty SubDevices list marks this configuration as a device hub:
// multiple sub-devices exposed through one adapter instance.
type DeviceConfiguration struct {
	MessageType             MessageType           `json:"messageType"`
	RequestorIdentification string                `json:"requestorIdentification,omitempty"`
	NotificationServiceIP   string                `json:"notificationServiceIP,omitempty"`
	NotificationServicePort string                `json:"notificationServicePort,omitempty"`
	DeviceIdentification    DeviceIdentification  `json:"deviceIdentification"`
	Location                *Location             `json:"location,omitempty"`
	SensorConfigurations    []SensorConfiguration `json:"sensorConfigurations,omitempty"`
	SubDevices              []DeviceConfiguration `json:"subDevices,omitempty"`
}

// Kind implements Message
func (*DeviceConfiguration) Kind() MessageKind { return KindDeviceConfiguration }

// IsHub reports whether this configuration represents a device hub
func (c *DeviceConfiguration) IsHub() bool {
	return len(c.SubDevices) > 0
}

// SetLocation sets the geodetic location of the configured device.
func (c *DeviceConfiguration) SetLocation(latitude, longitude, altitude float64, reference AltitudeReference) {
	c.Location = &Location{
		Latitude:  latitude,
		Longitude: longitude,
		Altitude: &Altitude{
			Value:     altitude,
			Reference: reference,
			Datum:     DatumWGS84,
		},
	}
}

// DeviceSubscription declares the traffic categories a party wants to
// receive. An empty SubscriptionTypes list is an unsubscribe request.
type DeviceSubscription struct {
	RequestorIdentification string             `json:"requestorIdentification"`
	SubscriptionTypes       []SubscriptionType `json:"subscriptionTypes,omitempty"`
}

// Kind implements Message
func (*DeviceSubscription) Kind() MessageKind { return KindDeviceSubscription }

// CommandMessage carries an opaque command payload from a party. The core
// only uses it to refresh the party's session.
type CommandMessage struct {
	RequestorIdentification string          `json:"requestorIdentification"`
	Command                 json.RawMessage `json:"command,omitempty"`
}

// Kind implements Message
func (*CommandMessage) Kind() MessageKind { return KindCommandMessage }
