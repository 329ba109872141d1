package mrs

import "encoding/json"

// BITResult is a built-in-test outcome
type BITResult string

// StatusFlag is a yes/no device state
type StatusFlag string

// Status values
const (
	BITOK    BITResult  = "OK"
	BITFault BITResult  = "Fault"
	FlagYes  StatusFlag = "Yes"
	FlagNo   StatusFlag = "No"
)

// SensorStatusReport is the per-sensor slice of a status report. Detail and
// Picture are the bulky optional sub-records (sensor internals, media
// attachments) that the core forwards opaquely and strips when redacting.
type SensorStatusReport struct {
	SensorIdentification SensorIdentification `json:"sensorIdentification"`
	CommunicationState   BITResult            `json:"communicationState,omitempty"`
	PowerState           StatusFlag           `json:"powerState,omitempty"`
	TechnicalState       BITResult            `json:"technicalState,omitempty"`
	Location             *Location            `json:"location,omitempty"`
	Detail               json.RawMessage      `json:"detail,omitempty"`
	Picture              json.RawMessage      `json:"picture,omitempty"`
}

// DeviceStatusReport is the protocol's technical-state aggregate. SubReports
// carries per-sub-device status when the adapter represents a device hub.
type DeviceStatusReport struct {
	DeviceIdentification DeviceIdentification `json:"deviceIdentification"`
	Sensors              []SensorStatusReport `json:"sensors,omitempty"`
	SubReports           []DeviceStatusReport `json:"subReports,omitempty"`
}

// Kind implements Message
func (*DeviceStatusReport) Kind() MessageKind { return KindDeviceStatusReport }

// Redacted returns a copy of the report with the bulky optional sub-fields
// (per-sensor detail and media payloads) omitted. This is the "empty" status
// used for heartbeats and command replies.
func (s *DeviceStatusReport) Redacted() *DeviceStatusReport {
	out := &DeviceStatusReport{
		DeviceIdentification: s.DeviceIdentification,
	}
	if len(s.Sensors) > 0 {
		out.Sensors = make([]SensorStatusReport, len(s.Sensors))
		for i, sensor := range s.Sensors {
			sensor.Detail = nil
			sensor.Picture = nil
			out.Sensors[i] = sensor
		}
	}
	for i := range s.SubReports {
		out.SubReports = append(out.SubReports, *s.SubReports[i].Redacted())
	}
	return out
}

// Clone returns a deep copy of the report. Opaque raw sub-records are
// shared; the protocol treats them as immutable values.
func (s *DeviceStatusReport) Clone() *DeviceStatusReport {
	out := &DeviceStatusReport{
		DeviceIdentification: s.DeviceIdentification,
	}
	if len(s.Sensors) > 0 {
		out.Sensors = make([]SensorStatusReport, len(s.Sensors))
		copy(out.Sensors, s.Sensors)
		for i := range out.Sensors {
			if s.Sensors[i].Location != nil {
				loc := *s.Sensors[i].Location
				out.Sensors[i].Location = &loc
			}
		}
	}
	for i := range s.SubReports {
		out.SubReports = append(out.SubReports, *s.SubReports[i].Clone())
	}
	return out
}

// SetStatus sets the communication, technical and power state of every
// sensor in the report. True means OK/powered, false means fault.
func (s *DeviceStatusReport) SetStatus(ok bool) {
	comm, power := BITFault, FlagNo
	if ok {
		comm, power = BITOK, FlagYes
	}
	for i := range s.Sensors {
		s.Sensors[i].CommunicationState = comm
		s.Sensors[i].PowerState = power
		s.Sensors[i].TechnicalState = comm
	}
	for i := range s.SubReports {
		s.SubReports[i].SetStatus(ok)
	}
}

// SetLocation sets the location of every sensor in the report.
func (s *DeviceStatusReport) SetLocation(latitude, longitude, altitude float64, reference AltitudeReference) {
	loc := &Location{
		Latitude:  latitude,
		Longitude: longitude,
		Altitude: &Altitude{
			Value:     altitude,
			Reference: reference,
			Datum:     DatumWGS84,
		},
	}
	for i := range s.Sensors {
		copied := *loc
		s.Sensors[i].Location = &copied
	}
	for i := range s.SubReports {
		s.SubReports[i].SetLocation(latitude, longitude, altitude, reference)
	}
}
