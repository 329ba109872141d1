package mrs

// SensorIndicationReport groups the detections owned by one sensor inside
// an indication report.
type SensorIndicationReport struct {
	SensorIdentification SensorIdentification `json:"sensorIdentification"`
	Detections           []Detection          `json:"detections"`
}

// DeviceIndicationReport is the protocol message batching detections for
// delivery. For a single device the report carries sensor groups directly;
// for a device hub each sub-device contributes a nested report
// (device -> sub-device -> sensor group -> detections).
type DeviceIndicationReport struct {
	DeviceIdentification DeviceIdentification     `json:"deviceIdentification"`
	Sensors              []SensorIndicationReport `json:"sensors,omitempty"`
	SubReports           []DeviceIndicationReport `json:"subReports,omitempty"`
}

// Kind implements Message
func (*DeviceIndicationReport) Kind() MessageKind { return KindDeviceIndicationReport }

// DetectionCount returns the total number of detections in the report,
// including nested sub-device reports.
func (r *DeviceIndicationReport) DetectionCount() int {
	n := 0
	for i := range r.Sensors {
		n += len(r.Sensors[i].Detections)
	}
	for i := range r.SubReports {
		n += r.SubReports[i].DetectionCount()
	}
	return n
}

// AllDetections returns every detection in the report in document order.
func (r *DeviceIndicationReport) AllDetections() []Detection {
	var out []Detection
	for i := range r.Sensors {
		out = append(out, r.Sensors[i].Detections...)
	}
	for i := range r.SubReports {
		out = append(out, r.SubReports[i].AllDetections()...)
	}
	return out
}
