// Package indication transforms batches of canonical detections into
// protocol indication reports: it derives bearings for aerial tracks from
// successive positions, groups detections by owning sensor or sub-device,
// and enforces the report batch cap.
package indication

import (
	"sync"

	"github.com/ZeMeny/Mars-Sensor/geo"
	"github.com/ZeMeny/Mars-Sensor/mrs"
)

// Enricher builds indication reports. It owns the last-seen table keyed by
// track identity, carried across flush cycles so the first detection of a
// track in a new batch can still derive a bearing from history. It performs
// no I/O.
type Enricher struct {
	config   *mrs.DeviceConfiguration
	maxBatch int

	mu       sync.Mutex
	lastSeen map[int]mrs.Detection
}

// NewEnricher creates an enricher for the given adapter configuration.
// maxBatch caps the number of detections per report; overflow is truncated,
// not queued to the next flush.
func NewEnricher(config *mrs.DeviceConfiguration, maxBatch int) *Enricher {
	return &Enricher{
		config:   config,
		maxBatch: maxBatch,
		lastSeen: make(map[int]mrs.Detection),
	}
}

// BuildReport enriches an ordered batch of detections and wraps it in the
// protocol's nested report structure. Returns nil for an empty batch.
func (e *Enricher) BuildReport(detections []mrs.Detection) *mrs.DeviceIndicationReport {
	if len(detections) == 0 {
		return nil
	}
	if len(detections) > e.maxBatch {
		detections = detections[:e.maxBatch]
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	enriched := make([]mrs.Detection, len(detections))
	// Last position of each track within this batch, so a track's second
	// detection derives its bearing from the first rather than history.
	prior := make(map[int]mrs.Location)

	for i, det := range detections {
		if det.Aerial() {
			from, ok := prior[det.TrackID]
			if !ok {
				if last, seen := e.lastSeen[det.TrackID]; seen {
					from, ok = last.Location, true
				}
			}
			if ok {
				det.BearingMils = geo.BearingMils(
					geo.Point{Latitude: from.Latitude, Longitude: from.Longitude},
					geo.Point{Latitude: det.Location.Latitude, Longitude: det.Location.Longitude},
				)
			} else {
				det.BearingMils = 0
			}
		}
		prior[det.TrackID] = det.Location
		enriched[i] = det
	}

	for _, det := range enriched {
		e.lastSeen[det.TrackID] = det
	}

	return e.group(enriched)
}

// group wraps enriched detections in the report structure: for a device hub
// each resolved sub-device contributes a nested report; for a single device
// detections land in per-sensor groups.
func (e *Enricher) group(detections []mrs.Detection) *mrs.DeviceIndicationReport {
	report := &mrs.DeviceIndicationReport{
		DeviceIdentification: e.config.DeviceIdentification,
	}

	// Preserve arrival order of both groups and members.
	type groupKey struct {
		hint string
	}
	var order []groupKey
	groups := make(map[groupKey][]mrs.Detection)
	for _, det := range detections {
		key := groupKey{hint: det.SensorHint}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], det)
	}

	for _, key := range order {
		members := groups[key]
		if e.config.IsHub() {
			if sub, ok := e.findSubDevice(key.hint); ok {
				report.SubReports = append(report.SubReports, mrs.DeviceIndicationReport{
					DeviceIdentification: sub.DeviceIdentification,
					Sensors: []mrs.SensorIndicationReport{
						{SensorIdentification: firstSensor(sub), Detections: members},
					},
				})
				continue
			}
		}
		report.Sensors = append(report.Sensors, mrs.SensorIndicationReport{
			SensorIdentification: e.resolveSensor(key.hint),
			Detections:           members,
		})
	}
	return report
}

// findSubDevice matches a hint against sub-device identities of a hub.
func (e *Enricher) findSubDevice(hint string) (*mrs.DeviceConfiguration, bool) {
	if hint == "" {
		return nil, false
	}
	for i := range e.config.SubDevices {
		if e.config.SubDevices[i].DeviceIdentification.DeviceName == hint {
			return &e.config.SubDevices[i], true
		}
	}
	return nil, false
}

// resolveSensor matches a hint against the device's own sensors, falling
// back to the first configured sensor, then to a default identity.
func (e *Enricher) resolveSensor(hint string) mrs.SensorIdentification {
	if hint != "" {
		for _, sc := range e.config.SensorConfigurations {
			if sc.SensorIdentification.SensorName == hint {
				return sc.SensorIdentification
			}
		}
	}
	return firstSensor(e.config)
}

func firstSensor(cfg *mrs.DeviceConfiguration) mrs.SensorIdentification {
	if len(cfg.SensorConfigurations) > 0 {
		return cfg.SensorConfigurations[0].SensorIdentification
	}
	return mrs.SensorIdentification{
		SensorName: cfg.DeviceIdentification.DeviceName,
		SensorType: "Undefined",
	}
}

// LastSeen returns the most recently enriched detection for a track.
func (e *Enricher) LastSeen(trackID int) (mrs.Detection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	det, ok := e.lastSeen[trackID]
	return det, ok
}

// Reset clears the last-seen history.
func (e *Enricher) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = make(map[int]mrs.Detection)
}
