package mrs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStatus() *DeviceStatusReport {
	return &DeviceStatusReport{
		DeviceIdentification: DeviceIdentification{DeviceName: "perimeter-radar", DeviceType: "Radar"},
		Sensors: []SensorStatusReport{
			{
				SensorIdentification: SensorIdentification{SensorName: "antenna-1", SensorType: "Radar"},
				CommunicationState:   BITOK,
				Detail:               json.RawMessage(`{"rpm":12,"sweepDeg":360}`),
				Picture:              json.RawMessage(`{"frame":"base64..."}`),
			},
			{
				SensorIdentification: SensorIdentification{SensorName: "antenna-2", SensorType: "Radar"},
				Detail:               json.RawMessage(`{"rpm":24}`),
			},
		},
		SubReports: []DeviceStatusReport{
			{
				DeviceIdentification: DeviceIdentification{DeviceName: "acoustic-array"},
				Sensors: []SensorStatusReport{
					{
						SensorIdentification: SensorIdentification{SensorName: "mic-1"},
						Picture:              json.RawMessage(`{"spectrogram":"..."}`),
					},
				},
			},
		},
	}
}

func TestRedactedDropsBulkyFields(t *testing.T) {
	full := sampleStatus()
	empty := full.Redacted()

	require.Len(t, empty.Sensors, 2)
	for _, s := range empty.Sensors {
		assert.Nil(t, s.Detail)
		assert.Nil(t, s.Picture)
	}
	require.Len(t, empty.SubReports, 1)
	assert.Nil(t, empty.SubReports[0].Sensors[0].Picture)

	// Identity and states survive redaction
	assert.Equal(t, "perimeter-radar", empty.DeviceIdentification.DeviceName)
	assert.Equal(t, BITOK, empty.Sensors[0].CommunicationState)
}

func TestRedactedDoesNotMutateOriginal(t *testing.T) {
	full := sampleStatus()
	_ = full.Redacted()

	assert.NotNil(t, full.Sensors[0].Detail)
	assert.NotNil(t, full.Sensors[0].Picture)
	assert.NotNil(t, full.SubReports[0].Sensors[0].Picture)
}

func TestSetStatus(t *testing.T) {
	status := sampleStatus()
	status.SetStatus(false)

	for _, s := range status.Sensors {
		assert.Equal(t, BITFault, s.CommunicationState)
		assert.Equal(t, FlagNo, s.PowerState)
		assert.Equal(t, BITFault, s.TechnicalState)
	}
	assert.Equal(t, BITFault, status.SubReports[0].Sensors[0].TechnicalState)

	status.SetStatus(true)
	assert.Equal(t, BITOK, status.Sensors[1].CommunicationState)
	assert.Equal(t, FlagYes, status.Sensors[1].PowerState)
}

func TestSetLocation(t *testing.T) {
	status := sampleStatus()
	status.SetLocation(32.07, 34.78, 15, ReferenceMSL)

	require.NotNil(t, status.Sensors[0].Location)
	assert.Equal(t, 32.07, status.Sensors[0].Location.Latitude)
	assert.Equal(t, DatumWGS84, status.Sensors[0].Location.Altitude.Datum)
	require.NotNil(t, status.SubReports[0].Sensors[0].Location)

	// Each sensor gets its own copy
	status.Sensors[0].Location.Latitude = 0
	assert.Equal(t, 32.07, status.Sensors[1].Location.Latitude)
}

func TestMessageKinds(t *testing.T) {
	tests := []struct {
		msg  Message
		kind MessageKind
	}{
		{&DeviceConfiguration{}, KindDeviceConfiguration},
		{&DeviceSubscription{}, KindDeviceSubscription},
		{&CommandMessage{}, KindCommandMessage},
		{&DeviceStatusReport{}, KindDeviceStatusReport},
		{&DeviceIndicationReport{}, KindDeviceIndicationReport},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.msg.Kind())
		assert.True(t, tt.kind.Known())
	}
	assert.False(t, MessageKind("PictureStatus").Known())
}

func TestIndicationReportCounts(t *testing.T) {
	report := &DeviceIndicationReport{
		Sensors: []SensorIndicationReport{
			{Detections: []Detection{{TrackID: 1}, {TrackID: 2}}},
		},
		SubReports: []DeviceIndicationReport{
			{Sensors: []SensorIndicationReport{{Detections: []Detection{{TrackID: 3}}}}},
		},
	}
	assert.Equal(t, 3, report.DetectionCount())
	all := report.AllDetections()
	require.Len(t, all, 3)
	assert.Equal(t, 1, all[0].TrackID)
	assert.Equal(t, 3, all[2].TrackID)
}

func TestConfigurationHelpers(t *testing.T) {
	cfg := &DeviceConfiguration{}
	assert.False(t, cfg.IsHub())
	cfg.SubDevices = []DeviceConfiguration{{}}
	assert.True(t, cfg.IsHub())

	cfg.SetLocation(31.5, 34.9, 120, ReferenceAGL)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, ReferenceAGL, cfg.Location.Altitude.Reference)
}
