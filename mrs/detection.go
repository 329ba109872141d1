package mrs

import "time"

// AltitudeReference anchors an altitude value.
type AltitudeReference string

// Altitude references
const (
	// ReferenceAGL measures altitude above ground level
	ReferenceAGL AltitudeReference = "AGL"
	// ReferenceMSL measures altitude above mean sea level
	ReferenceMSL AltitudeReference = "MSL"
)

// DatumWGS84 is the geodetic datum used throughout the protocol.
const DatumWGS84 = "WGS84"

// Altitude is an optional vertical component of a location.
type Altitude struct {
	Value     float64           `json:"value"`
	Reference AltitudeReference `json:"reference,omitempty"`
	Datum     string            `json:"datum,omitempty"`
}

// Location is a geodetic position in WGS84 decimal degrees.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  *Altitude `json:"altitude,omitempty"`
}

// Velocity is an optional motion vector attached to a detection.
type Velocity struct {
	// SpeedMPS is ground speed in meters per second
	SpeedMPS float64 `json:"speedMps"`
	// CourseDeg is course over ground in degrees from true north
	CourseDeg float64 `json:"courseDeg"`
	// VerticalRateMPS is climb/descent rate, positive up
	VerticalRateMPS float64 `json:"verticalRateMps,omitempty"`
}

// Variance is an optional uncertainty ellipse for a detection's position.
type Variance struct {
	// MajorAxisM and MinorAxisM are the ellipse semi-axes in meters
	MajorAxisM float64 `json:"majorAxisM"`
	MinorAxisM float64 `json:"minorAxisM"`
	// OrientationDeg is the major axis orientation from true north
	OrientationDeg float64 `json:"orientationDeg,omitempty"`
}

// DetectionShape classifies the track geometry of a detection. Only aerial
// shapes carry a derived bearing.
type DetectionShape string

// Detection shapes
const (
	ShapeAerial    DetectionShape = "Aerial"
	ShapeGround    DetectionShape = "Ground"
	ShapeUndefined DetectionShape = "Undefined"
)

// Detection is the canonical, sensor-family-agnostic detection record
// produced by the translators. It is immutable by convention once handed to
// the core; enrichment returns modified copies.
type Detection struct {
	TrackID        int            `json:"trackId"`
	Time           time.Time      `json:"time"`
	Shape          DetectionShape `json:"shape,omitempty"`
	Location       Location       `json:"location"`
	Velocity       *Velocity      `json:"velocity,omitempty"`
	Classification string         `json:"classification,omitempty"`
	Variance       *Variance      `json:"variance,omitempty"`

	// SensorHint optionally names the owning sensor or sub-device for
	// report grouping; empty means the adapter's default sensor.
	SensorHint string `json:"sensorHint,omitempty"`

	// BearingMils is the derived azimuth in angular mils. Zero when no
	// prior position exists for the track.
	BearingMils float64 `json:"bearingMils,omitempty"`
}

// Aerial reports whether the detection carries a velocity-capable shape
// and therefore receives a derived bearing.
func (d Detection) Aerial() bool {
	return d.Shape == ShapeAerial
}
