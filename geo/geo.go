// Package geo provides angle unit conversion and bearing computation for
// the sensor adapter. The reporting protocol expresses azimuths in angular
// mils (6400 per circle); all other geometry is in WGS84 decimal degrees.
package geo

import "math"

// Conversion constants
const (
	// MilsPerCircle is the NATO angular mil count for a full circle
	MilsPerCircle = 6400.0

	// DegreesPerCircle is the degree count for a full circle
	DegreesPerCircle = 360.0
)

// DegreesToRadians converts decimal degrees to radians
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// RadiansToDegrees converts radians to degrees normalized to [0, 360)
func RadiansToDegrees(rad float64) float64 {
	return math.Mod(rad/math.Pi*180.0+360.0, 360.0)
}

// DegreesToMils converts degrees to angular mils
func DegreesToMils(deg float64) float64 {
	return deg * (MilsPerCircle / DegreesPerCircle)
}

// MilsToDegrees converts angular mils to degrees
func MilsToDegrees(mils float64) float64 {
	return mils * (DegreesPerCircle / MilsPerCircle)
}

// RadiansToMils converts radians to angular mils
func RadiansToMils(rad float64) float64 {
	return rad * (MilsPerCircle / (2 * math.Pi))
}

// Point is a geodetic position in WGS84 decimal degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// InitialBearing returns the great-circle initial bearing in radians from
// one geodetic point toward another. The result is the forward azimuth at
// the starting point and may be negative; callers normalize via
// RadiansToDegrees or BearingMils.
func InitialBearing(from, to Point) float64 {
	p1 := DegreesToRadians(from.Latitude)
	p2 := DegreesToRadians(to.Latitude)
	dl := DegreesToRadians(to.Longitude - from.Longitude)

	y := math.Sin(dl) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dl)
	return math.Atan2(y, x)
}

// BearingMils returns the initial bearing from one point toward another in
// angular mils, normalized to [0, MilsPerCircle).
func BearingMils(from, to Point) float64 {
	return DegreesToMils(RadiansToDegrees(InitialBearing(from, to)))
}
