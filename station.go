package trident

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Station defines a ground station.
type Station struct {
	Name         string
	Location     GeoPoint
	MinElevation float64 // rad
	MaxRange     float64 // m, unlimited if zero
	R, V         r3.Vec  // position and velocity in ECEF
}

// NewStation returns a new station. Angles in degrees, altitude and range in meters.
func NewStation(name string, latΦ, longθ, altitude, minElevation, maxRange float64, body CelestialObject) (Station, error) {
	loc, err := NewGeoPoint(latΦ, longθ, altitude)
	if err != nil {
		return Station{}, err
	}
	if minElevation < -90 || minElevation > 90 {
		return Station{}, configErr("station "+name, "minimum elevation must be within [-90, 90] degrees")
	}
	if maxRange < 0 {
		return Station{}, configErr("station "+name, "maximum range must not be negative")
	}
	R := GeodeticToECEF(loc, body)
	// Inertial velocity expressed in ECEF, used for range rates.
	V := r3.Cross(r3.Vec{Z: body.RotationRate()}, R)
	return Station{name, loc, minElevation * deg2rad, maxRange, R, V}, nil
}

// RangeElAz returns the range (in the SEZ frame), elevation and azimuth (in radians) of a given R vector in ECEF.
func (s Station) RangeElAz(rECEF r3.Vec) (ρECEF r3.Vec, ρ, el, az float64) {
	ρECEF = r3.Sub(rECEF, s.R)
	ρ = norm(ρECEF)
	rSEZ := MxV33(R3(s.Location.Longitude), ρECEF)
	rSEZ = MxV33(R2(math.Pi/2-s.Location.Latitude), rSEZ)
	el = math.Asin(rSEZ.Z / ρ)
	az = normalizeAngle(math.Atan2(rSEZ.Y, -rSEZ.X))
	return
}

// Visible returns whether the provided ECEF position satisfies the elevation and range masks.
func (s Station) Visible(rECEF r3.Vec) bool {
	_, ρ, el, _ := s.RangeElAz(rECEF)
	return s.inMask(ρ, el)
}

func (s Station) inMask(ρ, el float64) bool {
	return el >= s.MinElevation && (s.MaxRange == 0 || ρ <= s.MaxRange)
}

func (s Station) String() string {
	return fmt.Sprintf("%s (%f,%f); alt = %f m; el = %f deg", s.Name, s.Location.Latitude/deg2rad, s.Location.Longitude/deg2rad, s.Location.Altitude, s.MinElevation/deg2rad)
}

// VisibilityPoint is one station observation of the formation centroid.
type VisibilityPoint struct {
	Time      time.Time
	Range     float64 // m
	Elevation float64 // rad
	Azimuth   float64 // rad
	Visible   bool
}

// Visibility returns the time series of the formation centroid as seen from the station.
func (s Station) Visibility(samples []GeometrySample) []VisibilityPoint {
	series := make([]VisibilityPoint, len(samples))
	for i, sample := range samples {
		rECEF := ECI2ECEFPosition(sample.Triangle.Centroid, sample.Time)
		_, ρ, el, az := s.RangeElAz(rECEF)
		series[i] = VisibilityPoint{
			Time:      sample.Time,
			Range:     ρ,
			Elevation: el,
			Azimuth:   az,
			Visible:   s.inMask(ρ, el),
		}
	}
	return series
}
