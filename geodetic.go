package trident

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	geodeticε       = 1e-12 // rad
	geodeticMaxIter = 20
)

// GeoPoint is a geodetic position on the reference ellipsoid.
// Latitude and longitude are in radians, the altitude in meters.
type GeoPoint struct {
	Latitude, Longitude, Altitude float64
}

// NewGeoPoint returns a geodetic point from degrees and meters.
func NewGeoPoint(latDeg, lonDeg, altitude float64) (GeoPoint, error) {
	if math.Abs(latDeg) > 90 || math.IsNaN(latDeg) {
		return GeoPoint{}, configErr("latitude", "must be within [-90, 90] degrees, got %f", latDeg)
	}
	if math.IsNaN(lonDeg) || math.IsInf(lonDeg, 0) {
		return GeoPoint{}, configErr("longitude", "must be finite")
	}
	return GeoPoint{latDeg * deg2rad, wrapPi(lonDeg * deg2rad), altitude}, nil
}

func (g GeoPoint) String() string {
	return fmt.Sprintf("(%.6f°, %.6f°) alt=%.1f m", g.Latitude/deg2rad, g.Longitude/deg2rad, g.Altitude)
}

// GeodeticToECEF converts a geodetic point to its body fixed position vector.
func GeodeticToECEF(g GeoPoint, body CelestialObject) r3.Vec {
	f := body.Flattening()
	e2 := f * (2 - f)
	sLat, cLat := math.Sincos(g.Latitude)
	sLon, cLon := math.Sincos(g.Longitude)
	N := body.Radius() / math.Sqrt(1-e2*sLat*sLat)
	return r3.Vec{
		X: (N + g.Altitude) * cLat * cLon,
		Y: (N + g.Altitude) * cLat * sLon,
		Z: (N*(1-e2) + g.Altitude) * sLat,
	}
}

// ECEFToGeodetic converts a body fixed position vector to geodetic coordinates by
// fixed point iteration on the latitude.
func ECEFToGeodetic(r r3.Vec, body CelestialObject) GeoPoint {
	f := body.Flattening()
	e2 := f * (2 - f)
	a := body.Radius()
	p := math.Hypot(r.X, r.Y)
	lon := math.Atan2(r.Y, r.X)
	lat := math.Atan2(r.Z, p*(1-e2))
	var N float64
	for iter := 0; iter < geodeticMaxIter; iter++ {
		sLat := math.Sin(lat)
		N = a / math.Sqrt(1-e2*sLat*sLat)
		prev := lat
		lat = math.Atan2(r.Z+N*e2*sLat, p)
		if math.Abs(lat-prev) < geodeticε {
			break
		}
	}
	sLat, cLat := math.Sincos(lat)
	N = a / math.Sqrt(1-e2*sLat*sLat)
	// Valid at all latitudes, including the poles.
	h := p*cLat + r.Z*sLat - a*a/N
	return GeoPoint{lat, lon, h}
}

// SubSatellitePoint returns the geodetic point below the provided inertial position.
func SubSatellitePoint(r r3.Vec, epoch time.Time, body CelestialObject) GeoPoint {
	return ECEFToGeodetic(ECI2ECEFPosition(r, epoch), body)
}

// GroundDistance returns the great circle distance (haversine on the mean
// radius) between two geodetic points. Altitudes are ignored.
func GroundDistance(p1, p2 GeoPoint, body CelestialObject) float64 {
	sΔlat := math.Sin((p2.Latitude - p1.Latitude) / 2)
	sΔlon := math.Sin((p2.Longitude - p1.Longitude) / 2)
	h := sΔlat*sΔlat + math.Cos(p1.Latitude)*math.Cos(p2.Latitude)*sΔlon*sΔlon
	return 2 * body.MeanRadius() * math.Asin(math.Min(1, math.Sqrt(h)))
}
