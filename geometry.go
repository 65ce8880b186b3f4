package trident

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle holds the instantaneous metrics of the formation triangle.
type Triangle struct {
	Sides       [3]float64 // |r1-r2|, |r2-r3|, |r3-r1|
	AspectRatio float64    // Longest over shortest side.
	Area        float64
	MeanSide    float64
	Centroid    r3.Vec
}

// ComputeTriangle returns the triangle metrics of three positions.
func ComputeTriangle(r1, r2, r3v r3.Vec) Triangle {
	sides := [3]float64{distance(r1, r2), distance(r2, r3v), distance(r3v, r1)}
	minSide := floats.Min(sides[:])
	aspect := math.Inf(1)
	if minSide > 0 {
		aspect = floats.Max(sides[:]) / minSide
	}
	return Triangle{
		Sides:       sides,
		AspectRatio: aspect,
		Area:        0.5 * norm(r3.Cross(r3.Sub(r2, r1), r3.Sub(r3v, r1))),
		MeanSide:    floats.Sum(sides[:]) / 3,
		Centroid:    r3.Scale(1/3., r3.Add(r3.Add(r1, r2), r3v)),
	}
}

// Criteria are the compliance thresholds of a sample.
type Criteria struct {
	AspectRatioMax  float64
	GroundTolerance float64 // m
}

// Tighter returns whether these criteria are at least as strict as c.
func (cr Criteria) Tighter(c Criteria) bool {
	return cr.AspectRatioMax <= c.AspectRatioMax && cr.GroundTolerance <= c.GroundTolerance
}

// SpacecraftSample is the state of one spacecraft at a sample time.
type SpacecraftSample struct {
	ID                string
	State             CartesianState // Actual, ECI.
	Geodetic          GeoPoint       // Sub-satellite point.
	GroundDistance    float64        // From the sub-satellite point to the target (m).
	PositionDeviation float64        // |r_actual - r_ideal| (m).
	VelocityDeviation float64        // |v_actual - v_ideal| (m/s).
}

// GeometrySample is the formation geometry at one time step.
type GeometrySample struct {
	Time                   time.Time
	Spacecraft             [3]SpacecraftSample
	Triangle               Triangle
	CentroidGeodetic       GeoPoint
	CentroidGroundDistance float64
	GeometryOK             bool
	GroundOK               bool
}

// Compliant returns whether both the geometry and the ground checks pass.
func (g GeometrySample) Compliant() bool {
	return g.GeometryOK && g.GroundOK
}

// WithCriteria returns a copy of this sample with its compliance recomputed.
func (g GeometrySample) WithCriteria(c Criteria) GeometrySample {
	g.GeometryOK = g.Triangle.AspectRatio <= c.AspectRatioMax
	g.GroundOK = g.CentroidGroundDistance <= c.GroundTolerance
	return g
}

// MaxPositionDeviation returns the largest ideal versus actual distance of this sample.
func (g GeometrySample) MaxPositionDeviation() float64 {
	var worst float64
	for _, sc := range g.Spacecraft {
		worst = math.Max(worst, sc.PositionDeviation)
	}
	return worst
}

func (g GeometrySample) String() string {
	return fmt.Sprintf("%s aspect=%.6f side=%.3f m ground=%.3f km ok=%t/%t", g.Time.Format(time.RFC3339), g.Triangle.AspectRatio, g.Triangle.MeanSide, g.CentroidGroundDistance/1e3, g.GeometryOK, g.GroundOK)
}

// EvaluateSample builds the geometry sample of the provided actual states,
// compared to the ideal states of the same spacecraft at the same time.
func EvaluateSample(t time.Time, ids [3]string, actual, ideal [3]CartesianState, target GeoPoint, criteria Criteria, body CelestialObject) (GeometrySample, error) {
	sample := GeometrySample{Time: t.UTC()}
	for k := range actual {
		if actual[k].frame != ECI || ideal[k].frame != ECI {
			return GeometrySample{}, configErr(ids[k], "geometry requires ECI states")
		}
		if !actual[k].epoch.Equal(t) {
			return GeometrySample{}, configErr(ids[k], "state epoch %s differs from sample time %s", actual[k].epoch, t)
		}
		geo := SubSatellitePoint(actual[k].r, t, body)
		sample.Spacecraft[k] = SpacecraftSample{
			ID:                ids[k],
			State:             actual[k],
			Geodetic:          geo,
			GroundDistance:    GroundDistance(geo, target, body),
			PositionDeviation: distance(actual[k].r, ideal[k].r),
			VelocityDeviation: distance(actual[k].v, ideal[k].v),
		}
	}
	sample.Triangle = ComputeTriangle(actual[0].r, actual[1].r, actual[2].r)
	sample.CentroidGeodetic = SubSatellitePoint(sample.Triangle.Centroid, t, body)
	sample.CentroidGroundDistance = GroundDistance(sample.CentroidGeodetic, target, body)
	return sample.WithCriteria(criteria), nil
}
