package trident

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestComputeTriangle(t *testing.T) {
	tri := ComputeTriangle(r3.Vec{}, r3.Vec{X: 3}, r3.Vec{Y: 4})
	if tri.Sides != [3]float64{3, 5, 4} {
		t.Fatalf("sides=%v", tri.Sides)
	}
	if !scalar.EqualWithinAbs(tri.AspectRatio, 5/3., 1e-12) || !scalar.EqualWithinAbs(tri.Area, 6, 1e-12) || !scalar.EqualWithinAbs(tri.MeanSide, 4, 1e-12) {
		t.Fatalf("triangle=%+v", tri)
	}
	if !scalar.EqualWithinAbs(tri.Centroid.X, 1, 1e-12) || !scalar.EqualWithinAbs(tri.Centroid.Y, 4/3., 1e-12) {
		t.Fatalf("centroid=%+v", tri.Centroid)
	}
	if degenerate := ComputeTriangle(r3.Vec{}, r3.Vec{}, r3.Vec{X: 1}); !math.IsInf(degenerate.AspectRatio, 1) {
		t.Fatalf("coincident vertices should give an infinite aspect ratio, got %f", degenerate.AspectRatio)
	}
}

// synthetic returns one sample per second with the provided centroid ground
// distances (km) and a perfect triangle.
func synthetic(groundKm ...float64) []GeometrySample {
	samples := make([]GeometrySample, len(groundKm))
	for i, g := range groundKm {
		samples[i] = GeometrySample{
			Time:                   testEpoch.Add(time.Duration(i) * time.Second),
			Triangle:               Triangle{Sides: [3]float64{6000, 6000, 6000}, AspectRatio: 1, MeanSide: 6000},
			CentroidGroundDistance: g * 1e3,
		}
	}
	return ApplyCriteria(samples, Criteria{AspectRatioMax: 1.02, GroundTolerance: 350e3})
}

func TestAccessWindow(t *testing.T) {
	// Two runs of three samples: the earliest wins.
	w := DetectAccessWindow(synthetic(400, 100, 200, 300, 500, 10, 20, 30, 400))
	if !w.Found() || w.Duration() != 2*time.Second {
		t.Fatalf("window=%s", w)
	}
	if first, last := w.Indexes(); first != 1 || last != 3 {
		t.Fatalf("indexes=%d,%d", first, last)
	}
	if !w.Start().Equal(testEpoch.Add(time.Second)) || len(w.Samples()) != 3 {
		t.Fatalf("window=%s with %d samples", w, len(w.Samples()))
	}
	// A strictly longer run replaces it.
	w = DetectAccessWindow(synthetic(100, 200, 400, 10, 20, 30, 40))
	if first, _ := w.Indexes(); first != 3 || w.Duration() != 3*time.Second {
		t.Fatalf("window=%s", w)
	}
	// A single compliant sample is a window of no duration.
	w = DetectAccessWindow(synthetic(400, 100, 400))
	if !w.Found() || w.Duration() != 0 {
		t.Fatalf("window=%s", w)
	}
	w = DetectAccessWindow(synthetic(400, 500))
	if w.Found() || w.Duration() != 0 || !w.Start().IsZero() {
		t.Fatalf("window=%s", w)
	}
	if first, last := w.Indexes(); first != -1 || last != -1 {
		t.Fatal("no window should have no indexes")
	}
	// Geometry failures break the run as well.
	samples := synthetic(10, 20, 30, 40)
	samples[2].Triangle.AspectRatio = 1.5
	if w = DetectAccessWindow(ApplyCriteria(samples, Criteria{1.02, 350e3})); w.Duration() != time.Second {
		t.Fatalf("window=%s", w)
	}
}

func TestAccessWindowMonotonicity(t *testing.T) {
	ground := []float64{900, 700, 500, 340, 250, 120, 40, 60, 180, 260, 330, 345, 420, 600}
	samples := synthetic(ground...)
	loose := Criteria{AspectRatioMax: 1.02, GroundTolerance: 350e3}
	prev := DetectAccessWindow(samples).Duration()
	for _, tol := range []float64{300e3, 200e3, 100e3, 50e3, 10e3} {
		c := Criteria{AspectRatioMax: 1.02, GroundTolerance: tol}
		if !c.Tighter(loose) {
			t.Fatal("criteria should be tighter")
		}
		d := DetectAccessWindow(ApplyCriteria(samples, c)).Duration()
		if d > prev {
			t.Fatalf("tolerance %f km: window grew from %s to %s", tol/1e3, prev, d)
		}
		prev = d
	}
	if prev != 0 {
		t.Fatalf("nothing is within 10 km, got %s", prev)
	}
}

func TestWindowStatistics(t *testing.T) {
	samples := synthetic(900, 300, 100, 200, 800, 50)
	w := DetectAccessWindow(samples)
	st := ComputeWindowStatistics(samples, w)
	if st.MaxGroundDistanceInWindow != 300e3 || st.MinGroundDistanceInWindow != 100e3 {
		t.Fatalf("in window: %+v", st)
	}
	if st.MaxGroundDistanceFullHorizon != 900e3 || st.MinGroundDistanceFullHorizon != 50e3 {
		t.Fatalf("full horizon: %+v", st)
	}
	if st.MaxAspectRatio != 1 || st.MeanSideLength != 6000 || st.Duration != 2*time.Second {
		t.Fatalf("geometry: %+v", st)
	}
	none := ComputeWindowStatistics(synthetic(900), DetectAccessWindow(synthetic(900)))
	if !math.IsNaN(none.MaxGroundDistanceInWindow) || !math.IsNaN(none.MaxAspectRatio) || none.MaxGroundDistanceFullHorizon != 900e3 {
		t.Fatalf("no window: %+v", none)
	}
}

func TestEvaluateSample(t *testing.T) {
	cfg := DefaultConfiguration()
	prop, err := cfg.NewPropagator()
	if err != nil {
		t.Fatal(err)
	}
	fleet, err := NewTriangleFormation(cfg, prop)
	if err != nil {
		t.Fatal(err)
	}
	var ids [3]string
	var states [3]CartesianState
	for k, sc := range fleet {
		ids[k], states[k] = sc.ID(), sc.Actual()
	}
	s, err := EvaluateSample(cfg.Start, ids, states, states, cfg.Target, cfg.Criteria(), cfg.Body)
	if err != nil {
		t.Fatal(err)
	}
	if s.MaxPositionDeviation() != 0 || !s.GeometryOK {
		t.Fatalf("sample=%s", s)
	}
	for k, sc := range s.Spacecraft {
		exp := GroundDistance(SubSatellitePoint(states[k].R(), cfg.Start, cfg.Body), cfg.Target, cfg.Body)
		if sc.ID != ids[k] || sc.GroundDistance != exp {
			t.Fatalf("spacecraft sample %+v", sc)
		}
	}
	// The default reference is not aligned with the target.
	if s.GroundOK || s.Compliant() {
		t.Fatalf("sample=%s", s)
	}
	if _, err := EvaluateSample(cfg.Start.Add(time.Second), ids, states, states, cfg.Target, cfg.Criteria(), cfg.Body); KindOf(err) != FailureConfiguration {
		t.Fatalf("expected a configuration error for mismatched epochs, got %v", err)
	}
}
