package trident

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestLVLHAxes(t *testing.T) {
	earth := EarthWGS84()
	o, _ := NewOrbitalElements(6898137, 0, 97.7*deg2rad, 0.4, 0, 1.3, testEpoch)
	chief, _ := ElementsToState(o, earth)
	f, err := NewLVLHFrame(chief)
	if err != nil {
		t.Fatal(err)
	}
	// The chief is at the origin of its own frame.
	rel := f.ToLVLH(chief)
	if norm(rel.R()) > 1e-9 || norm(rel.V()) > 1e-12 {
		t.Fatalf("chief not at the origin: %s", rel)
	}
	// A radial offset points along x.
	up := NewCartesianState(r3.Add(chief.R(), r3.Scale(100/chief.RNorm(), chief.R())), chief.V(), testEpoch, ECI)
	if ρ := f.ToLVLH(up).R(); !scalar.EqualWithinAbs(ρ.X, 100, 1e-6) || math.Abs(ρ.Y) > 1e-6 || math.Abs(ρ.Z) > 1e-6 {
		t.Fatalf("radial offset is %+v", ρ)
	}
	// On a circular orbit y is along the velocity.
	if ρ := f.ToLVLH(NewCartesianState(r3.Add(chief.R(), r3.Scale(10/chief.VNorm(), chief.V())), chief.V(), testEpoch, ECI)).R(); !scalar.EqualWithinAbs(ρ.Y, 10, 1e-6) {
		t.Fatalf("along-track offset is %+v", ρ)
	}
}

func TestLVLHInverse(t *testing.T) {
	earth := EarthWGS84()
	o, _ := NewOrbitalElements(7000e3, 0.01, 51.6*deg2rad, 2, 1, 0.5, testEpoch)
	chief, _ := ElementsToState(o, earth)
	deputy := NewCartesianState(r3.Add(chief.R(), r3.Vec{X: 1200, Y: -3400, Z: 560}), r3.Add(chief.V(), r3.Vec{X: 0.3, Y: -1.2, Z: 2.5}), testEpoch, ECI)
	rel, err := ECIToLVLH(deputy, chief)
	if err != nil {
		t.Fatal(err)
	}
	if rel.Frame() != LVLH {
		t.Fatalf("expected LVLH, got %s", rel.Frame())
	}
	back, err := LVLHToECI(rel, chief)
	if err != nil {
		t.Fatal(err)
	}
	if d := distance(back.R(), deputy.R()); d > 1e-6 {
		t.Fatalf("position inverse off by %g m", d)
	}
	if d := distance(back.V(), deputy.V()); d > 1e-9 {
		t.Fatalf("velocity inverse off by %g m/s", d)
	}
	if !scalar.EqualWithinAbs(norm(rel.R()), norm(r3.Vec{X: 1200, Y: -3400, Z: 560}), 1e-6) {
		t.Fatal("rotation changed the relative distance")
	}
	if _, err := LVLHToECI(deputy, chief); KindOf(err) != FailureConfiguration {
		t.Fatal("expected a frame mismatch to be rejected")
	}
}
