package trident

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestPlannedManeuverFrames(t *testing.T) {
	s, err := ElementsToState(referenceElements(t), EarthWGS84())
	if err != nil {
		t.Fatal(err)
	}
	// Along-track on a circular orbit is along the velocity.
	along := PlannedManeuver{Δv: r3.Vec{Y: 2}, Frame: LVLH}
	Δv, err := along.inertialΔv(s)
	if err != nil {
		t.Fatal(err)
	}
	exp := r3.Scale(2/s.VNorm(), s.V())
	if d := norm(r3.Sub(Δv, exp)); d > 1e-9 {
		t.Fatalf("along-track Δv=%v expected %v", Δv, exp)
	}
	radial := PlannedManeuver{Δv: r3.Vec{X: 1}, Frame: LVLH}
	if Δv, _ = radial.inertialΔv(s); !scalar.EqualWithinAbs(r3.Dot(Δv, s.R())/s.RNorm(), 1, 1e-12) {
		t.Fatalf("radial Δv=%v", Δv)
	}
	inertial := PlannedManeuver{Δv: r3.Vec{Z: 3}}
	if Δv, _ = inertial.inertialΔv(s); Δv != (r3.Vec{Z: 3}) {
		t.Fatalf("ECI Δv=%v", Δv)
	}
	if _, err = (PlannedManeuver{Frame: ECEF}).inertialΔv(s); KindOf(err) != FailureConfiguration {
		t.Fatalf("ECEF Δv should be rejected, got %v", err)
	}
}
