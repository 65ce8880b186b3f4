package trident

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const j2000 = 2451545.0

// R3R1R3 performs a 3-1-3 Euler parameter rotation.
// From Schaub and Junkins.
func R3R1R3(θ1, θ2, θ3 float64) *mat.Dense {
	sθ1, cθ1 := math.Sincos(θ1)
	sθ2, cθ2 := math.Sincos(θ2)
	sθ3, cθ3 := math.Sincos(θ3)
	return mat.NewDense(3, 3, []float64{cθ3*cθ1 - sθ3*cθ2*sθ1, cθ3*sθ1 + sθ3*cθ2*cθ1, sθ3 * sθ2,
		-sθ3*cθ1 - cθ3*cθ2*sθ1, -sθ3*sθ1 + cθ3*cθ2*cθ1, cθ3 * sθ2,
		sθ2 * sθ1, -sθ2 * cθ1, cθ2})
}

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// PQW2ECI converts a perifocal vector into the inertial frame.
func PQW2ECI(i, ω, Ω float64, v r3.Vec) r3.Vec {
	return MxV33(R3R1R3(-ω, -i, -Ω), v)
}

// GMST returns the Greenwich mean sidereal angle (rad) of the provided UTC
// time, IAU-82 model (Vallado eq. 3-47). UT1 is taken as UTC.
func GMST(t time.Time) float64 {
	tUT1 := (julian.TimeToJD(t.UTC()) - j2000) / 36525
	θsec := 67310.54841 + (876600*3600+8640184.812866)*tUT1 + 0.093104*tUT1*tUT1 - 6.2e-6*tUT1*tUT1*tUT1
	return normalizeAngle(math.Mod(θsec, 86400) / 86400 * twoPi)
}

// ECI2ECEF converts an inertial state to the body fixed frame, including the
// transport velocity of the rotating frame.
func ECI2ECEF(s CartesianState, body CelestialObject) CartesianState {
	if s.frame == ECEF {
		return s
	}
	Rθ := R3(GMST(s.epoch))
	r := MxV33(Rθ, s.r)
	ω := r3.Vec{Z: body.RotationRate()}
	v := r3.Sub(MxV33(Rθ, s.v), r3.Cross(ω, r))
	return CartesianState{r, v, s.epoch, ECEF}
}

// ECEF2ECI is the exact inverse of ECI2ECEF.
func ECEF2ECI(s CartesianState, body CelestialObject) CartesianState {
	if s.frame == ECI {
		return s
	}
	Rθ := R3(-GMST(s.epoch))
	ω := r3.Vec{Z: body.RotationRate()}
	r := MxV33(Rθ, s.r)
	v := MxV33(Rθ, r3.Add(s.v, r3.Cross(ω, s.r)))
	return CartesianState{r, v, s.epoch, ECI}
}

// ECI2ECEFPosition rotates an inertial position into the body fixed frame.
func ECI2ECEFPosition(r r3.Vec, epoch time.Time) r3.Vec {
	return MxV33(R3(GMST(epoch)), r)
}
