package trident

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	eccentricityε = 1e-11 // below this the orbit is handled as circular
	nodeε         = 1e-11 // relative node vector norm below which the orbit is equatorial
)

// Frame names the reference frame of a Cartesian state.
type Frame uint8

const (
	// ECI is the Earth centered inertial (TEME-like) frame.
	ECI Frame = iota + 1
	// ECEF is the Earth centered Earth fixed frame.
	ECEF
	// LVLH is the local-vertical/local-horizontal frame of a chief.
	LVLH
)

func (f Frame) String() string {
	switch f {
	case ECI:
		return "ECI"
	case ECEF:
		return "ECEF"
	case LVLH:
		return "LVLH"
	}
	return fmt.Sprintf("Frame(%d)", uint8(f))
}

// OrbitalElements defines an orbit via its classical orbital elements.
// It is an immutable value: every update returns a new instance.
type OrbitalElements struct {
	a, e, i, Ω, ω, M float64
	epoch            time.Time
}

// NewOrbitalElements returns a new set of elements. Angles are in radians,
// the semi-major axis in meters.
func NewOrbitalElements(a, e, i, Ω, ω, M float64, epoch time.Time) (OrbitalElements, error) {
	if !(a > 0) || math.IsInf(a, 0) {
		return OrbitalElements{}, configErr("semi-major axis", "must be positive, got %g", a)
	}
	if !(e >= 0 && e < 1) {
		return OrbitalElements{}, configErr("eccentricity", "must be in [0, 1), got %g", e)
	}
	if !(i >= 0 && i <= math.Pi) {
		return OrbitalElements{}, configErr("inclination", "must be in [0, π], got %g", i)
	}
	for _, angle := range []struct {
		name  string
		value float64
	}{{"RAAN", Ω}, {"argument of perigee", ω}, {"mean anomaly", M}} {
		if math.IsNaN(angle.value) || math.IsInf(angle.value, 0) {
			return OrbitalElements{}, configErr(angle.name, "must be finite")
		}
	}
	return OrbitalElements{a, e, i, normalizeAngle(Ω), normalizeAngle(ω), normalizeAngle(M), epoch.UTC()}, nil
}

// A returns the semi-major axis (m).
func (o OrbitalElements) A() float64 { return o.a }

// E returns the eccentricity.
func (o OrbitalElements) E() float64 { return o.e }

// I returns the inclination (rad).
func (o OrbitalElements) I() float64 { return o.i }

// RAAN returns the right ascension of the ascending node (rad).
func (o OrbitalElements) RAAN() float64 { return o.Ω }

// ArgPerigee returns the argument of perigee (rad).
func (o OrbitalElements) ArgPerigee() float64 { return o.ω }

// MeanAnomaly returns the mean anomaly (rad).
func (o OrbitalElements) MeanAnomaly() float64 { return o.M }

// Epoch returns the epoch of the elements.
func (o OrbitalElements) Epoch() time.Time { return o.epoch }

// IsZero returns whether these elements were never initialized.
func (o OrbitalElements) IsZero() bool { return o.a == 0 }

// MeanMotion returns the mean motion in rad/s.
func (o OrbitalElements) MeanMotion(body CelestialObject) float64 {
	return math.Sqrt(body.GM() / (o.a * o.a * o.a))
}

// Period returns the period of this orbit.
func (o OrbitalElements) Period(body CelestialObject) time.Duration {
	seconds := twoPi / o.MeanMotion(body)
	return time.Duration(seconds * float64(time.Second))
}

// SemiParameter returns the semi-latus rectum.
func (o OrbitalElements) SemiParameter() float64 {
	return o.a * (1 - o.e*o.e)
}

// TrueAnomaly returns the true anomaly.
func (o OrbitalElements) TrueAnomaly() (float64, error) {
	E, err := EccentricAnomaly(o.M, o.e)
	if err != nil {
		return math.NaN(), err
	}
	return TrueFromEccentric(E, o.e), nil
}

// WithRAAN returns a copy of these elements with the provided RAAN.
func (o OrbitalElements) WithRAAN(Ω float64) OrbitalElements {
	o.Ω = normalizeAngle(Ω)
	return o
}

// WithMeanAnomaly returns a copy of these elements with the provided mean anomaly.
func (o OrbitalElements) WithMeanAnomaly(M float64) OrbitalElements {
	o.M = normalizeAngle(M)
	return o
}

// WithEpoch returns a copy of these elements at a new epoch, all else unchanged.
func (o OrbitalElements) WithEpoch(epoch time.Time) OrbitalElements {
	o.epoch = epoch.UTC()
	return o
}

// WithSemiMajorAxis returns a copy of these elements with the provided semi-major axis.
func (o OrbitalElements) WithSemiMajorAxis(a float64) (OrbitalElements, error) {
	return NewOrbitalElements(a, o.e, o.i, o.Ω, o.ω, o.M, o.epoch)
}

// String implements the stringer interface (hence the value receiver)
func (o OrbitalElements) String() string {
	return fmt.Sprintf("a=%.3f km e=%.6f i=%.4f Ω=%.4f ω=%.4f M=%.4f @%s", o.a/1e3, o.e, Rad2deg(o.i), Rad2deg(o.Ω), Rad2deg(o.ω), Rad2deg(o.M), o.epoch.Format(time.RFC3339))
}

// Equals returns whether two sets of elements are identical within a relative
// tolerance on a and absolute tolerance (rad) on the angles.
func (o OrbitalElements) Equals(o1 OrbitalElements, tol float64) (bool, error) {
	if !scalar.EqualWithinRel(o.a, o1.a, tol) {
		return false, errors.New("semi major axis invalid")
	}
	if !scalar.EqualWithinAbs(o.e, o1.e, tol) {
		return false, errors.New("eccentricity invalid")
	}
	if !scalar.EqualWithinAbs(o.i, o1.i, tol) {
		return false, errors.New("inclination invalid")
	}
	if !anglesEqual(o.Ω, o1.Ω, tol) {
		return false, errors.New("RAAN invalid")
	}
	if o.e > eccentricityε {
		if !anglesEqual(o.ω, o1.ω, tol) {
			return false, errors.New("argument of perigee invalid")
		}
		if !anglesEqual(o.M, o1.M, tol) {
			return false, errors.New("mean anomaly invalid")
		}
	} else if !anglesEqual(o.ω+o.M, o1.ω+o1.M, tol) {
		return false, errors.New("argument of latitude invalid")
	}
	return true, nil
}

// CartesianState is a position (m) and velocity (m/s) in a named frame at an epoch.
// It is an immutable value; maneuvers and propagation return new states.
type CartesianState struct {
	r, v  r3.Vec
	epoch time.Time
	frame Frame
}

// NewCartesianState returns a new state.
func NewCartesianState(r, v r3.Vec, epoch time.Time, frame Frame) CartesianState {
	return CartesianState{r, v, epoch.UTC(), frame}
}

// R returns the position vector.
func (s CartesianState) R() r3.Vec { return s.r }

// V returns the velocity vector.
func (s CartesianState) V() r3.Vec { return s.v }

// Epoch returns the epoch of this state.
func (s CartesianState) Epoch() time.Time { return s.epoch }

// Frame returns the frame of this state.
func (s CartesianState) Frame() Frame { return s.frame }

// RNorm returns the norm of the radius vector.
func (s CartesianState) RNorm() float64 { return norm(s.r) }

// VNorm returns the norm of the velocity vector.
func (s CartesianState) VNorm() float64 { return norm(s.v) }

// IsZero returns whether this state was never initialized.
func (s CartesianState) IsZero() bool { return s.frame == 0 }

// WithΔv returns a new state with the provided velocity increment.
func (s CartesianState) WithΔv(Δv r3.Vec) CartesianState {
	return CartesianState{s.r, r3.Add(s.v, Δv), s.epoch, s.frame}
}

// WithVelocity returns a new state with the provided velocity.
func (s CartesianState) WithVelocity(v r3.Vec) CartesianState {
	return CartesianState{s.r, v, s.epoch, s.frame}
}

// String implements the stringer interface.
func (s CartesianState) String() string {
	return fmt.Sprintf("%s R=[%.3f %.3f %.3f] V=[%.6f %.6f %.6f] @%s", s.frame, s.r.X, s.r.Y, s.r.Z, s.v.X, s.v.Y, s.v.Z, s.epoch.Format(time.RFC3339Nano))
}

// ElementsToState converts classical elements into an ECI state (Vallado COE2RV).
func ElementsToState(o OrbitalElements, body CelestialObject) (CartesianState, error) {
	E, err := EccentricAnomaly(o.M, o.e)
	if err != nil {
		return CartesianState{}, &PropagationError{Epoch: o.epoch, Reason: err.Error()}
	}
	ν := TrueFromEccentric(E, o.e)
	p := o.SemiParameter()
	sinν, cosν := math.Sincos(ν)
	rNorm := p / (1 + o.e*cosν)
	vFact := math.Sqrt(body.GM() / p)
	rPQW := r3.Vec{X: rNorm * cosν, Y: rNorm * sinν}
	vPQW := r3.Vec{X: -vFact * sinν, Y: vFact * (o.e + cosν)}
	return CartesianState{PQW2ECI(o.i, o.ω, o.Ω, rPQW), PQW2ECI(o.i, o.ω, o.Ω, vPQW), o.epoch, ECI}, nil
}

// StateToElements converts an ECI state into classical elements (Vallado RV2COE).
func StateToElements(s CartesianState, body CelestialObject) (OrbitalElements, error) {
	if s.frame != ECI {
		return OrbitalElements{}, configErr("frame", "elements require an ECI state, got %s", s.frame)
	}
	μ := body.GM()
	R, V := s.r, s.v
	r := norm(R)
	v := norm(V)
	if r == 0 || !finite(R) || !finite(V) {
		return OrbitalElements{}, &PropagationError{Epoch: s.epoch, Reason: "degenerate state vector"}
	}
	hVec := r3.Cross(R, V)
	h := norm(hVec)
	ξ := (v*v)/2 - μ/r
	if ξ >= 0 {
		return OrbitalElements{}, &PropagationError{Epoch: s.epoch, Reason: fmt.Sprintf("non elliptical orbit (ξ=%g)", ξ)}
	}
	a := -μ / (2 * ξ)
	eVec := r3.Scale(1/μ, r3.Sub(r3.Scale(v*v-μ/r, R), r3.Scale(r3.Dot(R, V), V)))
	e := norm(eVec)
	if e >= 1 {
		return OrbitalElements{}, &PropagationError{Epoch: s.epoch, Reason: fmt.Sprintf("non elliptical orbit (e=%g)", e)}
	}
	hHat := r3.Scale(1/h, hVec)
	i := math.Atan2(math.Hypot(hVec.X, hVec.Y), hVec.Z)
	n := r3.Vec{X: -hVec.Y, Y: hVec.X}
	var Ω float64
	var nHat r3.Vec
	if nn := norm(n); nn > nodeε*h {
		nHat = r3.Scale(1/nn, n)
		Ω = math.Atan2(nHat.Y, nHat.X)
	} else {
		// Equatorial: the node line is taken along the x axis.
		nHat = r3.Vec{X: 1}
	}
	mHat := r3.Cross(hHat, nHat)
	var ω, ν float64
	if e > eccentricityε {
		ω = math.Atan2(r3.Dot(eVec, mHat), r3.Dot(eVec, nHat))
		eHat := r3.Scale(1/e, eVec)
		ν = math.Atan2(r3.Dot(R, r3.Cross(hHat, eHat)), r3.Dot(R, eHat))
	} else {
		// Circular: the true anomaly is the argument of latitude.
		e = 0
		ν = math.Atan2(r3.Dot(R, mHat), r3.Dot(R, nHat))
	}
	M := MeanFromEccentric(EccentricFromTrue(normalizeAngle(ν), e), e)
	return NewOrbitalElements(a, e, i, Ω, ω, M, s.epoch)
}
