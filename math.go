package trident

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	deg2rad = math.Pi / 180
	twoPi   = 2 * math.Pi
)

// norm returns the norm of a given vector.
func norm(v r3.Vec) float64 {
	return r3.Norm(v)
}

// distance returns |a - b|.
func distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// MxV33 multiplies a 3x3 matrix with a vector. Note that there is no dimension check!
func MxV33(m mat.Matrix, v r3.Vec) r3.Vec {
	var rVec mat.VecDense
	rVec.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vec{X: rVec.AtVec(0), Y: rVec.AtVec(1), Z: rVec.AtVec(2)}
}

// normalizeAngle wraps an angle to [0, 2π).
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}

// wrapPi wraps an angle to (-π, π].
func wrapPi(a float64) float64 {
	a = normalizeAngle(a)
	if a > math.Pi {
		a -= twoPi
	}
	return a
}

// Deg2rad converts degrees to radians, and enforced only positive numbers.
func Deg2rad(a float64) float64 {
	return normalizeAngle(a * deg2rad)
}

// Rad2deg converts radians to degrees, and enforced only positive numbers.
func Rad2deg(a float64) float64 {
	return normalizeAngle(a) / deg2rad
}

// anglesEqual returns whether two angles are equal modulo 2π within the tolerance.
func anglesEqual(a, b, tol float64) bool {
	return math.Abs(wrapPi(a-b)) <= tol
}

// finite returns whether all components are finite numbers.
func finite(v r3.Vec) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
