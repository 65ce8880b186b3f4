package trident

import (
	"fmt"
	"math"
)

const (
	keplerTolerance = 1e-12 // rad
	keplerMaxIter   = 50
)

// keplerSolver solves Kepler's equation M = E - e sin E via Newton-Raphson.
type keplerSolver struct {
	tolerance float64
	maxIter   int
}

var defaultKepler = keplerSolver{keplerTolerance, keplerMaxIter}

// EccentricAnomaly returns the eccentric anomaly for the provided mean anomaly.
// It fails if the iteration cap is reached before the update drops under the tolerance.
func EccentricAnomaly(M, e float64) (float64, error) {
	return defaultKepler.solve(M, e)
}

func (k keplerSolver) solve(M, e float64) (float64, error) {
	if e < 0 || e >= 1 {
		return math.NaN(), fmt.Errorf("eccentricity %f outside [0, 1)", e)
	}
	M = normalizeAngle(M)
	if e == 0 {
		return M, nil
	}
	E := M
	if e > 0.8 {
		E = math.Pi
	}
	for iter := 0; iter < k.maxIter; iter++ {
		sinE, cosE := math.Sincos(E)
		δ := (E - e*sinE - M) / (1 - e*cosE)
		E -= δ
		if math.Abs(δ) < k.tolerance {
			return normalizeAngle(E), nil
		}
	}
	return math.NaN(), fmt.Errorf("kepler did not converge after %d iterations (M=%f e=%f)", k.maxIter, M, e)
}

// TrueFromEccentric converts an eccentric anomaly to a true anomaly.
func TrueFromEccentric(E, e float64) float64 {
	sinE, cosE := math.Sincos(E)
	return normalizeAngle(math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e))
}

// EccentricFromTrue converts a true anomaly to an eccentric anomaly.
func EccentricFromTrue(ν, e float64) float64 {
	sinν, cosν := math.Sincos(ν)
	return normalizeAngle(math.Atan2(math.Sqrt(1-e*e)*sinν, e+cosν))
}

// MeanFromEccentric converts an eccentric anomaly to a mean anomaly.
func MeanFromEccentric(E, e float64) float64 {
	return normalizeAngle(E - e*math.Sin(E))
}
