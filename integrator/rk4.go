package integrator

import (
	"math"

	"github.com/pkg/errors"
)

// ErrStopped is returned when the Integrable requested a stop before the end bound.
var ErrStopped = errors.New("integration stopped before the end bound")

// RK4 defines a fixed step fourth order Runge Kutta integrator from X0 to XEnd.
// The last step is shortened so that the integration lands exactly on XEnd.
type RK4 struct {
	X0, XEnd   float64
	StepSize   float64 // Always positive, the direction comes from XEnd - X0.
	Integrable Integrable
}

// NewRK4 returns a new RK4 integrator instance.
func NewRK4(x0, xEnd, stepSize float64, inte Integrable) (*RK4, error) {
	if !(stepSize > 0) || math.IsInf(stepSize, 0) {
		return nil, errors.New("step size must be positive")
	}
	if inte == nil {
		return nil, errors.New("integrable may not be nil")
	}
	if math.IsNaN(x0) || math.IsNaN(xEnd) {
		return nil, errors.New("integration bounds must be numbers")
	}
	return &RK4{X0: x0, XEnd: xEnd, StepSize: stepSize, Integrable: inte}, nil
}

// Solve solves the configured RK4.
// Returns the number of iterations performed and the last X_i, or ErrStopped
// if the Integrable stopped the integration early.
func (r *RK4) Solve() (uint64, float64, error) {
	const (
		half     = 1 / 2.0
		oneSixth = 1 / 6.0
		oneThird = 1 / 3.0
	)
	span := r.XEnd - r.X0
	direction := 1.0
	if span < 0 {
		direction = -1
	}
	// Steps are counted from X0 so that no rounding accumulates in xi.
	steps := uint64(math.Ceil(math.Abs(span)/r.StepSize - 1e-9))

	iterNum := uint64(0)
	xi := r.X0
	for iterNum < steps {
		if r.Integrable.Stop(iterNum) {
			return iterNum, xi, ErrStopped
		}
		xNext := r.X0 + direction*r.StepSize*float64(iterNum+1)
		if iterNum+1 == steps {
			xNext = r.XEnd
		}
		h := xNext - xi
		state := r.Integrable.GetState()
		newState := make([]float64, len(state))
		k1 := make([]float64, len(state))
		k2 := make([]float64, len(state))
		k3 := make([]float64, len(state))
		k4 := make([]float64, len(state))
		tState := make([]float64, len(state))

		for i, y := range r.Integrable.Func(xi, state) {
			k1[i] = y * h
			tState[i] = state[i] + k1[i]*half
		}
		for i, y := range r.Integrable.Func(xi+h*half, tState) {
			k2[i] = y * h
			tState[i] = state[i] + k2[i]*half
		}
		for i, y := range r.Integrable.Func(xi+h*half, tState) {
			k3[i] = y * h
			tState[i] = state[i] + k3[i]
		}
		for i, y := range r.Integrable.Func(xNext, tState) {
			k4[i] = y * h
			newState[i] = state[i] + oneSixth*(k1[i]+k4[i]) + oneThird*(k2[i]+k3[i])
		}
		r.Integrable.SetState(iterNum, newState)

		xi = xNext
		iterNum++
	}
	if r.Integrable.Stop(iterNum) {
		return iterNum, xi, ErrStopped
	}
	return iterNum, xi, nil
}
