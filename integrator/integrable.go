package integrator

// Integrable is a first order ODE system which owns its state vector.
// The integrator reads the state before each step and hands the new one back
// with the index of the step it completes.
type Integrable interface {
	GetState() []float64
	SetState(i uint64, s []float64)
	// Stop is polled before step i; returning true ends the integration with ErrStopped.
	Stop(i uint64) bool
	// Func returns the derivative at t. It must not modify s.
	Func(t float64, s []float64) []float64
}
