package trident

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/trident-sim/trident/integrator"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// StepSize is the default integration step of the perturbed model.
	StepSize = 10 * time.Second
)

// PropagationModel selects the force model of a propagation.
type PropagationModel uint8

const (
	// TwoBody is analytical Keplerian motion.
	TwoBody PropagationModel = iota + 1
	// Perturbed integrates point mass gravity, J2 and drag.
	Perturbed
)

func (m PropagationModel) String() string {
	switch m {
	case TwoBody:
		return "two-body"
	case Perturbed:
		return "perturbed"
	}
	return fmt.Sprintf("PropagationModel(%d)", uint8(m))
}

// ParsePropagationModel returns the model named by s.
func ParsePropagationModel(s string) (PropagationModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "twobody", "two-body", "kepler", "keplerian":
		return TwoBody, nil
	case "perturbed", "j2drag", "j2-drag":
		return Perturbed, nil
	}
	return 0, configErr("model", "unknown propagation model `%s`", s)
}

// PropagatorOptions tunes a Propagator.
type PropagatorOptions struct {
	Step         time.Duration // Integration step of the perturbed model, StepSize if zero.
	DensityScale float64       // Atmospheric density multiplier, 1 if zero.
	Atmosphere   Atmosphere    // Density model, exponential if nil.
}

// Propagator advances states with one explicit force model. A simulation run
// uses a single Propagator for every trajectory it compares.
type Propagator struct {
	model PropagationModel
	body  CelestialObject
	step  time.Duration
	perts Perturbations
}

// NewPropagator returns a new propagator for the provided model.
func NewPropagator(model PropagationModel, body CelestialObject, opts PropagatorOptions) (Propagator, error) {
	if model != TwoBody && model != Perturbed {
		return Propagator{}, configErr("model", "unsupported propagation model %s", model)
	}
	if body.IsZero() {
		return Propagator{}, configErr("body", "central body not set")
	}
	step := opts.Step
	if step == 0 {
		step = StepSize
	}
	if step < 0 {
		return Propagator{}, configErr("step", "must be positive, got %s", step)
	}
	scale := opts.DensityScale
	if scale == 0 {
		scale = 1
	}
	if scale < 0 || math.IsNaN(scale) {
		return Propagator{}, configErr("density scale", "must be positive, got %f", scale)
	}
	var perts Perturbations
	if model == Perturbed {
		perts = Perturbations{J2: true, Drag: true, Atmosphere: opts.Atmosphere, DensityScale: scale}
	}
	return Propagator{model, body, step, perts}, nil
}

// Model returns the force model of this propagator.
func (p Propagator) Model() PropagationModel { return p.model }

// Body returns the central body.
func (p Propagator) Body() CelestialObject { return p.body }

// Step returns the integration step.
func (p Propagator) Step() time.Duration { return p.step }

// DensityScale returns the atmospheric density multiplier.
func (p Propagator) DensityScale() float64 {
	if p.perts.DensityScale == 0 {
		return 1
	}
	return p.perts.DensityScale
}

// WithDensityScale returns a copy of this propagator with another density multiplier.
func (p Propagator) WithDensityScale(scale float64) Propagator {
	if p.model == Perturbed {
		p.perts.DensityScale = scale
	}
	return p
}

// PropagateElements returns the inertial state at `to` of a spacecraft starting from the provided elements.
func (p Propagator) PropagateElements(o OrbitalElements, drag DragProperties, to time.Time) (CartesianState, error) {
	if p.model == TwoBody {
		Δt := to.Sub(o.epoch).Seconds()
		s, err := ElementsToState(o.WithMeanAnomaly(o.M+o.MeanMotion(p.body)*Δt).WithEpoch(to), p.body)
		if err != nil {
			return CartesianState{}, err
		}
		return s, p.check(s)
	}
	s, err := ElementsToState(o, p.body)
	if err != nil {
		return CartesianState{}, err
	}
	return p.Propagate(s, drag, to)
}

// Propagate returns the inertial state at `to` of the provided state.
func (p Propagator) Propagate(s CartesianState, drag DragProperties, to time.Time) (CartesianState, error) {
	if s.frame != ECI {
		return CartesianState{}, configErr("state", "propagation requires an ECI state, got %s", s.frame)
	}
	if err := p.check(s); err != nil {
		return CartesianState{}, err
	}
	if to.Equal(s.epoch) {
		return s, nil
	}
	if p.model == TwoBody {
		o, err := StateToElements(s, p.body)
		if err != nil {
			return CartesianState{}, err
		}
		return p.PropagateElements(o, drag, to)
	}
	arc := &cartesianArc{
		state: []float64{s.r.X, s.r.Y, s.r.Z, s.v.X, s.v.Y, s.v.Z},
		start: s.epoch,
		body:  p.body,
		perts: p.perts,
		drag:  drag,
	}
	rk, err := integrator.NewRK4(0, to.Sub(s.epoch).Seconds(), p.step.Seconds(), arc)
	if err != nil {
		return CartesianState{}, errors.Wrap(err, "propagator setup")
	}
	if _, _, err := rk.Solve(); err != nil {
		if arc.err != nil {
			return CartesianState{}, arc.err
		}
		return CartesianState{}, &PropagationError{Epoch: s.epoch, Reason: err.Error()}
	}
	out := CartesianState{
		r3.Vec{X: arc.state[0], Y: arc.state[1], Z: arc.state[2]},
		r3.Vec{X: arc.state[3], Y: arc.state[4], Z: arc.state[5]},
		to.UTC(), ECI,
	}
	return out, p.check(out)
}

// check returns a PropagationError if the state is not physical.
func (p Propagator) check(s CartesianState) error {
	if !finite(s.r) || !finite(s.v) {
		return &PropagationError{Epoch: s.epoch, Reason: "non finite state vector"}
	}
	if r := norm(s.r); r < p.body.Radius() {
		return &PropagationError{Epoch: s.epoch, Reason: fmt.Sprintf("collided with %s (r=%.1f m)", p.body.Name(), r)}
	}
	return nil
}

// cartesianArc is the Integrable of a perturbed propagation. It stops as soon
// as the state becomes non physical.
type cartesianArc struct {
	state []float64
	start time.Time
	body  CelestialObject
	perts Perturbations
	drag  DragProperties
	err   error
}

func (a *cartesianArc) GetState() []float64 {
	return a.state
}

func (a *cartesianArc) SetState(i uint64, s []float64) {
	a.state = s
	R := r3.Vec{X: s[0], Y: s[1], Z: s[2]}
	V := r3.Vec{X: s[3], Y: s[4], Z: s[5]}
	if !finite(R) || !finite(V) {
		a.err = &PropagationError{Epoch: a.start, Reason: fmt.Sprintf("non finite state after %d steps", i+1)}
	} else if r := norm(R); r < a.body.Radius() {
		a.err = &PropagationError{Epoch: a.start, Reason: fmt.Sprintf("collided with %s after %d steps (r=%.1f m)", a.body.Name(), i+1, r)}
	}
}

func (a *cartesianArc) Stop(i uint64) bool {
	return a.err != nil
}

func (a *cartesianArc) Func(t float64, f []float64) []float64 {
	fDot := make([]float64, 6)
	R := r3.Vec{X: f[0], Y: f[1], Z: f[2]}
	V := r3.Vec{X: f[3], Y: f[4], Z: f[5]}
	r := norm(R)
	bodyAcc := -a.body.GM() / (r * r * r)
	pert := a.perts.Perturb(R, V, a.drag, a.body)
	// d\vec{R}/dt
	fDot[0] = f[3]
	fDot[1] = f[4]
	fDot[2] = f[5]
	// d\vec{V}/dt
	fDot[3] = bodyAcc*f[0] + pert.X
	fDot[4] = bodyAcc*f[1] + pert.Y
	fDot[5] = bodyAcc*f[2] + pert.Z
	return fDot
}
