package trident

import (
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	defaultTargetingIterations = 12
	transferFraction           = 0.75 // of an orbital period
)

// KeepingState is the station keeping state of one spacecraft.
type KeepingState uint8

const (
	// Nominal spacecraft are checked at every interval.
	Nominal KeepingState = iota + 1
	// ManeuverPlanned spacecraft are on a correction transfer and are not checked.
	ManeuverPlanned
	// ManeuverApplied spacecraft completed a correction and return to Nominal at the next check.
	ManeuverApplied
)

func (s KeepingState) String() string {
	switch s {
	case Nominal:
		return "nominal"
	case ManeuverPlanned:
		return "planned"
	case ManeuverApplied:
		return "applied"
	}
	return fmt.Sprintf("KeepingState(%d)", uint8(s))
}

// DeviationCheck is the outcome of one station keeping check.
type DeviationCheck struct {
	Time       time.Time
	Spacecraft string
	Predicted  float64   // |r_actual(t+H) - r_ideal(t+H)| (m)
	At         time.Time // t+H
	Triggered  bool
}

// Burn is an impulsive burn due at a given time.
type Burn struct {
	Time       time.Time
	Spacecraft string
	Δv         r3.Vec // ECI
	Phase      ManeuverPhase
}

type keeper struct {
	state      KeepingState
	acquired   bool
	secondBurn time.Time
	phase      ManeuverPhase
}

// Controller is the station keeping controller of a run. It compares the
// predicted position of each spacecraft with the position of its ideal
// trajectory at the same future epoch, both propagated with the propagator
// of the run, and plans a two impulse correction when they drift apart.
type Controller struct {
	prop      Propagator
	cfg       StationKeepingConfig
	start     time.Time
	step      time.Duration
	transfer  time.Duration
	idealDrag DragProperties
	logger    log.Logger
	keepers   map[string]*keeper
}

// NewController returns a new controller. Checks happen every cfg.Interval
// from start; period is the orbital period used for the default transfer time.
func NewController(prop Propagator, cfg StationKeepingConfig, start time.Time, step, period time.Duration, idealDrag DragProperties, logger log.Logger) (*Controller, error) {
	if step <= 0 {
		return nil, configErr("TimeStep", "must be positive, got %s", step)
	}
	if cfg.Interval < step || cfg.PredictionHorizon <= 0 || !(cfg.Tolerance > 0) || !(cfg.TargetingTolerance > 0) {
		return nil, configErr("StationKeeping", "invalid controller settings %+v", cfg)
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaultTargetingIterations
	}
	transfer := cfg.TransferTime
	if transfer == 0 {
		transfer = time.Duration(transferFraction * float64(period))
	}
	// Both burns happen on the simulation grid.
	transfer = transfer.Round(step)
	if transfer < step {
		transfer = step
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Controller{
		prop:      prop,
		cfg:       cfg,
		start:     start,
		step:      step,
		transfer:  transfer,
		idealDrag: idealDrag,
		logger:    log.With(logger, "subsys", "sk"),
		keepers:   make(map[string]*keeper),
	}, nil
}

// TransferTime returns the duration between the two burns of a correction.
func (c *Controller) TransferTime() time.Duration { return c.transfer }

// State returns the state of the provided spacecraft.
func (c *Controller) State(id string) KeepingState {
	return c.keeper(id).state
}

func (c *Controller) keeper(id string) *keeper {
	k, ok := c.keepers[id]
	if !ok {
		k = &keeper{state: Nominal}
		c.keepers[id] = k
	}
	return k
}

// isCheckTime returns whether t is on the check grid.
func (c *Controller) isCheckTime(t time.Time) bool {
	Δt := t.Sub(c.start)
	return Δt >= 0 && Δt%c.cfg.Interval == 0
}

// Predict returns the distance between the actual and the ideal positions
// propagated to t + PredictionHorizon.
func (c *Controller) Predict(sc Spacecraft, ideal CartesianState) (float64, time.Time, error) {
	at := sc.actual.epoch.Add(c.cfg.PredictionHorizon)
	actual, err := c.prop.Propagate(sc.actual, sc.drag, at)
	if err != nil {
		return math.NaN(), at, withSpacecraft(err, sc.id)
	}
	reference, err := c.prop.Propagate(ideal, c.idealDrag, at)
	if err != nil {
		return math.NaN(), at, withSpacecraft(err, sc.id)
	}
	return distance(actual.r, reference.r), at, nil
}

// Evaluate processes one spacecraft at the grid time t: the deviation check
// first, if one is due, then the burns due at t. The ideal state must be at t.
func (c *Controller) Evaluate(t time.Time, sc Spacecraft, ideal CartesianState) ([]Burn, *DeviationCheck, error) {
	k := c.keeper(sc.id)
	var burns []Burn
	var check *DeviationCheck
	if c.isCheckTime(t) && k.state != ManeuverPlanned {
		if k.state == ManeuverApplied {
			k.state = Nominal
		}
		deviation, at, err := c.Predict(sc, ideal)
		if err != nil {
			return nil, nil, err
		}
		check = &DeviationCheck{Time: t, Spacecraft: sc.id, Predicted: deviation, At: at}
		if deviation <= c.cfg.Tolerance {
			k.acquired = true
		} else {
			check.Triggered = true
			Δv, err := c.target(sc, ideal)
			if err != nil {
				return nil, check, errors.Wrapf(err, "station keeping of %s @%s", sc.id, t.Format(time.RFC3339))
			}
			k.phase = Maintenance
			if !k.acquired {
				k.phase = Acquisition
			}
			k.state = ManeuverPlanned
			k.secondBurn = t.Add(c.transfer)
			burns = append(burns, Burn{t, sc.id, Δv, k.phase})
			level.Info(c.logger).Log("spacecraft", sc.id, "status", "planned", "phase", k.phase, "deviation(m)", deviation, "Δv1(m/s)", norm(Δv), "burn2", k.secondBurn)
		}
	}
	if k.state == ManeuverPlanned && !t.Before(k.secondBurn) {
		// Matching the velocity of the ideal trajectory at the rendezvous.
		Δv := r3.Sub(ideal.v, sc.actual.v)
		burns = append(burns, Burn{t, sc.id, Δv, k.phase})
		k.state = ManeuverApplied
		// Later corrections are maintenance, whatever the next checks find.
		k.acquired = true
		level.Info(c.logger).Log("spacecraft", sc.id, "status", "applied", "miss(m)", distance(ideal.r, sc.actual.r), "Δv2(m/s)", norm(Δv))
	}
	return burns, check, nil
}

// target returns the first burn of a correction so that the spacecraft reaches
// its ideal position after the transfer time. The burn is found by shooting the
// propagator, using the Clohessy-Wiltshire sensitivity to the initial relative
// velocity as a fixed Jacobian.
func (c *Controller) target(sc Spacecraft, ideal CartesianState) (r3.Vec, error) {
	arrival := sc.actual.epoch.Add(c.transfer)
	idealArrival, err := c.prop.Propagate(ideal, c.idealDrag, arrival)
	if err != nil {
		return r3.Vec{}, err
	}
	f0, err := NewLVLHFrame(ideal)
	if err != nil {
		return r3.Vec{}, err
	}
	fT, err := NewLVLHFrame(idealArrival)
	if err != nil {
		return r3.Vec{}, err
	}
	μ := c.prop.body.GM()
	a := 1 / (2/ideal.RNorm() - ideal.VNorm()*ideal.VNorm()/μ)
	n := math.Sqrt(μ / (a * a * a))
	var lu mat.LU
	lu.Factorize(CWVelocitySensitivity(n, c.transfer.Seconds()))

	var Δv r3.Vec
	var miss float64
	for iter := 0; iter < c.cfg.MaxIterations; iter++ {
		s, err := c.prop.Propagate(sc.actual.WithΔv(Δv), sc.drag, arrival)
		if err != nil {
			return r3.Vec{}, err
		}
		δr := r3.Sub(s.r, idealArrival.r)
		miss = norm(δr)
		if miss <= c.cfg.TargetingTolerance {
			level.Debug(c.logger).Log("spacecraft", sc.id, "iterations", iter, "miss(m)", miss)
			return Δv, nil
		}
		δρ := MxV33(fT.dcm, δr)
		var x mat.VecDense
		if err := lu.SolveVecTo(&x, false, mat.NewVecDense(3, []float64{δρ.X, δρ.Y, δρ.Z})); err != nil {
			return r3.Vec{}, errors.Wrapf(ErrNoFeasibleSolution, "singular targeting Jacobian (%s)", err)
		}
		Δv = r3.Sub(Δv, MxV33(f0.dcm.T(), r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}))
	}
	return Δv, errors.Wrapf(ErrNoFeasibleSolution, "targeting missed by %.3f m after %d iterations", miss, c.cfg.MaxIterations)
}

// CWVelocitySensitivity returns ∂ρ(T)/∂ρ̇(0) of the Clohessy-Wiltshire
// equations, x radial, y along-track and z cross-track.
func CWVelocitySensitivity(n, T float64) *mat.Dense {
	s, c := math.Sincos(n * T)
	return mat.NewDense(3, 3, []float64{
		s / n, 2 * (1 - c) / n, 0,
		-2 * (1 - c) / n, (4*s - 3*n*T) / n, 0,
		0, 0, s / n,
	})
}

// withSpacecraft tags the propagation error wrapped in err with the
// spacecraft identifier, keeping the context wrapped around it.
func withSpacecraft(err error, id string) error {
	var propErr *PropagationError
	if errors.As(err, &propErr) && propErr.Spacecraft == "" {
		propErr.Spacecraft = id
	}
	return err
}
