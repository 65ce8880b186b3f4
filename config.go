package trident

import (
	"math"
	"runtime"
	"time"

	"github.com/go-kit/log"
)

// StationKeepingConfig tunes the station keeping controller.
type StationKeepingConfig struct {
	Enabled            bool
	Interval           time.Duration // Time between two deviation checks.
	PredictionHorizon  time.Duration // How far ahead the deviation is predicted.
	Tolerance          float64       // Predicted deviation (m) above which a correction is planned.
	TransferTime       time.Duration // Duration of the two impulse transfer, 3/4 of a period if zero.
	TargetingTolerance float64       // Miss distance (m) the first burn must achieve.
	MaxIterations      int           // Targeting iteration cap.
}

// MonteCarloConfig defines a robustness campaign.
type MonteCarloConfig struct {
	Trials               int
	Seed                 uint64
	PositionSigma        float64 // Injection error, per LVLH axis (m).
	VelocitySigma        float64 // Injection error, per LVLH axis (m/s).
	DragCoefficientSigma float64 // Relative dispersion of the drag coefficient.
	DensitySigma         float64 // Relative dispersion of the atmospheric density.
	Workers              int     // Parallel trials, number of CPUs if zero.
}

// BudgetConfig holds the mission requirements the runs are checked against.
type BudgetConfig struct {
	AnnualDeltaVCap    float64       // Per spacecraft, m/s per year.
	LatencyCeiling     time.Duration // Maximum command latency.
	LatencyRequestStep time.Duration // Spacing of the hypothetical command requests.
}

// FormationConfiguration is the fully resolved input of a simulation run.
type FormationConfiguration struct {
	Body      CelestialObject
	Reference OrbitalElements // Chief orbit; the formation is centred on it.
	Model     PropagationModel
	Step      time.Duration // Integration step of the perturbed model.
	TimeStep  time.Duration // Sampling step of the simulation.
	Start     time.Time
	Horizon   time.Duration

	SideLength        float64 // Desired triangle side (m).
	FormationPhase    float64 // Phase of the first spacecraft on the relative orbit (rad).
	AspectRatioMax    float64
	Target            GeoPoint
	GroundTolerance   float64 // Maximum centroid ground distance to the target (m).
	MinWindowDuration time.Duration

	StationKeeping StationKeepingConfig
	Drag           DragProperties // Nominal properties of each spacecraft.
	DensityScale   float64

	MonteCarlo MonteCarloConfig
	Budgets    BudgetConfig
	Stations   []Station
	Maneuvers  []PlannedManeuver

	Logger log.Logger
}

// DefaultConfiguration returns the reference mission: a 6000 m triangle on a
// sun synchronous 520 km orbit. The reference RAAN and mean anomaly are not
// aligned with the target, see AlignToTarget and SolveRAAN.
func DefaultConfiguration() FormationConfiguration {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	ref, _ := NewOrbitalElements(6898137, 0, 97.7*deg2rad, 0, 0, 0, start)
	target, _ := NewGeoPoint(40.427222, -4.250556, 0)
	return FormationConfiguration{
		Body:              EarthWGS84(),
		Reference:         ref,
		Model:             Perturbed,
		Step:              StepSize,
		TimeStep:          time.Second,
		Start:             start,
		Horizon:           180 * time.Second,
		SideLength:        6000,
		AspectRatioMax:    1.02,
		Target:            target,
		GroundTolerance:   350e3,
		MinWindowDuration: 90 * time.Second,
		StationKeeping: StationKeepingConfig{
			Enabled:            true,
			Interval:           10 * time.Minute,
			PredictionHorizon:  2 * time.Hour,
			Tolerance:          1000,
			TargetingTolerance: 1,
			MaxIterations:      12,
		},
		Drag:         DragProperties{Cd: 2.2, Area: 0.5, Mass: 150},
		DensityScale: 1,
		MonteCarlo: MonteCarloConfig{
			Trials:               100,
			Seed:                 1,
			PositionSigma:        100,
			VelocitySigma:        0.1,
			DragCoefficientSigma: 0.1,
			DensitySigma:         0.2,
		},
		Budgets: BudgetConfig{
			AnnualDeltaVCap:    15,
			LatencyCeiling:     12 * time.Hour,
			LatencyRequestStep: time.Minute,
		},
	}
}

// End returns the end of the simulation horizon.
func (c FormationConfiguration) End() time.Time {
	return c.Start.Add(c.Horizon)
}

// Criteria returns the compliance thresholds of the geometry samples.
func (c FormationConfiguration) Criteria() Criteria {
	return Criteria{AspectRatioMax: c.AspectRatioMax, GroundTolerance: c.GroundTolerance}
}

func (c FormationConfiguration) logger() log.Logger {
	if c.Logger == nil {
		return log.NewNopLogger()
	}
	return c.Logger
}

func (c FormationConfiguration) workers() int {
	if c.MonteCarlo.Workers > 0 {
		return c.MonteCarlo.Workers
	}
	return runtime.NumCPU()
}

// NewPropagator returns the propagator of this configuration.
func (c FormationConfiguration) NewPropagator() (Propagator, error) {
	return NewPropagator(c.Model, c.Body, PropagatorOptions{Step: c.Step, DensityScale: c.DensityScale})
}

// Validate returns a ConfigurationError for the first invalid field.
func (c FormationConfiguration) Validate() error {
	positive := func(field string, v float64) error {
		if !(v > 0) || math.IsInf(v, 0) {
			return configErr(field, "must be positive, got %g", v)
		}
		return nil
	}
	if c.Body.IsZero() {
		return configErr("Body", "central body not set")
	}
	if c.Reference.IsZero() {
		return configErr("Reference", "reference orbit not set")
	}
	if _, err := NewOrbitalElements(c.Reference.a, c.Reference.e, c.Reference.i, c.Reference.Ω, c.Reference.ω, c.Reference.M, c.Reference.epoch); err != nil {
		return err
	}
	if c.Reference.a*(1-c.Reference.e) <= c.Body.Radius() {
		return configErr("Reference", "perigee below the surface of %s", c.Body.Name())
	}
	if c.Model != TwoBody && c.Model != Perturbed {
		return configErr("Model", "unsupported propagation model %s", c.Model)
	}
	if c.Model == Perturbed && c.Step <= 0 {
		return configErr("Step", "must be positive, got %s", c.Step)
	}
	if c.TimeStep <= 0 {
		return configErr("TimeStep", "must be positive, got %s", c.TimeStep)
	}
	if c.Start.IsZero() {
		return configErr("Start", "start epoch not set")
	}
	if c.Horizon < c.TimeStep {
		return configErr("Horizon", "must be at least one time step, got %s", c.Horizon)
	}
	if err := positive("SideLength", c.SideLength); err != nil {
		return err
	}
	if !(c.AspectRatioMax >= 1) {
		return configErr("AspectRatioMax", "must be at least 1, got %g", c.AspectRatioMax)
	}
	if err := positive("GroundTolerance", c.GroundTolerance); err != nil {
		return err
	}
	if math.Abs(c.Target.Latitude) > math.Pi/2 || math.IsNaN(c.Target.Latitude) || math.IsNaN(c.Target.Longitude) {
		return configErr("Target", "invalid location %s", c.Target)
	}
	if c.MinWindowDuration < 0 {
		return configErr("MinWindowDuration", "must not be negative")
	}
	if sk := c.StationKeeping; sk.Enabled {
		if sk.Interval < c.TimeStep {
			return configErr("StationKeeping.Interval", "must be at least one time step, got %s", sk.Interval)
		}
		if sk.PredictionHorizon <= 0 {
			return configErr("StationKeeping.PredictionHorizon", "must be positive, got %s", sk.PredictionHorizon)
		}
		if err := positive("StationKeeping.Tolerance", sk.Tolerance); err != nil {
			return err
		}
		if err := positive("StationKeeping.TargetingTolerance", sk.TargetingTolerance); err != nil {
			return err
		}
		if sk.TransferTime < 0 {
			return configErr("StationKeeping.TransferTime", "must not be negative")
		}
		if sk.MaxIterations < 0 {
			return configErr("StationKeeping.MaxIterations", "must not be negative")
		}
	}
	if err := c.Drag.validate("Drag"); err != nil {
		return err
	}
	if c.DensityScale < 0 || math.IsNaN(c.DensityScale) {
		return configErr("DensityScale", "must be positive, got %g", c.DensityScale)
	}
	mc := c.MonteCarlo
	if mc.Trials < 0 || mc.Workers < 0 {
		return configErr("MonteCarlo", "trials and workers must not be negative")
	}
	for _, σ := range []struct {
		field string
		value float64
	}{
		{"MonteCarlo.PositionSigma", mc.PositionSigma},
		{"MonteCarlo.VelocitySigma", mc.VelocitySigma},
		{"MonteCarlo.DragCoefficientSigma", mc.DragCoefficientSigma},
		{"MonteCarlo.DensitySigma", mc.DensitySigma},
	} {
		if σ.value < 0 || math.IsNaN(σ.value) {
			return configErr(σ.field, "must not be negative, got %g", σ.value)
		}
	}
	if err := positive("Budgets.AnnualDeltaVCap", c.Budgets.AnnualDeltaVCap); err != nil {
		return err
	}
	if len(c.Stations) > 0 {
		if c.Budgets.LatencyCeiling <= 0 {
			return configErr("Budgets.LatencyCeiling", "must be positive when stations are set")
		}
		if c.Budgets.LatencyRequestStep <= 0 {
			return configErr("Budgets.LatencyRequestStep", "must be positive when stations are set")
		}
	}
	for i, m := range c.Maneuvers {
		if m.Spacecraft == "" {
			return configErr("Maneuvers", "maneuver #%d has no spacecraft", i)
		}
		if !finite(m.Δv) {
			return configErr("Maneuvers", "maneuver #%d has a non finite Δv", i)
		}
	}
	return nil
}
