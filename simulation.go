package trident

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r3"
)

// SimulationResult is the outcome of one deterministic run.
type SimulationResult struct {
	Samples    []GeometrySample
	Window     AccessWindow
	Statistics WindowStatistics
	Maneuvers  []ManeuverEvent
	Checks     []DeviationCheck
	DeltaV     DeltaVReport
	Contacts   []ContactWindow // Merged over all the stations.
	Latency    LatencyReport   // Only set when stations are configured.
	Final      []Spacecraft
}

// Simulate builds the formation of the configuration and runs it over the horizon.
func Simulate(ctx context.Context, cfg FormationConfiguration) (SimulationResult, error) {
	prop, err := cfg.NewPropagator()
	if err != nil {
		return SimulationResult{}, err
	}
	fleet, err := NewTriangleFormation(cfg, prop)
	if err != nil {
		return SimulationResult{}, err
	}
	return SimulateFleet(ctx, cfg, fleet, prop)
}

// SimulateFleet runs the provided formation over the horizon of the
// configuration. The actual states of the fleet may differ from the ideal
// elements, as after an injection error. At every time step the station keeping
// checks due are performed first, then the burns due are applied, then the
// sample is recorded and finally every spacecraft is propagated to the next
// step. A propagation failure of any spacecraft fails the whole run.
func SimulateFleet(ctx context.Context, cfg FormationConfiguration, fleet []Spacecraft, prop Propagator) (SimulationResult, error) {
	if err := cfg.Validate(); err != nil {
		return SimulationResult{}, err
	}
	if len(fleet) != 3 {
		return SimulationResult{}, configErr("fleet", "expected three spacecraft, got %d", len(fleet))
	}
	logger := log.With(cfg.logger(), "subsys", "astro")
	fleet = slices.Clone(fleet)
	var ids [3]string
	known := make(map[string]bool, 3)
	ideals := make([]CartesianState, 3)
	for k, sc := range fleet {
		ids[k] = sc.id
		known[sc.id] = true
		ideal, err := prop.PropagateElements(sc.ideal, cfg.Drag, cfg.Start)
		if err != nil {
			return SimulationResult{}, withSpacecraft(err, sc.id)
		}
		ideals[k] = ideal
		if !sc.actual.epoch.Equal(cfg.Start) {
			actual, err := prop.Propagate(sc.actual, sc.drag, cfg.Start)
			if err != nil {
				return SimulationResult{}, withSpacecraft(err, sc.id)
			}
			fleet[k] = sc.WithActual(actual)
		}
	}
	planned := slices.Clone(cfg.Maneuvers)
	slices.SortStableFunc(planned, func(a, b PlannedManeuver) int {
		return a.Time.Compare(b.Time)
	})
	for _, m := range planned {
		if !known[m.Spacecraft] {
			return SimulationResult{}, configErr("Maneuvers", "unknown spacecraft %s", m.Spacecraft)
		}
	}

	var controller *Controller
	if cfg.StationKeeping.Enabled {
		var err error
		controller, err = NewController(prop, cfg.StationKeeping, cfg.Start, cfg.TimeStep, cfg.Reference.Period(cfg.Body), cfg.Drag, cfg.logger())
		if err != nil {
			return SimulationResult{}, err
		}
	}

	var result SimulationResult
	var maneuvers ManeuverLog
	apply := func(k int, t time.Time, Δv r3.Vec, phase ManeuverPhase) error {
		sc := fleet[k].WithΔv(Δv)
		oe, err := StateToElements(sc.actual, cfg.Body)
		if err != nil {
			return withSpacecraft(err, sc.id)
		}
		fleet[k] = sc
		maneuvers.Append(ManeuverEvent{Time: t, Spacecraft: sc.id, Δv: Δv, Magnitude: norm(Δv), Phase: phase, Elements: oe})
		return nil
	}

	steps := int(cfg.Horizon / cfg.TimeStep)
	result.Samples = make([]GeometrySample, 0, steps+1)
	nextPlanned := 0
	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		t := cfg.Start.Add(time.Duration(i) * cfg.TimeStep)
		if controller != nil {
			for k := range fleet {
				burns, check, err := controller.Evaluate(t, fleet[k], ideals[k])
				if check != nil {
					result.Checks = append(result.Checks, *check)
				}
				if err != nil {
					return result, err
				}
				for _, b := range burns {
					if err := apply(k, t, b.Δv, b.Phase); err != nil {
						return result, err
					}
				}
			}
		}
		// Commanded burns which fall between two steps are applied at the next one.
		for ; nextPlanned < len(planned) && !planned[nextPlanned].Time.After(t); nextPlanned++ {
			m := planned[nextPlanned]
			k := slices.Index(ids[:], m.Spacecraft)
			Δv, err := m.inertialΔv(fleet[k].actual)
			if err != nil {
				return result, err
			}
			if err := apply(k, t, Δv, Commanded); err != nil {
				return result, err
			}
		}
		var actual, ideal [3]CartesianState
		for k := range fleet {
			actual[k], ideal[k] = fleet[k].actual, ideals[k]
		}
		sample, err := EvaluateSample(t, ids, actual, ideal, cfg.Target, cfg.Criteria(), cfg.Body)
		if err != nil {
			return result, err
		}
		result.Samples = append(result.Samples, sample)
		if i == steps {
			break
		}
		next := t.Add(cfg.TimeStep)
		for k, sc := range fleet {
			s, err := prop.Propagate(sc.actual, sc.drag, next)
			if err != nil {
				return result, errors.Wrapf(withSpacecraft(err, sc.id), "step %d", i)
			}
			idealNext, err := prop.Propagate(ideals[k], cfg.Drag, next)
			if err != nil {
				return result, errors.Wrapf(withSpacecraft(err, sc.id), "ideal of step %d", i)
			}
			fleet[k], ideals[k] = sc.WithActual(s), idealNext
		}
	}

	result.Window = DetectAccessWindow(result.Samples)
	result.Statistics = ComputeWindowStatistics(result.Samples, result.Window)
	result.Maneuvers = maneuvers.Events()
	result.Final = fleet
	budget, err := DeltaVBudget(result.Maneuvers, ids[:], cfg.Horizon, cfg.Budgets.AnnualDeltaVCap)
	if err != nil {
		return result, err
	}
	result.DeltaV = budget
	if len(cfg.Stations) > 0 {
		var contacts []ContactWindow
		for _, st := range cfg.Stations {
			contacts = append(contacts, ContactWindows(st.Name, st.Visibility(result.Samples))...)
		}
		result.Contacts = MergeContacts(contacts)
		latency, err := CommandLatency(result.Contacts, cfg.Start, cfg.End(), cfg.Budgets.LatencyRequestStep, cfg.Budgets.LatencyCeiling)
		if err != nil {
			return result, err
		}
		result.Latency = latency
	}
	level.Info(logger).Log("status", "finished", "samples", len(result.Samples), "window", result.Window.Duration(), "maneuvers", len(result.Maneuvers), "maxAnnualΔv(m/s)", result.DeltaV.MaxAnnual)
	return result, nil
}
