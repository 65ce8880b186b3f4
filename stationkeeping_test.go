package trident

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

func TestCWVelocitySensitivity(t *testing.T) {
	n := 1.1e-3
	// After one period, only the secular along-track drift is left.
	m := CWVelocitySensitivity(n, twoPi/n)
	exp := mat.NewDense(3, 3, []float64{0, 0, 0, 0, -3 * twoPi / n, 0, 0, 0, 0})
	if !mat.EqualApprox(m, exp, 1e-6) {
		t.Fatalf("one period:\n%v", mat.Formatted(m))
	}
	var lu mat.LU
	lu.Factorize(CWVelocitySensitivity(n, 0.75*twoPi/n))
	if det := lu.Det(); scalar.EqualWithinAbs(det, 0, 1e-6) {
		t.Fatalf("the transfer sensitivity should be invertible, det=%e", det)
	}
}

// offset returns sc with its actual orbit moved along-track by δM and out of
// plane by δi from its ideal one.
func offset(t *testing.T, cfg FormationConfiguration, sc Spacecraft, δM, δi float64) Spacecraft {
	o := sc.Ideal()
	moved, err := NewOrbitalElements(o.a, o.e, o.i+δi, o.Ω, o.ω, o.M+δM, o.epoch)
	if err != nil {
		t.Fatal(err)
	}
	s, err := ElementsToState(moved, cfg.Body)
	if err != nil {
		t.Fatal(err)
	}
	return sc.WithActual(s)
}

// offsetFleet returns the reference formation with SC-A moved.
func offsetFleet(t *testing.T, cfg FormationConfiguration, prop Propagator, δM, δi float64) []Spacecraft {
	fleet, err := NewTriangleFormation(cfg, prop)
	if err != nil {
		t.Fatal(err)
	}
	fleet[0] = offset(t, cfg, fleet[0], δM, δi)
	return fleet
}

func maneuversOf(events []ManeuverEvent, id string) []ManeuverEvent {
	var out []ManeuverEvent
	for _, e := range events {
		if e.Spacecraft == id {
			out = append(out, e)
		}
	}
	return out
}

func TestStationKeepingEffectiveness(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.TimeStep = time.Minute
	cfg.Horizon = 48 * time.Hour
	cfg.StationKeeping.TargetingTolerance = 0.1
	prop, err := cfg.NewPropagator()
	if err != nil {
		t.Fatal(err)
	}
	fleet, err := NewTriangleFormation(cfg, prop)
	if err != nil {
		t.Fatal(err)
	}
	δM, δi := 5e3/cfg.Reference.A(), 0.05*deg2rad
	fleet[0] = offset(t, cfg, fleet[0], δM, δi)
	fleet[1] = offset(t, cfg, fleet[1], -δM, -δi)
	res, err := SimulateFleet(context.Background(), cfg, fleet, prop)
	if err != nil {
		t.Fatal(err)
	}
	for k, id := range []string{"SC-A", "SC-B"} {
		var checks []DeviationCheck
		for _, c := range res.Checks {
			if c.Spacecraft == id {
				checks = append(checks, c)
			}
		}
		if len(checks) == 0 || !checks[0].Triggered || !checks[0].Time.Equal(cfg.Start) {
			t.Fatalf("%s: the offset must be detected at the first check", id)
		}
		events := maneuversOf(res.Maneuvers, id)
		if len(events) < 2 || events[0].Phase != Acquisition || events[1].Phase != Acquisition {
			t.Fatalf("%s: events=%v", id, events)
		}
		for _, e := range events[2:] {
			if e.Phase != Maintenance {
				t.Fatalf("%s: only the first correction acquires, got %s", id, e)
			}
		}
		transfer := events[1].Time.Sub(events[0].Time)
		if transfer <= 0 || transfer%cfg.TimeStep != 0 {
			t.Fatalf("%s: transfer=%s", id, transfer)
		}
		// Corrected within one prediction cycle.
		var after *DeviationCheck
		for i := range checks {
			if checks[i].Time.After(events[1].Time) {
				after = &checks[i]
				break
			}
		}
		if after == nil || after.Triggered || after.Predicted >= cfg.StationKeeping.Tolerance {
			t.Fatalf("%s: no effective correction: %+v", id, after)
		}
		if after.Time.Sub(cfg.Start) > cfg.StationKeeping.PredictionHorizon {
			t.Fatalf("%s: corrected only @%s", id, after.Time)
		}
		if dev := res.Samples[len(res.Samples)-1].Spacecraft[k].PositionDeviation; dev > cfg.StationKeeping.Tolerance {
			t.Fatalf("%s: final deviation %f m", id, dev)
		}
	}
	if events := maneuversOf(res.Maneuvers, "SC-C"); len(events) != 0 {
		t.Fatalf("unperturbed spacecraft maneuvered: %v", events)
	}
	// The recurring Δv is extrapolated to a year and must still fit the cap.
	scale := float64(Year) / float64(cfg.Horizon)
	for _, b := range res.DeltaV.Spacecraft {
		if exp := b.Acquisition + (b.Maintenance+b.Commanded)*scale; !scalar.EqualWithinAbs(b.Annual, exp, 1e-9) {
			t.Fatalf("%s: annual=%f expected %f", b.ID, b.Annual, exp)
		}
		if !b.Pass || b.Annual >= cfg.Budgets.AnnualDeltaVCap {
			t.Fatalf("budget=%+v", b)
		}
	}
	if res.DeltaV.Spacecraft[0].Acquisition == 0 || res.DeltaV.Spacecraft[1].Acquisition == 0 || !res.DeltaV.Pass {
		t.Fatalf("fleet budget=%+v", res.DeltaV)
	}
}

func TestStationKeepingRecurringCorrections(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.TimeStep = time.Minute
	cfg.Horizon = 8 * time.Hour
	// Tighter than the targeting tolerance: the spacecraft is never left alone.
	cfg.StationKeeping.Tolerance = 0.2
	prop, err := cfg.NewPropagator()
	if err != nil {
		t.Fatal(err)
	}
	fleet := offsetFleet(t, cfg, prop, 5e3/cfg.Reference.A(), 0.05*deg2rad)
	res, err := SimulateFleet(context.Background(), cfg, fleet, prop)
	if err != nil {
		t.Fatal(err)
	}
	events := maneuversOf(res.Maneuvers, "SC-A")
	if len(events) < 4 {
		t.Fatalf("expected at least two corrections, got %v", events)
	}
	for i, e := range events {
		exp := Maintenance
		if i < 2 {
			exp = Acquisition
		}
		if e.Phase != exp {
			t.Fatalf("#%d: %s expected %s", i, e, exp)
		}
	}
	b := res.DeltaV.Spacecraft[0]
	if b.Maintenance <= 0 || b.Annual <= b.Total {
		t.Fatalf("recurring corrections must be annualized: %+v", b)
	}
}

func TestStationKeepingStates(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.TimeStep = time.Minute
	prop, err := cfg.NewPropagator()
	if err != nil {
		t.Fatal(err)
	}
	fleet := offsetFleet(t, cfg, prop, 2e3/cfg.Reference.A(), 0)
	c, err := NewController(prop, cfg.StationKeeping, cfg.Start, cfg.TimeStep, cfg.Reference.Period(cfg.Body), cfg.Drag, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.TransferTime()%cfg.TimeStep != 0 {
		t.Fatalf("transfer %s off the grid", c.TransferTime())
	}
	ideal, err := prop.PropagateElements(fleet[0].Ideal(), cfg.Drag, cfg.Start)
	if err != nil {
		t.Fatal(err)
	}
	if c.State("SC-A") != Nominal {
		t.Fatal("expected nominal")
	}
	burns, check, err := c.Evaluate(cfg.Start, fleet[0], ideal)
	if err != nil {
		t.Fatal(err)
	}
	if check == nil || !check.Triggered || len(burns) != 1 || c.State("SC-A") != ManeuverPlanned {
		t.Fatalf("check=%+v burns=%v state=%s", check, burns, c.State("SC-A"))
	}
	// Off the check grid, nothing happens.
	if burns, check, err := c.Evaluate(cfg.Start.Add(cfg.TimeStep), fleet[0], ideal); err != nil || check != nil || len(burns) != 0 {
		t.Fatalf("check=%+v burns=%v err=%v", check, burns, err)
	}
	// The first burn alone must bring the spacecraft onto its ideal position.
	arrival := cfg.Start.Add(c.TransferTime())
	s, err := prop.Propagate(fleet[0].Actual().WithΔv(burns[0].Δv), cfg.Drag, arrival)
	if err != nil {
		t.Fatal(err)
	}
	target, err := prop.Propagate(ideal, cfg.Drag, arrival)
	if err != nil {
		t.Fatal(err)
	}
	if miss := distance(s.R(), target.R()); miss > cfg.StationKeeping.TargetingTolerance {
		t.Fatalf("miss=%f m", miss)
	}
	// A single iteration cannot meet a centimeter tolerance.
	strict := cfg.StationKeeping
	strict.TargetingTolerance = 1e-2
	strict.MaxIterations = 1
	c, _ = NewController(prop, strict, cfg.Start, cfg.TimeStep, cfg.Reference.Period(cfg.Body), cfg.Drag, nil)
	if _, _, err := c.Evaluate(cfg.Start, fleet[0], ideal); !errors.Is(err, ErrNoFeasibleSolution) {
		t.Fatalf("expected an infeasible correction, got %v", err)
	}
}

func TestWithSpacecraft(t *testing.T) {
	err := errors.Wrapf(&PropagationError{Epoch: testEpoch, Reason: "collided"}, "step %d", 3)
	tagged := withSpacecraft(err, "SC-B")
	var propErr *PropagationError
	if !errors.As(tagged, &propErr) || propErr.Spacecraft != "SC-B" {
		t.Fatalf("not tagged: %v", tagged)
	}
	if msg := tagged.Error(); !strings.HasPrefix(msg, "step 3: ") || !strings.Contains(msg, "SC-B") {
		t.Fatalf("context lost: %s", msg)
	}
	// Already tagged errors keep their spacecraft.
	withSpacecraft(tagged, "SC-C")
	if propErr.Spacecraft != "SC-B" {
		t.Fatalf("retagged as %s", propErr.Spacecraft)
	}
}
