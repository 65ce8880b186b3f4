package trident

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats/scalar"
)

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func TestSamplePerturbation(t *testing.T) {
	mc := DefaultConfiguration().MonteCarlo
	p1, p2 := SamplePerturbation(mc, 42), SamplePerturbation(mc, 42)
	if p1 != p2 {
		t.Fatal("the same seed must give the same perturbation")
	}
	if p1 == SamplePerturbation(mc, 43) {
		t.Fatal("different seeds should give different perturbations")
	}
	for k := range p1.DragCoefficient {
		if p1.DragCoefficient[k] < minMultiplier || norm(p1.Position[k]) == 0 {
			t.Fatalf("perturbation=%+v", p1)
		}
	}
	none := SamplePerturbation(MonteCarloConfig{}, 42)
	for k := range none.Position {
		if norm(none.Position[k]) != 0 || norm(none.Velocity[k]) != 0 || none.DragCoefficient[k] != 1 {
			t.Fatalf("no dispersion expected, got %+v", none)
		}
	}
	if none.Density != 1 {
		t.Fatalf("density=%f", none.Density)
	}
}

func TestPerturbationApply(t *testing.T) {
	cfg := DefaultConfiguration()
	prop, _ := cfg.NewPropagator()
	fleet, err := NewTriangleFormation(cfg, prop)
	if err != nil {
		t.Fatal(err)
	}
	p := SamplePerturbation(cfg.MonteCarlo, 7)
	dispersed, err := p.Apply(fleet)
	if err != nil {
		t.Fatal(err)
	}
	for k := range fleet {
		if d := distance(dispersed[k].Actual().R(), fleet[k].Actual().R()); !scalar.EqualWithinAbs(d, norm(p.Position[k]), 1e-6) {
			t.Fatalf("%s moved by %f m instead of %f", fleet[k].ID(), d, norm(p.Position[k]))
		}
		if !scalar.EqualWithinRel(dispersed[k].Drag().Cd, cfg.Drag.Cd*p.DragCoefficient[k], 1e-12) {
			t.Fatalf("Cd=%f", dispersed[k].Drag().Cd)
		}
		if dispersed[k].Ideal() != fleet[k].Ideal() {
			t.Fatal("the ideal trajectory must not be dispersed")
		}
	}
}

func campaignConfiguration(t *testing.T) FormationConfiguration {
	cfg := alignedConfiguration(t)
	cfg.StationKeeping.Enabled = false
	cfg.MonteCarlo.Trials = 4
	return cfg
}

func TestCampaignDeterminism(t *testing.T) {
	cfg := campaignConfiguration(t)
	cfg.MonteCarlo.Workers = 1
	serial, err := RunCampaign(context.Background(), cfg, CampaignOptions{})
	if err != nil {
		t.Fatal(err)
	}
	cfg.MonteCarlo.Workers = 3
	parallel, err := RunCampaign(context.Background(), cfg, CampaignOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for i := range serial.Trials {
		s, p := serial.Trials[i], parallel.Trials[i]
		if s.Index != i || s.Seed != cfg.MonteCarlo.Seed+uint64(i) || !s.Completed {
			t.Fatalf("trial %d: %s", i, s)
		}
		if s.Perturbation != p.Perturbation || s.WindowDuration != p.WindowDuration || !sameFloat(s.MaxAspectRatio, p.MaxAspectRatio) || s.Success != p.Success {
			t.Fatalf("trial %d differs:\n%s\n%s", i, s, p)
		}
	}
	sum := serial.Summary
	if sum.Trials != 4 || sum.Completed != 4 || sum.Failed != 0 || sum.WindowDuration.N != 4 {
		t.Fatalf("summary=%+v", sum)
	}
	if sum.WindowDuration.Min > sum.WindowDuration.P50 || sum.WindowDuration.P50 > sum.WindowDuration.Max {
		t.Fatalf("window summary=%+v", sum.WindowDuration)
	}
	if sum.SuccessRate < 0 || sum.SuccessRate > sum.WindowRate || sum.LatencyRate != 1 {
		t.Fatalf("rates=%+v", sum)
	}
}

func TestCampaignFailedTrials(t *testing.T) {
	cfg := campaignConfiguration(t)
	// Escape velocities: every trial leaves its elliptical orbit.
	cfg.Model = TwoBody
	cfg.MonteCarlo.VelocitySigma = 1e5
	c, err := RunCampaign(context.Background(), cfg, CampaignOptions{})
	if err != nil {
		t.Fatalf("failed trials must not abort the campaign: %v", err)
	}
	for _, trial := range c.Trials {
		if trial.FailureReason != FailurePropagation || trial.Err == "" || trial.Success || trial.Outcome() != OutcomeError {
			t.Fatalf("trial=%s", trial)
		}
	}
	if c.Summary.Failed != 4 || c.Summary.Completed != 0 || c.Summary.SuccessRate != 0 || !math.IsNaN(c.Summary.WindowDuration.Mean) {
		t.Fatalf("summary=%+v", c.Summary)
	}
}

func TestCampaignCancellation(t *testing.T) {
	cfg := campaignConfiguration(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, err := RunCampaign(ctx, cfg, CampaignOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected a cancellation, got %v", err)
	}
	for _, trial := range c.Trials {
		if trial.Completed {
			t.Fatalf("trial %d ran after the cancellation", trial.Index)
		}
	}
	if c.Summary.Completed != 0 || c.Summary.SuccessRate != 0 {
		t.Fatalf("summary=%+v", c.Summary)
	}
	cfg.MonteCarlo.Trials = 0
	if _, err := RunCampaign(context.Background(), cfg, CampaignOptions{}); KindOf(err) != FailureConfiguration {
		t.Fatalf("no trials: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{4, math.NaN(), 1, 3, 2})
	if s.N != 4 || s.Min != 1 || s.Max != 4 || s.Mean != 2.5 || s.P50 != 2 || s.P95 != 4 {
		t.Fatalf("summary=%+v", s)
	}
	if !scalar.EqualWithinAbs(s.StdDev, math.Sqrt(5/3.), 1e-12) {
		t.Fatalf("std=%f", s.StdDev)
	}
	if one := Summarize([]float64{7}); one.Mean != 7 || one.StdDev != 0 {
		t.Fatalf("summary=%+v", one)
	}
}
