package trident

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/exp/rand"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// minMultiplier is the floor of the sampled drag and density multipliers.
const minMultiplier = 0.05

// TrialPerturbation is the dispersion sampled for one trial.
type TrialPerturbation struct {
	Position        [3]r3.Vec  // LVLH injection error of each spacecraft (m).
	Velocity        [3]r3.Vec  // LVLH injection error of each spacecraft (m/s).
	DragCoefficient [3]float64 // Cd multiplier of each spacecraft.
	Density         float64    // Atmospheric density multiplier of the trial.
}

// MonteCarloTrial is the outcome of one trial of a campaign.
type MonteCarloTrial struct {
	Index        int
	Seed         uint64
	Perturbation TrialPerturbation

	WindowDuration time.Duration
	MaxAspectRatio float64 // In window, NaN without a window.
	WorstAnnualΔv  float64 // m/s per year, worst spacecraft.
	MaxLatency     time.Duration
	Maneuvers      int

	WindowPass   bool
	GeometryPass bool
	DeltaVPass   bool
	LatencyPass  bool // True when no station is configured.
	Success      bool

	Completed     bool // False if the campaign was cancelled before this trial ran.
	FailureReason FailureKind
	Err           string
	Elapsed       time.Duration
}

// Outcome returns the metrics label of this trial.
func (t MonteCarloTrial) Outcome() string {
	switch {
	case t.FailureReason != FailureNone:
		return OutcomeError
	case t.Success:
		return OutcomeSuccess
	}
	return OutcomeFailure
}

func (t MonteCarloTrial) String() string {
	if t.FailureReason != FailureNone {
		return fmt.Sprintf("trial #%d (seed %d): %s: %s", t.Index, t.Seed, t.FailureReason, t.Err)
	}
	return fmt.Sprintf("trial #%d (seed %d): window=%s aspect=%.5f Δv=%.3f m/s/yr latency=%s success=%t", t.Index, t.Seed, t.WindowDuration, t.MaxAspectRatio, t.WorstAnnualΔv, t.MaxLatency, t.Success)
}

// MetricSummary is the distribution of one metric over the completed trials.
type MetricSummary struct {
	N            int
	Mean, StdDev float64
	P50, P95     float64
	Min, Max     float64
}

// Summarize returns the summary of the provided values, NaN values are ignored.
func Summarize(values []float64) MetricSummary {
	x := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			x = append(x, v)
		}
	}
	if len(x) == 0 {
		nan := math.NaN()
		return MetricSummary{Mean: nan, StdDev: nan, P50: nan, P95: nan, Min: nan, Max: nan}
	}
	slices.Sort(x)
	s := MetricSummary{
		N:   len(x),
		P50: stat.Quantile(0.5, stat.Empirical, x, nil),
		P95: stat.Quantile(0.95, stat.Empirical, x, nil),
		Min: x[0],
		Max: x[len(x)-1],
	}
	if len(x) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	} else {
		s.Mean = x[0]
	}
	return s
}

// CampaignSummary aggregates the trials of a campaign. Rates are over every
// trial which ran, errored trials counting as misses.
type CampaignSummary struct {
	Trials, Completed, Failed int

	WindowDuration MetricSummary // s
	MaxAspectRatio MetricSummary
	WorstAnnualΔv  MetricSummary // m/s per year
	MaxLatency     MetricSummary // s

	WindowRate, GeometryRate, DeltaVRate, LatencyRate, SuccessRate float64
}

// Campaign is the result of RunCampaign.
type Campaign struct {
	Trials  []MonteCarloTrial // By index.
	Summary CampaignSummary
}

// CampaignOptions are the optional collaborators of a campaign.
type CampaignOptions struct {
	Metrics *CampaignMetrics
}

// RunCampaign runs cfg.MonteCarlo.Trials dispersed simulations of the
// configuration. Trial i is seeded with Seed+i so the results do not depend
// on the number of workers. A trial which fails is recorded as such and the
// campaign continues. ctx is checked between trials: a started trial runs to
// its end, and once ctx is cancelled the trials already finished are returned
// with ctx.Err().
func RunCampaign(ctx context.Context, cfg FormationConfiguration, opts CampaignOptions) (Campaign, error) {
	if err := cfg.Validate(); err != nil {
		return Campaign{}, err
	}
	mc := cfg.MonteCarlo
	if mc.Trials < 1 {
		return Campaign{}, configErr("MonteCarlo.Trials", "must be positive, got %d", mc.Trials)
	}
	logger := log.With(cfg.logger(), "subsys", "mc")
	prop, err := cfg.NewPropagator()
	if err != nil {
		return Campaign{}, err
	}
	nominal, err := NewTriangleFormation(cfg, prop)
	if err != nil {
		return Campaign{}, err
	}
	// Trials must not log one line per maneuver.
	trialCfg := cfg
	trialCfg.Logger = log.NewNopLogger()

	trials := make([]MonteCarloTrial, mc.Trials)
	level.Info(logger).Log("status", "starting", "trials", mc.Trials, "workers", cfg.workers(), "seed", mc.Seed)
	forEach(ctx, mc.Trials, cfg.workers(), func(i int) {
		trial := runTrial(trialCfg, prop, nominal, i)
		opts.Metrics.Observe(trial)
		trials[i] = trial
		level.Debug(logger).Log("trial", i, "outcome", trial.Outcome(), "elapsed", trial.Elapsed)
	})
	for i := range trials {
		if !trials[i].Completed {
			trials[i].Index, trials[i].Seed = i, mc.Seed+uint64(i)
		}
	}
	campaign := Campaign{Trials: trials, Summary: summarize(trials, len(cfg.Stations) > 0)}
	s := campaign.Summary
	level.Info(logger).Log("status", "finished", "completed", s.Completed, "failed", s.Failed, "success", s.SuccessRate, "window.p50(s)", s.WindowDuration.P50, "Δv.p95(m/s)", s.WorstAnnualΔv.P95)
	return campaign, ctx.Err()
}

// SamplePerturbation draws the dispersion of a trial from the provided seed.
func SamplePerturbation(mc MonteCarloConfig, seed uint64) TrialPerturbation {
	src := rand.NewSource(seed)
	identity := mat.NewSymDense(6, []float64{
		1, 0, 0, 0, 0, 0,
		0, 1, 0, 0, 0, 0,
		0, 0, 1, 0, 0, 0,
		0, 0, 0, 1, 0, 0,
		0, 0, 0, 0, 1, 0,
		0, 0, 0, 0, 0, 1,
	})
	injection, _ := distmv.NewNormal(make([]float64, 6), identity, src)
	cd := distuv.Normal{Mu: 1, Sigma: mc.DragCoefficientSigma, Src: src}
	density := distuv.Normal{Mu: 1, Sigma: mc.DensitySigma, Src: src}
	var p TrialPerturbation
	z := make([]float64, 6)
	for k := range p.Position {
		injection.Rand(z)
		p.Position[k] = r3.Scale(mc.PositionSigma, r3.Vec{X: z[0], Y: z[1], Z: z[2]})
		p.Velocity[k] = r3.Scale(mc.VelocitySigma, r3.Vec{X: z[3], Y: z[4], Z: z[5]})
		p.DragCoefficient[k] = math.Max(minMultiplier, cd.Rand())
	}
	p.Density = math.Max(minMultiplier, density.Rand())
	return p
}

// Apply returns the fleet dispersed by this perturbation.
func (p TrialPerturbation) Apply(fleet []Spacecraft) ([]Spacecraft, error) {
	if len(fleet) != len(p.Position) {
		return nil, configErr("fleet", "expected %d spacecraft, got %d", len(p.Position), len(fleet))
	}
	out := make([]Spacecraft, len(fleet))
	for k, sc := range fleet {
		rel := NewCartesianState(p.Position[k], p.Velocity[k], sc.actual.epoch, LVLH)
		s, err := LVLHToECI(rel, sc.actual)
		if err != nil {
			return nil, err
		}
		out[k] = sc.WithActual(s).WithDrag(sc.drag.WithCd(sc.drag.Cd * p.DragCoefficient[k]))
	}
	return out, nil
}

func runTrial(cfg FormationConfiguration, prop Propagator, nominal []Spacecraft, i int) (trial MonteCarloTrial) {
	began := time.Now()
	seed := cfg.MonteCarlo.Seed + uint64(i)
	trial = MonteCarloTrial{Index: i, Seed: seed, Completed: true, MaxAspectRatio: math.NaN()}
	defer func() { trial.Elapsed = time.Since(began) }()
	fail := func(err error) MonteCarloTrial {
		trial.FailureReason = KindOf(err)
		trial.Err = err.Error()
		return trial
	}
	trial.Perturbation = SamplePerturbation(cfg.MonteCarlo, seed)
	fleet, err := trial.Perturbation.Apply(nominal)
	if err != nil {
		return fail(err)
	}
	dispersed := prop.WithDensityScale(prop.DensityScale() * trial.Perturbation.Density)
	res, err := SimulateFleet(context.Background(), cfg, fleet, dispersed)
	if err != nil {
		return fail(err)
	}
	trial.WindowDuration = res.Window.Duration()
	trial.MaxAspectRatio = res.Statistics.MaxAspectRatio
	trial.WorstAnnualΔv = res.DeltaV.MaxAnnual
	trial.Maneuvers = len(res.Maneuvers)
	trial.WindowPass = res.Window.Found() && trial.WindowDuration >= cfg.MinWindowDuration
	trial.GeometryPass = res.Window.Found() && trial.MaxAspectRatio <= cfg.AspectRatioMax
	trial.DeltaVPass = res.DeltaV.Pass
	trial.LatencyPass = true
	if len(cfg.Stations) > 0 {
		trial.MaxLatency = res.Latency.Max
		trial.LatencyPass = res.Latency.Pass
	}
	trial.Success = trial.WindowPass && trial.GeometryPass && trial.DeltaVPass && trial.LatencyPass
	return trial
}

func summarize(trials []MonteCarloTrial, latency bool) CampaignSummary {
	s := CampaignSummary{Trials: len(trials)}
	var window, aspect, Δv, latencies []float64
	var windowOK, geometryOK, ΔvOK, latencyOK, success int
	ran := 0
	for _, t := range trials {
		if !t.Completed {
			continue
		}
		ran++
		if t.FailureReason != FailureNone {
			s.Failed++
			continue
		}
		s.Completed++
		window = append(window, t.WindowDuration.Seconds())
		aspect = append(aspect, t.MaxAspectRatio)
		Δv = append(Δv, t.WorstAnnualΔv)
		if latency {
			latencies = append(latencies, t.MaxLatency.Seconds())
		}
		for _, c := range []struct {
			ok bool
			n  *int
		}{{t.WindowPass, &windowOK}, {t.GeometryPass, &geometryOK}, {t.DeltaVPass, &ΔvOK}, {t.LatencyPass, &latencyOK}, {t.Success, &success}} {
			if c.ok {
				*c.n++
			}
		}
	}
	s.WindowDuration = Summarize(window)
	s.MaxAspectRatio = Summarize(aspect)
	s.WorstAnnualΔv = Summarize(Δv)
	s.MaxLatency = Summarize(latencies)
	if ran > 0 {
		n := float64(ran)
		s.WindowRate = float64(windowOK) / n
		s.GeometryRate = float64(geometryOK) / n
		s.DeltaVRate = float64(ΔvOK) / n
		s.LatencyRate = float64(latencyOK) / n
		s.SuccessRate = float64(success) / n
	}
	return s
}
