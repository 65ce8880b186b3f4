package trident

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

const (
	alignIterations = 8
	alignTolerance  = 1e-9 // rad
	goldenRatio     = 0.6180339887498949
	// DefaultRefineTolerance is the bracket width (rad) at which the refinement stops.
	DefaultRefineTolerance = 1e-5
)

// AlignToTarget returns the reference elements with their RAAN and mean
// anomaly set so that the chief flies over the target at the middle of the
// horizon, on the ascending or descending part of its orbit. The alignment
// accounts for the force model of the configuration.
func AlignToTarget(cfg FormationConfiguration, ascending bool) (OrbitalElements, error) {
	ref := cfg.Reference
	sini := math.Sin(ref.i)
	φ, λ := cfg.Target.Latitude, cfg.Target.Longitude
	if math.Abs(math.Sin(φ)) > math.Abs(sini) {
		return ref, errors.Wrapf(ErrNoFeasibleSolution, "target latitude %.3f deg beyond the inclination %.3f deg", Rad2deg(φ), Rad2deg(ref.i))
	}
	prop, err := cfg.NewPropagator()
	if err != nil {
		return ref, err
	}
	mid := cfg.Start.Add(cfg.Horizon / 2)
	// Argument of latitude of the given latitude on the chosen half of the orbit.
	latitudeArg := func(lat float64) float64 {
		u := math.Asin(math.Max(-1, math.Min(1, math.Sin(lat)/sini)))
		if !ascending {
			u = math.Pi - u
		}
		return u
	}
	// Longitude of the point of argument of latitude u, relative to the node.
	nodeOffset := func(u float64) float64 {
		return math.Atan2(math.Cos(ref.i)*math.Sin(u), math.Cos(u))
	}
	u := latitudeArg(φ)
	Δt := mid.Sub(ref.epoch).Seconds()
	Ω := λ + GMST(mid) - nodeOffset(u)
	M := u - ref.ω - ref.MeanMotion(cfg.Body)*Δt
	aligned := ref.WithRAAN(Ω).WithMeanAnomaly(M)
	for iter := 0; iter < alignIterations; iter++ {
		s, err := prop.PropagateElements(aligned, cfg.Drag, mid)
		if err != nil {
			return ref, err
		}
		geo := SubSatellitePoint(s.r, mid, cfg.Body)
		uAct := latitudeArg(geo.Latitude)
		Δu := u - uAct
		ΔΩ := wrapPi((λ - nodeOffset(u)) - (geo.Longitude - nodeOffset(uAct)))
		aligned = aligned.WithRAAN(aligned.Ω + ΔΩ).WithMeanAnomaly(aligned.M + Δu)
		if math.Abs(Δu) < alignTolerance && math.Abs(ΔΩ) < alignTolerance {
			break
		}
	}
	return aligned, nil
}

// AngleSearch defines a one dimensional sweep in radians.
type AngleSearch struct {
	Min, Max, Step float64
	MinDuration    time.Duration // Shortest acceptable window.
	Tolerance      float64       // Refinement bracket width, DefaultRefineTolerance if zero.
	Workers        int           // Parallel candidates, number of CPUs if zero.
}

func (s AngleSearch) validate() error {
	if !(s.Step > 0) || math.IsInf(s.Step, 0) {
		return configErr("search step", "must be positive, got %g", s.Step)
	}
	if !(s.Max >= s.Min) {
		return configErr("search bounds", "max %g below min %g", s.Max, s.Min)
	}
	if s.MinDuration < 0 || s.Tolerance < 0 || s.Workers < 0 {
		return configErr("search", "negative settings %+v", s)
	}
	return nil
}

// Candidate is one evaluation of a sweep.
type Candidate struct {
	Angle             float64 // rad
	Duration          time.Duration
	Window            AccessWindow
	MinGroundDistance float64 // Centroid, full horizon (m).
	Err               error
}

// better returns whether c scores better than o: longer window, then closer approach.
func (c Candidate) better(o Candidate) bool {
	if (c.Err == nil) != (o.Err == nil) {
		return c.Err == nil
	}
	if c.Duration != o.Duration {
		return c.Duration > o.Duration
	}
	return c.MinGroundDistance < o.MinGroundDistance
}

func (c Candidate) String() string {
	if c.Err != nil {
		return fmt.Sprintf("%.5f deg: %s", Rad2deg(c.Angle), c.Err)
	}
	return fmt.Sprintf("%.5f deg: window=%s min distance=%.3f km", Rad2deg(c.Angle), c.Duration, c.MinGroundDistance/1e3)
}

// SearchResult is the outcome of SolveRAAN and SearchMeanAnomaly.
type SearchResult struct {
	Best    Candidate
	History []Candidate // Every evaluation, sorted by angle.
}

// SolveRAAN sweeps the RAAN of the reference orbit and returns the one which
// maximizes the access window. Candidates are run without station keeping.
// The best grid point is refined within one step by golden section search of
// the closest approach of the centroid to the target. If the best window is
// shorter than MinDuration, the result is returned with ErrNoFeasibleSolution.
func SolveRAAN(ctx context.Context, cfg FormationConfiguration, search AngleSearch) (SearchResult, error) {
	ref := cfg.Reference
	return sweep(ctx, cfg, search, "RAAN", func(Ω float64) OrbitalElements {
		return ref.WithRAAN(Ω)
	})
}

// SearchMeanAnomaly sweeps an offset (rad) added to the mean anomaly of the
// reference orbit, as SolveRAAN does for the RAAN.
func SearchMeanAnomaly(ctx context.Context, cfg FormationConfiguration, search AngleSearch) (SearchResult, error) {
	ref := cfg.Reference
	return sweep(ctx, cfg, search, "mean anomaly", func(δM float64) OrbitalElements {
		return ref.WithMeanAnomaly(ref.M + δM)
	})
}

func sweep(ctx context.Context, cfg FormationConfiguration, search AngleSearch, name string, reference func(float64) OrbitalElements) (SearchResult, error) {
	if err := cfg.Validate(); err != nil {
		return SearchResult{}, err
	}
	if err := search.validate(); err != nil {
		return SearchResult{}, err
	}
	logger := log.With(cfg.logger(), "subsys", "raan", "search", name)
	geometry := cfg
	geometry.StationKeeping.Enabled = false
	geometry.Maneuvers = nil
	geometry.Stations = nil
	geometry.Logger = log.NewNopLogger()
	evaluate := func(angle float64) Candidate {
		run := geometry
		run.Reference = reference(angle)
		res, err := Simulate(ctx, run)
		c := Candidate{Angle: angle, Err: err, MinGroundDistance: math.Inf(1)}
		if err == nil {
			c.Window = res.Window
			c.Duration = res.Window.Duration()
			c.MinGroundDistance = res.Statistics.MinGroundDistanceFullHorizon
		}
		return c
	}

	n := int(math.Floor((search.Max-search.Min)/search.Step+1e-9)) + 1
	history := make([]Candidate, n)
	workers := search.Workers
	if workers == 0 {
		workers = cfg.workers()
	}
	forEach(ctx, n, workers, func(i int) {
		history[i] = evaluate(search.Min + float64(i)*search.Step)
	})
	if err := ctx.Err(); err != nil {
		return SearchResult{}, err
	}
	best := history[0]
	for _, c := range history[1:] {
		if c.better(best) {
			best = c
		}
	}
	level.Debug(logger).Log("status", "swept", "candidates", n, "best", best)

	if best.Err == nil {
		tol := search.Tolerance
		if tol == 0 {
			tol = DefaultRefineTolerance
		}
		lo := math.Max(search.Min, best.Angle-search.Step)
		hi := math.Min(search.Max, best.Angle+search.Step)
		x1 := hi - goldenRatio*(hi-lo)
		x2 := lo + goldenRatio*(hi-lo)
		c1, c2 := evaluate(x1), evaluate(x2)
		history = append(history, c1, c2)
		for hi-lo > tol && ctx.Err() == nil {
			if c1.MinGroundDistance < c2.MinGroundDistance {
				hi, x2, c2 = x2, x1, c1
				x1 = hi - goldenRatio*(hi-lo)
				c1 = evaluate(x1)
				history = append(history, c1)
			} else {
				lo, x1, c1 = x1, x2, c2
				x2 = lo + goldenRatio*(hi-lo)
				c2 = evaluate(x2)
				history = append(history, c2)
			}
		}
		for _, c := range history[n:] {
			if c.better(best) {
				best = c
			}
		}
	}
	slices.SortStableFunc(history, func(a, b Candidate) int {
		switch {
		case a.Angle < b.Angle:
			return -1
		case a.Angle > b.Angle:
			return 1
		}
		return 0
	})
	result := SearchResult{Best: best, History: history}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if best.Err != nil {
		return result, errors.Wrapf(ErrNoFeasibleSolution, "every %s candidate failed, last: %s", name, best.Err)
	}
	level.Info(logger).Log("status", "finished", "best(deg)", Rad2deg(best.Angle), "window", best.Duration, "distance(km)", best.MinGroundDistance/1e3)
	if best.Duration < search.MinDuration || !best.Window.Found() {
		return result, errors.Wrapf(ErrNoFeasibleSolution, "best %s %.4f deg only offers %s", name, Rad2deg(best.Angle), best.Duration)
	}
	return result, nil
}
