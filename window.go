package trident

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// AccessWindow is the longest contiguous run of compliant samples.
// It can only be obtained from DetectAccessWindow.
type AccessWindow struct {
	found       bool
	first, last int // indexes in the detection input, inclusive
	start, end  time.Time
	samples     []GeometrySample
}

// DetectAccessWindow returns the longest contiguous run of samples where both
// the geometry and the ground checks pass. Among runs of equal duration the
// earliest one is returned. The samples must be sorted by time.
func DetectAccessWindow(samples []GeometrySample) AccessWindow {
	var best AccessWindow
	var bestDuration time.Duration
	runStart := -1
	closeRun := func(last int) {
		if runStart < 0 {
			return
		}
		duration := samples[last].Time.Sub(samples[runStart].Time)
		if !best.found || duration > bestDuration {
			best = AccessWindow{found: true, first: runStart, last: last, start: samples[runStart].Time, end: samples[last].Time}
			bestDuration = duration
		}
		runStart = -1
	}
	for i, s := range samples {
		if s.Compliant() {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		closeRun(i - 1)
	}
	closeRun(len(samples) - 1)
	if best.found {
		best.samples = make([]GeometrySample, best.last-best.first+1)
		copy(best.samples, samples[best.first:best.last+1])
	}
	return best
}

// Found returns whether any compliant sample exists.
func (w AccessWindow) Found() bool { return w.found }

// Start returns the time of the first compliant sample of the window.
func (w AccessWindow) Start() time.Time { return w.start }

// End returns the time of the last compliant sample of the window.
func (w AccessWindow) End() time.Time { return w.end }

// Duration returns End - Start, zero if no window was found.
func (w AccessWindow) Duration() time.Duration {
	if !w.found {
		return 0
	}
	return w.end.Sub(w.start)
}

// Indexes returns the first and last index of the window in the detection input.
func (w AccessWindow) Indexes() (int, int) {
	if !w.found {
		return -1, -1
	}
	return w.first, w.last
}

// Samples returns a copy of the samples of the window.
func (w AccessWindow) Samples() []GeometrySample {
	out := make([]GeometrySample, len(w.samples))
	copy(out, w.samples)
	return out
}

func (w AccessWindow) String() string {
	if !w.found {
		return "no access window"
	}
	return fmt.Sprintf("access window %s -> %s (%s)", w.start.Format(time.RFC3339), w.end.Format(time.RFC3339), w.Duration())
}

// WindowStatistics summarizes the geometry inside a window and over the full horizon.
type WindowStatistics struct {
	Duration                     time.Duration
	MaxGroundDistanceInWindow    float64 // Centroid, samples of the window only (m).
	MinGroundDistanceInWindow    float64
	MaxGroundDistanceFullHorizon float64 // Centroid, every sample (m).
	MinGroundDistanceFullHorizon float64
	MaxAspectRatio               float64 // In window.
	MeanAspectRatio              float64
	MeanSideLength               float64 // In window (m).
	MinSideLength                float64
	MaxSideLength                float64
}

// ComputeWindowStatistics returns the statistics of the provided window. The
// in-window values are NaN when no window was found.
func ComputeWindowStatistics(samples []GeometrySample, w AccessWindow) WindowStatistics {
	stats := WindowStatistics{
		Duration:                     w.Duration(),
		MaxGroundDistanceFullHorizon: math.NaN(),
		MinGroundDistanceFullHorizon: math.NaN(),
	}
	if len(samples) > 0 {
		full := make([]float64, len(samples))
		for i, s := range samples {
			full[i] = s.CentroidGroundDistance
		}
		stats.MaxGroundDistanceFullHorizon = floats.Max(full)
		stats.MinGroundDistanceFullHorizon = floats.Min(full)
	}
	if !w.found {
		nan := math.NaN()
		stats.MaxGroundDistanceInWindow, stats.MinGroundDistanceInWindow = nan, nan
		stats.MaxAspectRatio, stats.MeanAspectRatio = nan, nan
		stats.MeanSideLength, stats.MinSideLength, stats.MaxSideLength = nan, nan, nan
		return stats
	}
	ground := make([]float64, len(w.samples))
	aspect := make([]float64, len(w.samples))
	sides := make([]float64, 0, 3*len(w.samples))
	for i, s := range w.samples {
		ground[i] = s.CentroidGroundDistance
		aspect[i] = s.Triangle.AspectRatio
		sides = append(sides, s.Triangle.Sides[:]...)
	}
	stats.MaxGroundDistanceInWindow = floats.Max(ground)
	stats.MinGroundDistanceInWindow = floats.Min(ground)
	stats.MaxAspectRatio = floats.Max(aspect)
	stats.MeanAspectRatio = floats.Sum(aspect) / float64(len(aspect))
	stats.MeanSideLength = floats.Sum(sides) / float64(len(sides))
	stats.MinSideLength = floats.Min(sides)
	stats.MaxSideLength = floats.Max(sides)
	return stats
}

// ApplyCriteria returns a copy of the samples with their compliance recomputed.
func ApplyCriteria(samples []GeometrySample, c Criteria) []GeometrySample {
	out := make([]GeometrySample, len(samples))
	for i, s := range samples {
		out[i] = s.WithCriteria(c)
	}
	return out
}
