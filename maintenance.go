package trident

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Year is the Julian year used to annualize the Δv.
const Year = time.Duration(365.25 * 24 * float64(time.Hour))

// SpacecraftBudget is the Δv consumption of one spacecraft.
type SpacecraftBudget struct {
	ID          string
	Acquisition float64 // m/s, one off
	Maintenance float64 // m/s over the simulated duration
	Commanded   float64 // m/s over the simulated duration
	Total       float64 // m/s over the simulated duration
	Annual      float64 // m/s per year
	Maneuvers   int
	Margin      float64 // Cap - Annual
	Pass        bool
}

// DeltaVReport is the Δv budget of a run.
type DeltaVReport struct {
	Spacecraft []SpacecraftBudget
	Simulated  time.Duration
	Cap        float64 // m/s per year and per spacecraft
	MeanAnnual float64
	MaxAnnual  float64
	Margin     float64 // Cap - MaxAnnual
	Pass       bool
}

// DeltaVBudget aggregates the maneuvers of a run per spacecraft. The annual
// Δv is the acquisition Δv plus the recurring (maintenance and commanded) Δv
// extrapolated from the simulated duration to one year.
func DeltaVBudget(events []ManeuverEvent, ids []string, simulated time.Duration, cap float64) (DeltaVReport, error) {
	if simulated <= 0 {
		return DeltaVReport{}, configErr("simulated duration", "must be positive, got %s", simulated)
	}
	if !(cap > 0) {
		return DeltaVReport{}, configErr("Budgets.AnnualDeltaVCap", "must be positive, got %g", cap)
	}
	if len(ids) == 0 {
		return DeltaVReport{}, configErr("spacecraft", "no spacecraft to budget")
	}
	index := make(map[string]int, len(ids))
	budgets := make([]SpacecraftBudget, len(ids))
	for i, id := range ids {
		index[id] = i
		budgets[i].ID = id
	}
	for _, e := range events {
		i, ok := index[e.Spacecraft]
		if !ok {
			return DeltaVReport{}, configErr("maneuver", "unknown spacecraft %s", e.Spacecraft)
		}
		b := &budgets[i]
		switch e.Phase {
		case Acquisition:
			b.Acquisition += e.Magnitude
		case Maintenance:
			b.Maintenance += e.Magnitude
		default:
			b.Commanded += e.Magnitude
		}
		b.Maneuvers++
	}
	scale := float64(Year) / float64(simulated)
	annual := make([]float64, len(budgets))
	for i := range budgets {
		b := &budgets[i]
		b.Total = b.Acquisition + b.Maintenance + b.Commanded
		b.Annual = b.Acquisition + (b.Maintenance+b.Commanded)*scale
		b.Margin = cap - b.Annual
		b.Pass = b.Annual <= cap
		annual[i] = b.Annual
	}
	max := floats.Max(annual)
	return DeltaVReport{
		Spacecraft: budgets,
		Simulated:  simulated,
		Cap:        cap,
		MeanAnnual: floats.Sum(annual) / float64(len(annual)),
		MaxAnnual:  max,
		Margin:     cap - max,
		Pass:       !math.IsNaN(max) && max <= cap,
	}, nil
}
