package trident

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r3"
)

// Perturbations defines which perturbing accelerations are added to the
// point mass gravity during a Cartesian propagation.
type Perturbations struct {
	J2           bool       // Second zonal harmonic of the central body.
	Drag         bool       // Atmospheric drag.
	Atmosphere   Atmosphere // Density model, defaults to the exponential atmosphere.
	DensityScale float64    // Multiplier on the modelled density, 1 if unset.
}

func (p Perturbations) isEmpty() bool {
	return !p.J2 && !p.Drag
}

// Perturb returns the perturbing acceleration (m/s^2) for the provided inertial position and velocity.
func (p Perturbations) Perturb(R, V r3.Vec, drag DragProperties, body CelestialObject) r3.Vec {
	var pert r3.Vec
	if p.isEmpty() {
		return pert
	}
	if p.J2 {
		x := R.X
		y := R.Y
		z := R.Z
		z2 := z * z
		z3 := z2 * z
		r2 := x*x + y*y + z2
		r252 := math.Pow(r2, 5/2.)
		r272 := math.Pow(r2, 7/2.)
		accJ2 := (3 / 2.) * body.J2() * body.Radius() * body.Radius() * body.GM()
		pert.X += accJ2 * (5*x*z2/r272 - x/r252)
		pert.Y += accJ2 * (5*y*z2/r272 - y/r252)
		pert.Z += accJ2 * (5*z3/r272 - 3*z/r252)
	}
	if p.Drag && drag.Mass > 0 && drag.Area > 0 {
		atm := p.Atmosphere
		if atm == nil {
			atm = ExponentialAtmosphere{}
		}
		scale := p.DensityScale
		if scale == 0 {
			scale = 1
		}
		ρ := scale * atm.Density(norm(R)-body.Radius())
		// The atmosphere co-rotates with the body.
		vRel := r3.Sub(V, r3.Cross(r3.Vec{Z: body.RotationRate()}, R))
		pert = r3.Add(pert, r3.Scale(-0.5*ρ*drag.Ballistic()*norm(vRel), vRel))
	}
	return pert
}

// Atmosphere returns the mass density (kg/m^3) at an altitude (m).
type Atmosphere interface {
	Density(altitude float64) float64
}

// ExponentialAtmosphere is the piecewise exponential model of Vallado, table 8-4.
type ExponentialAtmosphere struct{}

type atmosphereBand struct {
	base, ρ0, scaleHeight float64 // m, kg/m^3, m
}

var exponentialBands = []atmosphereBand{
	{0, 1.225, 7249},
	{25e3, 3.899e-2, 6349},
	{30e3, 1.774e-2, 6682},
	{40e3, 3.972e-3, 7554},
	{50e3, 1.057e-3, 8382},
	{60e3, 3.206e-4, 7714},
	{70e3, 8.770e-5, 6549},
	{80e3, 1.905e-5, 5799},
	{90e3, 3.396e-6, 5382},
	{100e3, 5.297e-7, 5877},
	{110e3, 9.661e-8, 7263},
	{120e3, 2.438e-8, 9473},
	{130e3, 8.484e-9, 12636},
	{140e3, 3.845e-9, 16149},
	{150e3, 2.070e-9, 22523},
	{180e3, 5.464e-10, 29740},
	{200e3, 2.789e-10, 37105},
	{250e3, 7.248e-11, 45546},
	{300e3, 2.418e-11, 53628},
	{350e3, 9.518e-12, 53298},
	{400e3, 3.725e-12, 58515},
	{450e3, 1.585e-12, 60828},
	{500e3, 6.967e-13, 63822},
	{600e3, 1.454e-13, 71835},
	{700e3, 3.614e-14, 88667},
	{800e3, 1.170e-14, 124640},
	{900e3, 5.245e-15, 181050},
	{1000e3, 3.019e-15, 268000},
}

// Density implements the Atmosphere interface.
func (ExponentialAtmosphere) Density(altitude float64) float64 {
	if altitude < 0 {
		altitude = 0
	}
	// Index of the first band above, less one.
	idx, _ := slices.BinarySearchFunc(exponentialBands, altitude, func(b atmosphereBand, h float64) int {
		if b.base > h {
			return 1
		}
		return -1
	})
	idx--
	band := exponentialBands[idx]
	return band.ρ0 * math.Exp(-(altitude-band.base)/band.scaleHeight)
}
