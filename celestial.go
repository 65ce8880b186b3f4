package trident

import "fmt"

// CelestialObject defines the central body of the propagation.
// Its fields are unexported so that a value handed to the simulation cannot be
// altered halfway through a run; use EarthWGS84 to obtain one.
type CelestialObject struct {
	name       string
	radius     float64 // equatorial radius (m)
	μ          float64 // gravitational parameter (m^3/s^2)
	j2         float64
	flattening float64
	rotation   float64 // rotation rate (rad/s)
	meanRadius float64 // used for great circle distances (m)
}

// EarthWGS84 returns the Earth as used throughout the simulation.
func EarthWGS84() CelestialObject {
	return CelestialObject{
		name:       "Earth",
		radius:     6378137.0,
		μ:          3.986004418e14,
		j2:         1.08262668e-3,
		flattening: 1 / 298.257223563,
		rotation:   7.292115146706979e-5,
		meanRadius: 6371008.8,
	}
}

// Name returns the name of the object.
func (c CelestialObject) Name() string {
	return c.name
}

// GM returns μ (which is unexported because it's a lowercase letter)
func (c CelestialObject) GM() float64 {
	return c.μ
}

// Radius returns the equatorial radius in meters.
func (c CelestialObject) Radius() float64 {
	return c.radius
}

// MeanRadius returns the mean radius in meters.
func (c CelestialObject) MeanRadius() float64 {
	return c.meanRadius
}

// J2 returns the second zonal harmonic.
func (c CelestialObject) J2() float64 {
	return c.j2
}

// Flattening returns the ellipsoid flattening.
func (c CelestialObject) Flattening() float64 {
	return c.flattening
}

// RotationRate returns the sidereal rotation rate in rad/s.
func (c CelestialObject) RotationRate() float64 {
	return c.rotation
}

// Equals returns whether the provided celestial object is the same.
func (c CelestialObject) Equals(b CelestialObject) bool {
	return c == b
}

// IsZero returns whether this object was never initialized.
func (c CelestialObject) IsZero() bool {
	return c.μ == 0
}

// String implements the Stringer interface.
func (c CelestialObject) String() string {
	return fmt.Sprintf("%s body (μ=%.6e, R=%.1f m)", c.name, c.μ, c.radius)
}
