package trident

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Planes lists the plane labels of the formation, in spacecraft order.
var Planes = [3]string{"A", "B", "C"}

// SpacecraftID returns the identifier of the spacecraft in the provided plane.
func SpacecraftID(plane string) string {
	return "SC-" + plane
}

// GCOffset returns the LVLH state of a spacecraft at phase β on a general
// circular relative orbit of radius ρ about a chief of mean motion n. The
// relative orbit is bounded (no secular along-track drift) and keeps its
// members at a constant distance ρ from the chief to first order.
func GCOffset(ρ, β, n float64) (r3.Vec, r3.Vec) {
	sβ, cβ := math.Sincos(β)
	h := math.Sqrt(3) / 2
	pos := r3.Vec{X: ρ / 2 * cβ, Y: -ρ * sβ, Z: h * ρ * cβ}
	vel := r3.Vec{X: -ρ / 2 * n * sβ, Y: -ρ * n * cβ, Z: -h * ρ * n * sβ}
	return pos, vel
}

// NewTriangleFormation returns the three spacecraft of the formation at the
// start epoch. They are 120° apart on a general circular orbit around the
// reference, so that they form an equilateral triangle of the configured side
// centred on the reference position. Each velocity is then rescaled so that
// every spacecraft has exactly the semi-major axis of the reference.
func NewTriangleFormation(cfg FormationConfiguration, prop Propagator) ([]Spacecraft, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chief, err := prop.PropagateElements(cfg.Reference, cfg.Drag, cfg.Start)
	if err != nil {
		return nil, err
	}
	chiefOE, err := StateToElements(chief, cfg.Body)
	if err != nil {
		return nil, err
	}
	frame, err := NewLVLHFrame(chief)
	if err != nil {
		return nil, err
	}
	μ := cfg.Body.GM()
	a := chiefOE.A()
	n := chiefOE.MeanMotion(cfg.Body)
	ρ := cfg.SideLength / math.Sqrt(3)
	fleet := make([]Spacecraft, 0, len(Planes))
	for k, plane := range Planes {
		β := cfg.FormationPhase + float64(k)*twoPi/3
		pos, vel := GCOffset(ρ, β, n)
		s := frame.ToECI(NewCartesianState(pos, vel, cfg.Start, LVLH))
		vMatch := math.Sqrt(μ * (2/s.RNorm() - 1/a))
		s = s.WithVelocity(r3.Scale(vMatch/s.VNorm(), s.v))
		ideal, err := StateToElements(s, cfg.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "plane %s", plane)
		}
		sc, err := NewSpacecraft(SpacecraftID(plane), plane, ideal, s, cfg.Drag)
		if err != nil {
			return nil, err
		}
		fleet = append(fleet, sc)
	}
	return fleet, nil
}
