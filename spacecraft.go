package trident

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// DragProperties are the aerodynamic properties of a spacecraft.
type DragProperties struct {
	Cd   float64 // Drag coefficient
	Area float64 // Cross section (m^2)
	Mass float64 // Mass (kg)
}

// Ballistic returns Cd·A/m in m^2/kg.
func (d DragProperties) Ballistic() float64 {
	if d.Mass <= 0 {
		return 0
	}
	return d.Cd * d.Area / d.Mass
}

// WithCd returns a copy of these properties with the provided drag coefficient.
func (d DragProperties) WithCd(cd float64) DragProperties {
	d.Cd = cd
	return d
}

func (d DragProperties) validate(field string) error {
	if d.Cd < 0 || d.Area < 0 || d.Mass < 0 {
		return configErr(field, "drag properties must not be negative: %+v", d)
	}
	if d.Area > 0 && d.Mass == 0 {
		return configErr(field, "mass must be positive when the drag area is set")
	}
	return nil
}

// Spacecraft is one member of the formation. The ideal elements are set at
// creation and define the reference trajectory; only the actual state changes,
// and every change yields a new Spacecraft value.
type Spacecraft struct {
	id     string
	plane  string
	ideal  OrbitalElements
	actual CartesianState
	drag   DragProperties
}

// NewSpacecraft returns a new spacecraft.
func NewSpacecraft(id, plane string, ideal OrbitalElements, actual CartesianState, drag DragProperties) (Spacecraft, error) {
	if id == "" {
		return Spacecraft{}, configErr("spacecraft", "identifier must not be empty")
	}
	if ideal.IsZero() {
		return Spacecraft{}, configErr(id, "ideal elements are not set")
	}
	if actual.frame != ECI {
		return Spacecraft{}, configErr(id, "actual state must be inertial, got %s", actual.frame)
	}
	if err := drag.validate(id); err != nil {
		return Spacecraft{}, err
	}
	return Spacecraft{id, plane, ideal, actual, drag}, nil
}

// ID returns the identifier of this spacecraft.
func (sc Spacecraft) ID() string { return sc.id }

// Plane returns the plane label.
func (sc Spacecraft) Plane() string { return sc.plane }

// Ideal returns the reference elements.
func (sc Spacecraft) Ideal() OrbitalElements { return sc.ideal }

// Actual returns the actual, post maneuver, state.
func (sc Spacecraft) Actual() CartesianState { return sc.actual }

// Drag returns the aerodynamic properties.
func (sc Spacecraft) Drag() DragProperties { return sc.drag }

// WithActual returns a copy of the spacecraft at a new actual state.
func (sc Spacecraft) WithActual(s CartesianState) Spacecraft {
	sc.actual = s
	return sc
}

// WithDrag returns a copy of the spacecraft with new drag properties.
func (sc Spacecraft) WithDrag(d DragProperties) Spacecraft {
	sc.drag = d
	return sc
}

// WithΔv returns a copy of the spacecraft after an impulsive burn.
func (sc Spacecraft) WithΔv(Δv r3.Vec) Spacecraft {
	sc.actual = sc.actual.WithΔv(Δv)
	return sc
}

func (sc Spacecraft) String() string {
	return fmt.Sprintf("%s (plane %s) %s", sc.id, sc.plane, sc.actual)
}
