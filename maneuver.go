package trident

import (
	"fmt"
	"time"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r3"
)

// ManeuverPhase tells why a maneuver was performed.
type ManeuverPhase uint8

const (
	// Acquisition maneuvers bring a spacecraft onto its ideal trajectory for the first time.
	Acquisition ManeuverPhase = iota + 1
	// Maintenance maneuvers correct the drift once the spacecraft was acquired.
	Maintenance
	// Commanded maneuvers are scheduled by the operator.
	Commanded
)

func (p ManeuverPhase) String() string {
	switch p {
	case Acquisition:
		return "acquisition"
	case Maintenance:
		return "maintenance"
	case Commanded:
		return "commanded"
	}
	return fmt.Sprintf("ManeuverPhase(%d)", uint8(p))
}

// ManeuverEvent is an impulsive burn which was applied.
type ManeuverEvent struct {
	Time       time.Time
	Spacecraft string
	Δv         r3.Vec // ECI
	Magnitude  float64
	Phase      ManeuverPhase
	Elements   OrbitalElements // Osculating elements right after the burn.
}

func (e ManeuverEvent) String() string {
	return fmt.Sprintf("%s %s %s Δv=%.4f m/s", e.Time.Format(time.RFC3339), e.Spacecraft, e.Phase, e.Magnitude)
}

// ManeuverLog is an append only record of the maneuvers of a run.
// The zero value is an empty log.
type ManeuverLog struct {
	events []ManeuverEvent
}

// Append records a new event.
func (l *ManeuverLog) Append(e ManeuverEvent) {
	l.events = append(l.events, e)
}

// Len returns the number of events.
func (l *ManeuverLog) Len() int { return len(l.events) }

// Events returns a copy of all the events, in the order they were appended.
func (l *ManeuverLog) Events() []ManeuverEvent {
	out := make([]ManeuverEvent, len(l.events))
	copy(out, l.events)
	return out
}

// ForSpacecraft returns a copy of the events of one spacecraft.
func (l *ManeuverLog) ForSpacecraft(id string) []ManeuverEvent {
	var out []ManeuverEvent
	for _, e := range l.events {
		if e.Spacecraft == id {
			out = append(out, e)
		}
	}
	return out
}

// TotalΔv returns the sum of the burn magnitudes of a spacecraft, optionally
// restricted to the provided phases.
func (l *ManeuverLog) TotalΔv(id string, phases ...ManeuverPhase) float64 {
	var total float64
	for _, e := range l.events {
		if e.Spacecraft != id {
			continue
		}
		if len(phases) > 0 && !slices.Contains(phases, e.Phase) {
			continue
		}
		total += e.Magnitude
	}
	return total
}

// PlannedManeuver is an operator commanded impulsive burn.
type PlannedManeuver struct {
	Time       time.Time
	Spacecraft string
	Δv         r3.Vec
	// Frame of Δv: ECI, or LVLH for the radial/along-track/cross-track frame
	// of the spacecraft itself. ECI if unset.
	Frame Frame
}

// inertialΔv returns the Δv of this maneuver in ECI for the provided spacecraft state.
func (m PlannedManeuver) inertialΔv(s CartesianState) (r3.Vec, error) {
	switch m.Frame {
	case 0, ECI:
		return m.Δv, nil
	case LVLH:
		f, err := NewLVLHFrame(s)
		if err != nil {
			return r3.Vec{}, err
		}
		return MxV33(f.dcm.T(), m.Δv), nil
	}
	return r3.Vec{}, configErr("Maneuvers", "unsupported Δv frame %s", m.Frame)
}
