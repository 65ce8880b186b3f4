package trident

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// LVLHFrame is the local-vertical/local-horizontal frame of a chief state:
// x is radial outward, z is along the orbit normal and y completes the triad
// (along-track for circular orbits).
type LVLHFrame struct {
	chief CartesianState
	dcm   *mat.Dense // rows are the x, y and z axes expressed in ECI
	ω     r3.Vec     // frame angular velocity, in LVLH
}

// NewLVLHFrame returns the LVLH frame attached to the provided inertial chief state.
func NewLVLHFrame(chief CartesianState) (LVLHFrame, error) {
	if chief.frame != ECI {
		return LVLHFrame{}, configErr("chief", "LVLH requires an ECI chief, got %s", chief.frame)
	}
	h := r3.Cross(chief.r, chief.v)
	r := norm(chief.r)
	hNorm := norm(h)
	if r == 0 || hNorm == 0 {
		return LVLHFrame{}, configErr("chief", "degenerate chief state (rectilinear motion)")
	}
	xHat := r3.Scale(1/r, chief.r)
	zHat := r3.Scale(1/hNorm, h)
	yHat := r3.Cross(zHat, xHat)
	dcm := mat.NewDense(3, 3, []float64{
		xHat.X, xHat.Y, xHat.Z,
		yHat.X, yHat.Y, yHat.Z,
		zHat.X, zHat.Y, zHat.Z,
	})
	return LVLHFrame{chief, dcm, r3.Vec{Z: hNorm / (r * r)}}, nil
}

// Chief returns the state this frame is attached to.
func (f LVLHFrame) Chief() CartesianState { return f.chief }

// DCM returns a copy of the ECI to LVLH direction cosine matrix.
func (f LVLHFrame) DCM() *mat.Dense { return mat.DenseCopyOf(f.dcm) }

// ToLVLH returns the state of the deputy relative to the chief, expressed and
// differentiated in the rotating frame.
func (f LVLHFrame) ToLVLH(deputy CartesianState) CartesianState {
	ρ := MxV33(f.dcm, r3.Sub(deputy.r, f.chief.r))
	ρDot := r3.Sub(MxV33(f.dcm, r3.Sub(deputy.v, f.chief.v)), r3.Cross(f.ω, ρ))
	return CartesianState{ρ, ρDot, deputy.epoch, LVLH}
}

// ToECI is the exact inverse of ToLVLH.
func (f LVLHFrame) ToECI(rel CartesianState) CartesianState {
	r := r3.Add(f.chief.r, MxV33(f.dcm.T(), rel.r))
	v := r3.Add(f.chief.v, MxV33(f.dcm.T(), r3.Add(rel.v, r3.Cross(f.ω, rel.r))))
	return CartesianState{r, v, rel.epoch, ECI}
}

// ECIToLVLH returns the relative state of the deputy in the LVLH frame of the chief.
func ECIToLVLH(deputy, chief CartesianState) (CartesianState, error) {
	f, err := NewLVLHFrame(chief)
	if err != nil {
		return CartesianState{}, err
	}
	if deputy.frame != ECI {
		return CartesianState{}, configErr("deputy", "expected an ECI state, got %s", deputy.frame)
	}
	return f.ToLVLH(deputy), nil
}

// LVLHToECI returns the inertial state of a deputy given its LVLH state relative to the chief.
func LVLHToECI(rel, chief CartesianState) (CartesianState, error) {
	f, err := NewLVLHFrame(chief)
	if err != nil {
		return CartesianState{}, err
	}
	if rel.frame != LVLH {
		return CartesianState{}, configErr("relative state", "expected an LVLH state, got %s", rel.frame)
	}
	return f.ToECI(rel), nil
}
