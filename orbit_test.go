package trident

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

var testEpoch = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestOrbitRV2COE(t *testing.T) {
	// Vallado example 2-5, in meters.
	R := r3.Vec{X: 6524.834e3, Y: 6862.875e3, Z: 6448.296e3}
	V := r3.Vec{X: 4.901327e3, Y: 5.533756e3, Z: -1.976341e3}
	o, err := StateToElements(NewCartesianState(R, V, testEpoch, ECI), EarthWGS84())
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinRel(o.A(), 36127.343e3, 1e-6) {
		t.Fatalf("a=%f", o.A())
	}
	if !scalar.EqualWithinAbs(o.E(), 0.832853, 1e-6) {
		t.Fatalf("e=%f", o.E())
	}
	valladoε := 1e-5
	for name, pair := range map[string][2]float64{
		"i": {Rad2deg(o.I()), 87.869126},
		"Ω": {Rad2deg(o.RAAN()), 227.898260},
		"ω": {Rad2deg(o.ArgPerigee()), 53.384931},
	} {
		if !scalar.EqualWithinAbs(pair[0], pair[1], valladoε) {
			t.Fatalf("%s=%f expected %f", name, pair[0], pair[1])
		}
	}
	ν, err := o.TrueAnomaly()
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(Rad2deg(ν), 92.335157, valladoε) {
		t.Fatalf("ν=%f", Rad2deg(ν))
	}
}

func TestOrbitRoundTrip(t *testing.T) {
	earth := EarthWGS84()
	cases := []struct {
		a, e, i, Ω, ω, M float64
	}{
		{6898137, 0, 97.7, 30, 0, 10},
		{6898137, 1e-3, 97.7, 354.2, 91, 271},
		{7000e3, 0.1, 45, 120, 250, 5},
		{26560e3, 0.7, 63.4, 270, 270, 180},
		{6778e3, 5e-4, 51.6, 0.3, 10, 359.9},
	}
	for _, c := range cases {
		o0, err := NewOrbitalElements(c.a, c.e, c.i*deg2rad, c.Ω*deg2rad, c.ω*deg2rad, c.M*deg2rad, testEpoch)
		if err != nil {
			t.Fatal(err)
		}
		s, err := ElementsToState(o0, earth)
		if err != nil {
			t.Fatal(err)
		}
		o1, err := StateToElements(s, earth)
		if err != nil {
			t.Fatal(err)
		}
		if ok, err := o0.Equals(o1, 1e-9); !ok {
			t.Logf("\no0: %s\no1: %s", o0, o1)
			t.Fatalf("round trip failed: %s", err)
		}
		s1, _ := ElementsToState(o1, earth)
		if d := distance(s.R(), s1.R()); d > 1e-3 {
			t.Fatalf("position round trip off by %g m", d)
		}
		if d := distance(s.V(), s1.V()); d > 1e-6 {
			t.Fatalf("velocity round trip off by %g m/s", d)
		}
	}
}

func TestOrbitSpecialCases(t *testing.T) {
	earth := EarthWGS84()
	// Circular equatorial: only the state itself is meaningful.
	for _, e := range []float64{0, 0.01} {
		for _, i := range []float64{0, math.Pi} {
			o0, _ := NewOrbitalElements(7000e3, e, i, 0.5, 0.7, 1.1, testEpoch)
			s0, err := ElementsToState(o0, earth)
			if err != nil {
				t.Fatal(err)
			}
			o1, err := StateToElements(s0, earth)
			if err != nil {
				t.Fatal(err)
			}
			if d := math.Abs(o1.I() - i); d > 1e-12 {
				t.Fatalf("e=%f i=%f: inclination off by %g rad", e, i, d)
			}
			s1, _ := ElementsToState(o1, earth)
			if d := distance(s0.R(), s1.R()); d > 1e-3 {
				t.Fatalf("e=%f i=%f: position round trip off by %g m", e, i, d)
			}
			if d := distance(s0.V(), s1.V()); d > 1e-6 {
				t.Fatalf("e=%f i=%f: velocity round trip off by %g m/s", e, i, d)
			}
		}
	}
}

func TestOrbitValidation(t *testing.T) {
	// The first invalid angle is reported.
	for k := 0; k < 10; k++ {
		_, err := NewOrbitalElements(7000e3, 0, 0, math.NaN(), math.Inf(1), math.NaN(), testEpoch)
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "RAAN" {
			t.Fatalf("expected a RAAN error, got %v", err)
		}
	}
	for _, c := range [][3]float64{{-1, 0, 0}, {7000e3, 1, 0}, {7000e3, -0.1, 0}, {7000e3, 0, 4}, {math.NaN(), 0, 0}} {
		if _, err := NewOrbitalElements(c[0], c[1], c[2], 0, 0, 0, testEpoch); KindOf(err) != FailureConfiguration {
			t.Fatalf("%v: expected configuration error, got %v", c, err)
		}
	}
	// Hyperbolic states are rejected.
	s := NewCartesianState(r3.Vec{X: 7000e3}, r3.Vec{Y: 12e3}, testEpoch, ECI)
	if _, err := StateToElements(s, EarthWGS84()); KindOf(err) != FailurePropagation {
		t.Fatalf("expected propagation error, got %v", err)
	}
	if _, err := StateToElements(NewCartesianState(r3.Vec{X: 7000e3}, r3.Vec{Y: 7e3}, testEpoch, ECEF), EarthWGS84()); KindOf(err) != FailureConfiguration {
		t.Fatalf("expected frame error, got %v", err)
	}
}

func TestOrbitImmutability(t *testing.T) {
	o0, _ := NewOrbitalElements(6898137, 1e-3, 97.7*deg2rad, 1, 2, 3, testEpoch)
	o1 := o0.WithRAAN(2).WithMeanAnomaly(4).WithEpoch(testEpoch.Add(time.Hour))
	if o0.RAAN() != 1 || o0.MeanAnomaly() != 3 || !o0.Epoch().Equal(testEpoch) {
		t.Fatal("original elements were modified")
	}
	if o1.RAAN() != 2 || o1.MeanAnomaly() != 4 {
		t.Fatal("updated elements are wrong")
	}
	if _, err := o0.WithSemiMajorAxis(-1); err == nil {
		t.Fatal("expected invalid semi-major axis to be rejected")
	}
	s0 := NewCartesianState(r3.Vec{X: 7e6}, r3.Vec{Y: 7e3}, testEpoch, ECI)
	s1 := s0.WithΔv(r3.Vec{Z: 1})
	if s0.V().Z != 0 || s1.V().Z != 1 {
		t.Fatal("Δv must not alter the original state")
	}
}

func TestOrbitPeriod(t *testing.T) {
	o, _ := NewOrbitalElements(6898137, 0, 97.7*deg2rad, 0, 0, 0, testEpoch)
	P := o.Period(EarthWGS84()).Seconds()
	exp := twoPi * math.Sqrt(math.Pow(6898137, 3)/3.986004418e14)
	if !scalar.EqualWithinAbs(P, exp, 1e-6) {
		t.Fatalf("period=%f expected %f", P, exp)
	}
}
