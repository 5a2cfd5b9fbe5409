package leosim

import (
	"math"
	"testing"
	"time"

	"github.com/ChristopherRabotin/ode"
	"github.com/gonum/floats"
)

func TestKeplerCircular(t *testing.T) {
	// At e=0 the very first Newton step is a no-op and E == M exactly.
	for _, M := range []float64{0, 0.1, 1, math.Pi, 5} {
		E, converged := SolveKepler(M, 0)
		if E != M {
			t.Fatalf("E=%v != M=%v at e=0", E, M)
		}
		if !converged {
			t.Fatal("circular case must converge")
		}
	}
}

func TestKeplerConvergence(t *testing.T) {
	for e := 0.0; e <= 0.1; e += 0.01 {
		for M := 0.0; M < 2*math.Pi; M += 0.1 {
			E, converged := SolveKepler(M, e)
			if !converged {
				t.Fatalf("no convergence for M=%f e=%f", M, e)
			}
			if !floats.EqualWithinAbs(E-e*math.Sin(E), M, 1e-12) {
				t.Fatalf("residual too large for M=%f e=%f", M, e)
			}
		}
	}
}

func TestOrbitRadiusInvariant(t *testing.T) {
	orbit := OrbitParams{SemiMajorAxis: EarthRadius + 550, Eccentricity: 0.05, Inclination: 53, RAAN: 40, ArgPerigee: 30, MeanAnomaly0: 15}
	for tm := 0.0; tm < 6000; tm += 97 {
		M := orbit.MeanAnomaly0*deg2rad + orbit.MeanMotion()*tm
		E, _ := SolveKepler(M, orbit.Eccentricity)
		expR := orbit.SemiMajorAxis * (1 - orbit.Eccentricity*math.Cos(E))
		if !floats.EqualWithinAbs(Norm(orbit.ECIAt(tm)), expR, 1e-6) {
			t.Fatalf("radius invariant broken at t=%f", tm)
		}
		// The sidereal rotation to ECEF preserves the radius.
		if !floats.EqualWithinAbs(Norm(orbit.ECEFAt(tm, 0.7)), expR, 1e-6) {
			t.Fatalf("ECEF radius invariant broken at t=%f", tm)
		}
	}
}

func TestOrbitPeriod(t *testing.T) {
	orbit := OrbitParams{SemiMajorAxis: EarthRadius + 550, Eccentricity: 0, Inclination: 53}
	period := orbit.Period()
	if period < 90*time.Minute || period > 100*time.Minute {
		t.Fatalf("550 km LEO period out of expected band: %s", period)
	}
	// One full period returns to the starting ECI position.
	p0 := orbit.ECIAt(0)
	p1 := orbit.ECIAt(period.Seconds())
	if !floats.EqualWithinAbs(Dist(p0, p1), 0, 1e-3) {
		t.Fatalf("orbit did not close after one period: %f km apart", Dist(p0, p1))
	}
}

func TestGeoECEFRoundTrip(t *testing.T) {
	cases := []struct{ lat, lon, alt float64 }{
		{0, 0, 0},
		{40.0093, -105.2669, 1.6},
		{-35.398333, 148.981944, 0.691750},
		{78.92, 11.93, 0.02},
	}
	for _, c := range cases {
		ecef := GEO2ECEF(c.alt, c.lat*deg2rad, c.lon*deg2rad)
		alt, lat, lon := ECEF2GEO(ecef)
		if !floats.EqualWithinAbs(lat*rad2deg, c.lat, 1e-9) {
			t.Fatalf("latitude round trip fail for %+v", c)
		}
		if !floats.EqualWithinAbs(lon*rad2deg, c.lon, 1e-9) {
			t.Fatalf("longitude round trip fail for %+v", c)
		}
		if !floats.EqualWithinAbs(alt, c.alt, 1e-9) {
			t.Fatalf("altitude round trip fail for %+v", c)
		}
	}
}

func TestECIECEFRoundTrip(t *testing.T) {
	v := []float64{4000, -2500, 5000}
	for _, θ := range []float64{0, 0.5, math.Pi, 4.2} {
		back := ECEF2ECI(ECI2ECEF(v, θ), θ)
		if !vectorsEqual(back, v) {
			t.Fatalf("ECI<->ECEF round trip fail for θ=%f", θ)
		}
	}
}

func TestGSTAtJ2000(t *testing.T) {
	// Vallado: GMST at the J2000 epoch is 280.4606 degrees.
	θ := GSTAtEpoch(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	if !floats.EqualWithinAbs(θ*rad2deg, 280.4606, 1e-3) {
		t.Fatalf("GMST at J2000 = %f deg", θ*rad2deg)
	}
}

// twoBody integrates the unperturbed Cartesian equations of motion.
type twoBody struct {
	state []float64
	until float64
}

func (tb *twoBody) GetState() []float64 { return tb.state }

func (tb *twoBody) SetState(t float64, s []float64) { copy(tb.state, s) }

func (tb *twoBody) Stop(t float64) bool { return t >= tb.until }

func (tb *twoBody) Func(t float64, f []float64) []float64 {
	r := math.Pow(f[0]*f[0]+f[1]*f[1]+f[2]*f[2], 1.5)
	k := -EarthMu / r
	return []float64{f[3], f[4], f[5], k * f[0], k * f[1], k * f[2]}
}

func TestKeplerVsRK4(t *testing.T) {
	// Closed-form propagation against a numerical two-body integration. Both
	// must hold the circular radius and speed over ten minutes.
	orbit := OrbitParams{SemiMajorAxis: EarthRadius + 550, Eccentricity: 0, Inclination: 53, RAAN: 10}
	R, V := orbit.ECIStateAt(0)
	tb := &twoBody{state: []float64{R[0], R[1], R[2], V[0], V[1], V[2]}, until: 600}
	ode.NewRK4(0, 1, tb).Solve()

	a := orbit.SemiMajorAxis
	vCirc := math.Sqrt(EarthMu / a)
	intR := tb.state[:3]
	intV := tb.state[3:]
	if !floats.EqualWithinAbs(Norm(intR), a, 1e-3) {
		t.Fatalf("integrated radius drifted: %f km vs %f km", Norm(intR), a)
	}
	if !floats.EqualWithinAbs(Norm(intV), vCirc, 1e-6) {
		t.Fatalf("integrated speed drifted: %f km/s vs %f km/s", Norm(intV), vCirc)
	}
	if !floats.EqualWithinAbs(Norm(orbit.ECIAt(600)), a, 1e-6) {
		t.Fatal("closed form radius drifted")
	}
}
