package leosim

import (
	"math"
	"time"

	"github.com/gonum/floats"
	"github.com/soniakeys/meeus/julian"
)

const (
	// EarthMu is the Earth gravitational parameter in km^3/s^2.
	EarthMu = 398600.4418
	// EarthRadius is the spherical Earth radius in km. The simulator runs on a
	// spherical Earth; geodetic flattening is not modelled.
	EarthRadius = 6371.0
	// EarthRotationRate is the Earth sidereal rotation rate in rad/s.
	EarthRotationRate = 7.2921159e-5
	// LightSpeed is the speed of light in km/s.
	LightSpeed = 299792.458

	// keplerIterations bounds the Newton-Raphson loop. Ten steps reach well
	// below 1e-12 for e <= 0.1 and keep the solver deterministic.
	keplerIterations = 10
	keplerTolerance  = 1e-10
)

// OrbitParams defines a Keplerian orbit by its classical elements.
// All angles are stored in degrees, the way scenarios provide them.
type OrbitParams struct {
	SemiMajorAxis float64 // a, km
	Eccentricity  float64 // e, in [0,1)
	Inclination   float64 // i, deg
	RAAN          float64 // Ω, deg
	ArgPerigee    float64 // ω, deg
	MeanAnomaly0  float64 // M0, deg, mean anomaly at epoch
}

// MeanMotion returns the mean motion n in rad/s.
func (o OrbitParams) MeanMotion() float64 {
	a := o.SemiMajorAxis
	return math.Sqrt(EarthMu / (a * a * a))
}

// Period returns the orbital period.
func (o OrbitParams) Period() time.Duration {
	secs := 2 * math.Pi / o.MeanMotion()
	return time.Duration(secs * float64(time.Second))
}

// SolveKepler solves M = E - e·sinE for E via Newton-Raphson with E0 = M and a
// fixed iteration bound. The second return reports whether the residual ended
// below tolerance; callers keep the last iterate either way.
func SolveKepler(M, e float64) (E float64, converged bool) {
	E = M
	for i := 0; i < keplerIterations; i++ {
		sinE, cosE := math.Sincos(E)
		E -= (E - e*sinE - M) / (1 - e*cosE)
	}
	resid := E - e*math.Sin(E) - M
	return E, floats.EqualWithinAbs(resid, 0, keplerTolerance)
}

// eciAt returns the ECI position (km) at t seconds past epoch, plus the Kepler
// solver convergence flag.
func (o OrbitParams) eciAt(t float64) ([]float64, bool) {
	e := o.Eccentricity
	M := o.MeanAnomaly0*deg2rad + o.MeanMotion()*t
	E, converged := SolveKepler(M, e)
	sinE, cosE := math.Sincos(E)
	ν := math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)
	r := o.SemiMajorAxis * (1 - e*cosE)
	u := ν + o.ArgPerigee*deg2rad
	i := o.Inclination * deg2rad
	Ω := o.RAAN * deg2rad
	// In-plane radius vector rotated plane->ECI, Vallado COE2RV with u folded in.
	return applyRot(planeToECI(u, i, Ω), []float64{r, 0, 0}), converged
}

// ECIAt returns the ECI position in km at t seconds past epoch.
func (o OrbitParams) ECIAt(t float64) []float64 {
	pos, _ := o.eciAt(t)
	return pos
}

// ECIStateAt returns the ECI position and velocity at t seconds past epoch.
// Algorithm from Vallado, 4th edition, page 118 (COE2RV).
func (o OrbitParams) ECIStateAt(t float64) (R, V []float64) {
	e := o.Eccentricity
	M := o.MeanAnomaly0*deg2rad + o.MeanMotion()*t
	E, _ := SolveKepler(M, e)
	sinE, cosE := math.Sincos(E)
	ν := math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)
	i := o.Inclination * deg2rad
	Ω := o.RAAN * deg2rad
	ω := o.ArgPerigee * deg2rad
	p := o.SemiMajorAxis * (1 - e*e)
	sinν, cosν := math.Sincos(ν)
	rNorm := p / (1 + e*cosν)
	rPQW := []float64{rNorm * cosν, rNorm * sinν, 0}
	μOp := math.Sqrt(EarthMu / p)
	vPQW := []float64{-μOp * sinν, μOp * (e + cosν), 0}
	toECI := planeToECI(ω, i, Ω)
	R = applyRot(toECI, rPQW)
	V = applyRot(toECI, vPQW)
	return
}

// ECEFAt returns the ECEF position at t seconds past epoch, with θgst0 the
// Greenwich sidereal angle at epoch.
func (o OrbitParams) ECEFAt(t, θgst0 float64) []float64 {
	pos, _ := o.ecefAt(t, θgst0)
	return pos
}

func (o OrbitParams) ecefAt(t, θgst0 float64) ([]float64, bool) {
	eci, converged := o.eciAt(t)
	return ECI2ECEF(eci, θgst0+EarthRotationRate*t), converged
}

// ECI2ECEF rotates an ECI vector to ECEF for a given Greenwich sidereal angle.
func ECI2ECEF(v []float64, θgst float64) []float64 {
	return applyRot(rotZ(θgst), v)
}

// ECEF2ECI rotates an ECEF vector to ECI for a given Greenwich sidereal angle.
func ECEF2ECI(v []float64, θgst float64) []float64 {
	return applyRot(rotZ(-θgst), v)
}

// GEO2ECEF converts geographic coordinates to ECEF on the spherical Earth.
// Angles in radians, altitude in km.
func GEO2ECEF(altitude, latΦ, longθ float64) []float64 {
	r := EarthRadius + altitude
	sΦ, cΦ := math.Sincos(latΦ)
	sθ, cθ := math.Sincos(longθ)
	return []float64{r * cΦ * cθ, r * cΦ * sθ, r * sΦ}
}

// ECEF2GEO converts an ECEF position to geographic coordinates on the
// spherical Earth. Angles in radians, altitude in km.
func ECEF2GEO(v []float64) (altitude, latΦ, longθ float64) {
	r := Norm(v)
	latΦ = math.Asin(v[2] / r)
	longθ = math.Atan2(v[1], v[0])
	altitude = r - EarthRadius
	return
}

// GSTAtEpoch returns the Greenwich mean sidereal angle (radians) for a given
// date, using the IAU 1982 polynomial on the Julian day (Vallado, page 188).
func GSTAtEpoch(dt time.Time) float64 {
	jd := julian.TimeToJD(dt.UTC())
	T := (jd - 2451545.0) / 36525
	secs := 67310.54841 + (876600*3600+8640184.812866)*T + 0.093104*T*T - 6.2e-6*T*T*T
	secs = math.Mod(secs, 86400)
	if secs < 0 {
		secs += 86400
	}
	// 86400 sidereal seconds span a full turn.
	return secs * (2 * math.Pi / 86400)
}
