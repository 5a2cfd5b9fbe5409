package leosim

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

// Elementary frame rotations. Composed per call site: the propagator chains
// them into the orbital-plane to ECI transform and the ground stations into
// the ECEF to SEZ transform for elevation.

func rotX(θ float64) *mat64.Dense {
	s, c := math.Sincos(θ)
	return mat64.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, s,
		0, -s, c,
	})
}

func rotY(θ float64) *mat64.Dense {
	s, c := math.Sincos(θ)
	return mat64.NewDense(3, 3, []float64{
		c, 0, -s,
		0, 1, 0,
		s, 0, c,
	})
}

func rotZ(θ float64) *mat64.Dense {
	s, c := math.Sincos(θ)
	return mat64.NewDense(3, 3, []float64{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	})
}

// applyRot rotates a 3-vector through m.
func applyRot(m *mat64.Dense, v []float64) []float64 {
	var out mat64.Vector
	out.MulVec(m, mat64.NewVector(3, v))
	return []float64{out.At(0, 0), out.At(1, 0), out.At(2, 0)}
}

// planeToECI builds the in-plane to ECI rotation RZ(-Ω)·RX(-i)·RZ(-arg),
// where arg is the in-plane angle folded into the third rotation: the
// argument of latitude u when rotating the radius vector directly, or the
// argument of perigee ω when rotating PQW vectors. Angles in radians.
func planeToECI(arg, i, Ω float64) *mat64.Dense {
	var tilt, full mat64.Dense
	tilt.Mul(rotX(-i), rotZ(-arg))
	full.Mul(rotZ(-Ω), &tilt)
	return &full
}
