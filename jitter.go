package leosim

import (
	"math/rand"

	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat/distmv"
)

// jitterSampler draws zero-mean Gaussian processing jitter for link delays.
// All links share one sampler over the scenario RNG, so draws happen in event
// dispatch order and runs stay deterministic for a given seed.
type jitterSampler struct {
	dist *distmv.Normal
}

func newJitterSampler(σ float64, src *rand.Rand) *jitterSampler {
	dist, ok := distmv.NewNormal([]float64{0}, mat64.NewSymDense(1, []float64{σ * σ}), src)
	if !ok {
		panic("NOK in Gaussian")
	}
	return &jitterSampler{dist: dist}
}

func (j *jitterSampler) draw() float64 {
	return j.dist.Rand(nil)[0]
}
