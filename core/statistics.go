package core

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler produces independent standard normal draws.
// A Sampler is not safe for concurrent use, the parallel simulator gives every batch its own.
type Sampler interface {
	StandardNormals(dst []float64)
}

// NormalSampler draws from N(0, 1) over a PCG stream.
type NormalSampler struct {
	normalDist distuv.Normal
}

// NewNormalSampler returns a sampler over the PCG stream (seed, stream).
// The same pair always yields the same sequence.
func NewNormalSampler(seed, stream uint64) *NormalSampler {
	rng := rand.NewPCG(seed, stream)

	return &NormalSampler{
		normalDist: distuv.Normal{Mu: 0, Sigma: 1, Src: rng},
	}
}

func (ns *NormalSampler) StandardNormals(dst []float64) {
	for i := range dst {
		dst[i] = ns.normalDist.Rand()
	}
}

// RandomSeed picks a seed when the user did not ask for a reproducible run.
func RandomSeed() uint64 {
	for {
		if s := rand.Uint64(); s != 0 {
			return s
		}
	}
}
