package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

func TestNormalSampler_SameSeedAndStreamRepeat(t *testing.T) {
	a := make([]float64, 64)
	b := make([]float64, 64)

	NewNormalSampler(42, 3).StandardNormals(a)
	NewNormalSampler(42, 3).StandardNormals(b)
	assert.Equal(t, a, b)

	NewNormalSampler(42, 4).StandardNormals(b)
	assert.NotEqual(t, a, b, "different streams should not repeat each other")
}

func TestNormalSampler_ContinuesAcrossCalls(t *testing.T) {
	s := NewNormalSampler(1, 0)
	first := make([]float64, 8)
	second := make([]float64, 8)
	s.StandardNormals(first)
	s.StandardNormals(second)

	assert.NotEqual(t, first, second)
}

// TestNormalSampler_IsStandardNormal checks the first two moments over a large draw
func TestNormalSampler_IsStandardNormal(t *testing.T) {
	n := 200_000
	draws := make([]float64, n)
	NewNormalSampler(2025, 0).StandardNormals(draws)

	mean, std := stat.MeanStdDev(draws, nil)
	tolerance := 5 / math.Sqrt(float64(n))
	assert.InDelta(t, 0, mean, tolerance)
	assert.InDelta(t, 1, std, 0.01)
}

func TestRandomSeedIsNonZero(t *testing.T) {
	for range 100 {
		assert.NotZero(t, RandomSeed())
	}
}

func TestNewSimulator_ZeroSeedPicksOne(t *testing.T) {
	sim := NewSimulator(0, 0)
	assert.NotZero(t, sim.Seed())
	assert.Equal(t, 1, sim.Workers())

	sim = NewSimulator(17, 8)
	assert.Equal(t, uint64(17), sim.Seed())
	assert.Equal(t, 8, sim.Workers())
}
