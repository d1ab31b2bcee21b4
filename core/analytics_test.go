package core

import (
	"fmt"
	"math"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

func TestSharpeRatio_MatchesDefinition(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.03, 0.00, 0.015}
	mean, std := stat.MeanStdDev(returns, nil)

	ratio, err := SharpeRatio(returns, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, mean/std, ratio, 1e-12)

	ratio, err = SharpeRatio(returns, models.DefaultRiskFreeRate, models.Daily)
	require.NoError(t, err)
	expected := (mean*252 - 0.02) / (std * math.Sqrt(252))
	assert.InDelta(t, expected, ratio, 1e-12)
}

func TestSharpeRatio_InvariantToPriceRescaling(t *testing.T) {
	prices := []float64{100, 101, 99.5, 102.3, 103.1, 101.7, 104.9}

	sharpeOf := func(t *testing.T, scale float64) float64 {
		t.Helper()
		points := make([]null.Float, len(prices))
		for i, p := range prices {
			points[i] = px(p * scale)
		}
		returns, _, err := EstimateReturns(seriesOf("QQQ", points...))
		require.NoError(t, err)
		ratio, err := SharpeRatio(returns.Returns, models.DefaultRiskFreeRate, models.Daily)
		require.NoError(t, err)
		return ratio
	}

	base := sharpeOf(t, 1)
	for _, scale := range []float64{0.5, 3} {
		t.Run(fmt.Sprintf("scale %v", scale), func(t *testing.T) {
			assert.InDelta(t, base, sharpeOf(t, scale), 1e-12)
		})
	}
}

func TestSharpeRatio_Degenerate(t *testing.T) {
	_, err := SharpeRatio([]float64{0.25, 0.25, 0.25}, 0.02, 252)
	assert.ErrorIs(t, err, ErrDegenerateInput)

	_, err = SharpeRatio([]float64{0.01}, 0.02, 252)
	assert.ErrorIs(t, err, ErrDegenerateInput)

	_, err = SharpeRatio(nil, 0.02, 252)
	assert.ErrorIs(t, err, ErrDegenerateInput)

	_, err = SharpeRatio([]float64{0.01, 0.02}, 0.02, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestCompareTerminalValues(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{2, 2, 1, 5}

	below, above, tied, err := CompareTerminalValues(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.5, below)
	assert.Equal(t, 0.25, above)
	assert.Equal(t, 0.25, tied)

	p, err := UnderperformanceProbability(a, b)
	require.NoError(t, err)
	assert.Equal(t, below, p)
}

func TestCompareTerminalValues_ComplementsSumToOne(t *testing.T) {
	sim := NewSimulator(3, 1)
	params := SimulationParams{StartPrice: 100, Mu: 0.0005, Sigma: 0.01, Days: 100, Simulations: 2_000}

	a, err := sim.Simulate(t.Context(), params)
	require.NoError(t, err)
	b, err := sim.Simulate(t.Context(), params)
	require.NoError(t, err)

	ab, ba, tiedAB, err := CompareTerminalValues(a.TerminalValues(), b.TerminalValues())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ab+ba+tiedAB, 1e-12)

	pBA, err := UnderperformanceProbability(b.TerminalValues(), a.TerminalValues())
	require.NoError(t, err)
	assert.Equal(t, ba, pBA)
	assert.True(t, ab > 0 && ab < 1)
}

func TestCompareTerminalValues_InvalidInput(t *testing.T) {
	_, _, _, err := CompareTerminalValues([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = UnderperformanceProbability(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestScottBandwidth(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	expected := math.Sqrt(2.5) * math.Pow(5, -0.2)
	assert.InDelta(t, expected, ScottBandwidth(values), 1e-12)
}

func TestKernelDensity_GridAndIntegral(t *testing.T) {
	values := make([]float64, 2_000)
	NewNormalSampler(8, 0).StandardNormals(values)

	curve, err := KernelDensity(values, models.DefaultKDEPoints)
	require.NoError(t, err)

	require.Len(t, curve.X, 200)
	require.Len(t, curve.Y, 200)
	assert.Equal(t, minOf(values), curve.X[0])
	assert.InDelta(t, maxOf(values), curve.X[len(curve.X)-1], 1e-9)

	var area float64
	for i := 1; i < len(curve.X); i++ {
		assert.GreaterOrEqual(t, curve.Y[i], 0.0)
		area += (curve.X[i] - curve.X[i-1]) * (curve.Y[i] + curve.Y[i-1]) / 2
	}
	assert.InDelta(t, 1.0, area, 0.03)
}

func TestKernelDensity_ReferenceValue(t *testing.T) {
	values := []float64{1, 2, 3, 4, 10}
	assert.InDelta(t, 2.5625, ScottBandwidth(values), 1e-4)

	curve, err := KernelDensity(values, 5)
	require.NoError(t, err)

	require.Len(t, curve.X, 5)
	assert.InDelta(t, 1.0, curve.X[0], 1e-12)
	assert.InDelta(t, 10.0, curve.X[4], 1e-12)
	assert.InDelta(t, 0.098709, curve.Y[0], 1e-5)
}

func TestKernelDensity_InvalidInput(t *testing.T) {
	_, err := KernelDensity([]float64{1, 2, 3}, 1)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = KernelDensity([]float64{1}, 200)
	assert.ErrorIs(t, err, ErrDegenerateInput)

	_, err = KernelDensity([]float64{4, 4, 4, 4}, 200)
	assert.ErrorIs(t, err, ErrDegenerateInput)
}

func TestSummarizeEnsemble(t *testing.T) {
	e := &Ensemble{
		Ticker:     "QQQ",
		StartPrice: 100,
		values: mat.NewDense(2, 4, []float64{
			100, 100, 100, 100,
			140, 80, 120, 100,
		}),
	}

	s := SummarizeEnsemble(e)
	assert.Equal(t, "QQQ", s.Ticker)
	assert.Equal(t, 100.0, s.StartPrice)
	assert.InDelta(t, 110, s.MeanFinalValue, 1e-12)
	assert.Equal(t, 100.0, s.MedianFinalValue)
	assert.Equal(t, 80.0, s.P5FinalValue)
	assert.Equal(t, 140.0, s.P95FinalValue)
	assert.Equal(t, 0.25, s.ProbabilityOfLoss)
	assert.InDelta(t, -0.2, s.VaR95, 1e-12)
	assert.InDelta(t, -0.2, s.CVaR95, 1e-12)

	// summarizing sorts a copy, the ensemble itself is untouched
	assert.Equal(t, []float64{140, 80, 120, 100}, e.TerminalValues())
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v {
		m = min(m, x)
	}
	return m
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v {
		m = max(m, x)
	}
	return m
}
