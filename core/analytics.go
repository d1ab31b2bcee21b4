package core

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

// ScottBandwidth is the Gaussian kernel bandwidth from Scott's rule, stddev * n^(-1/5).
func ScottBandwidth(values []float64) float64 {
	n := float64(len(values))
	return stat.StdDev(values, nil) * math.Pow(n, -1.0/5.0)
}

// KernelDensity estimates the density of values with a Gaussian kernel over a grid of points
// spanning [min(values), max(values)].
func KernelDensity(values []float64, points int) (models.DensityCurve, error) {
	if points < 2 {
		return models.DensityCurve{}, fmt.Errorf("%w: density grid needs at least 2 points, got %d", ErrInvalidParameter, points)
	}

	if len(values) < 2 {
		return models.DensityCurve{}, fmt.Errorf("%w: density estimate needs at least 2 values, got %d", ErrDegenerateInput, len(values))
	}

	bandwidth := ScottBandwidth(values)
	if bandwidth == 0 || math.IsNaN(bandwidth) {
		return models.DensityCurve{}, fmt.Errorf("%w: values have no spread", ErrDegenerateInput)
	}

	x := floats.Span(make([]float64, points), floats.Min(values), floats.Max(values))
	y := make([]float64, points)

	kernel := distuv.Normal{Mu: 0, Sigma: bandwidth}
	n := float64(len(values))
	for i, xi := range x {
		var sum float64
		for _, v := range values {
			sum += kernel.Prob(xi - v)
		}
		y[i] = sum / n
	}

	return models.DensityCurve{X: x, Y: y}, nil
}

// SharpeRatio annualizes per period returns: (mean*P - rf) / (stddev*sqrt(P)).
// stddev is the unbiased sample standard deviation.
func SharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) (float64, error) {
	if periodsPerYear < 1 {
		return 0, fmt.Errorf("%w: periods per year must be at least 1, got %d", ErrInvalidParameter, periodsPerYear)
	}

	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: sharpe ratio needs at least 2 returns, got %d", ErrDegenerateInput, len(returns))
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0, fmt.Errorf("%w: returns have zero standard deviation", ErrDegenerateInput)
	}

	p := float64(periodsPerYear)
	return (mean*p - riskFreeRate) / (std * math.Sqrt(p)), nil
}

// CompareTerminalValues pairs a[i] with b[i] and returns the fractions of indices where
// a is below, above and equal to b. The ensembles are simulated independently, so index i
// is just one independent draw from each distribution, not a shared path.
func CompareTerminalValues(a, b []float64) (below, above, tied float64, err error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, 0, 0, fmt.Errorf("%w: terminal values must be non empty and of equal length, got %d and %d", ErrInvalidParameter, len(a), len(b))
	}

	var nBelow, nAbove, nTied int
	for i, v := range a {
		switch {
		case v < b[i]:
			nBelow++
		case v > b[i]:
			nAbove++
		default:
			nTied++
		}
	}

	n := float64(len(a))
	return float64(nBelow) / n, float64(nAbove) / n, float64(nTied) / n, nil
}

// UnderperformanceProbability is the empirical P(a < b) over paired indices.
func UnderperformanceProbability(a, b []float64) (float64, error) {
	below, _, _, err := CompareTerminalValues(a, b)
	return below, err
}

// SummarizeEnsemble computes terminal value percentiles and tail risk of total return.
func SummarizeEnsemble(e *Ensemble) models.EnsembleSummary {
	finalValues := e.TerminalValues()
	slices.Sort(finalValues) // stat.Quantile needs increasing order

	totalReturns := make([]float64, len(finalValues))
	lossCount := 0
	for i, v := range finalValues {
		totalReturns[i] = v/e.StartPrice - 1
		if v < e.StartPrice {
			lossCount++
		}
	}

	return models.EnsembleSummary{
		Ticker:            e.Ticker,
		StartPrice:        e.StartPrice,
		MeanFinalValue:    stat.Mean(finalValues, nil),
		MedianFinalValue:  stat.Quantile(0.50, stat.Empirical, finalValues, nil),
		P5FinalValue:      stat.Quantile(0.05, stat.Empirical, finalValues, nil),
		P95FinalValue:     stat.Quantile(0.95, stat.Empirical, finalValues, nil),
		ProbabilityOfLoss: float64(lossCount) / float64(len(finalValues)),
		VaR95:             stat.Quantile(0.05, stat.Empirical, totalReturns, nil),
		CVaR95:            calculateCVaR(totalReturns, 0.05),
	}
}

// calculateCVaR takes the mean of the lower alpha tail of sorted returns
func calculateCVaR(sortedReturns []float64, alpha float64) float64 {
	nReturns := len(sortedReturns)
	cutoff := max(int(math.Ceil(alpha*float64(nReturns))), 1)
	return stat.Mean(sortedReturns[:cutoff], nil)
}
