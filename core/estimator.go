package core

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	ex "github.com/andrewhamaty/qqq-voo-monte-carlo/data/extensions"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

// CleanPrices drops points with missing, non finite or non positive prices.
// Gaps are dropped, never filled.
func CleanPrices(series models.PriceSeries) models.PriceSeries {
	f := func(p models.PricePoint) bool {
		return p.Price.Valid && !math.IsNaN(p.Price.Float64) && !math.IsInf(p.Price.Float64, 0) && p.Price.Float64 > 0
	}

	return models.PriceSeries{
		Ticker: series.Ticker,
		Points: ex.FilterMultiple(series.Points, f),
	}
}

// ComputeReturns cleans the series and derives simple returns from consecutive valid prices.
func ComputeReturns(series models.PriceSeries) (models.ReturnSeries, error) {
	clean := CleanPrices(series)
	n := clean.Len()
	if n < 2 {
		return models.ReturnSeries{}, fmt.Errorf("%w: %s has %d usable prices, need at least 2", ErrInsufficientData, series.Ticker, n)
	}

	res := models.ReturnSeries{
		Ticker:  series.Ticker,
		Dates:   make([]time.Time, n-1),
		Returns: make([]float64, n-1),
	}

	for i := 1; i < n; i++ {
		prev := clean.Points[i-1].Price.Float64
		curr := clean.Points[i].Price.Float64
		res.Returns[i-1] = curr/prev - 1
		res.Dates[i-1] = clean.Points[i].Timestamp
	}

	return res, nil
}

// EstimateReturns computes the return series and its sample mean and unbiased standard deviation
// over the whole window.
func EstimateReturns(series models.PriceSeries) (models.ReturnSeries, models.EstimationResult, error) {
	returns, err := ComputeReturns(series)
	if err != nil {
		return models.ReturnSeries{}, models.EstimationResult{}, err
	}

	// a single return has no sample stddev (gonum reports NaN), treat it as zero spread
	var mean, std float64
	if len(returns.Returns) == 1 {
		mean = returns.Returns[0]
	} else {
		mean, std = stat.MeanStdDev(returns.Returns, nil)
	}

	clean := CleanPrices(series)
	last := clean.Points[clean.Len()-1]

	return returns, models.EstimationResult{
		Ticker:       series.Ticker,
		Mean:         mean,
		StdDev:       std,
		Observations: len(returns.Returns),
		LastPrice:    last.Price.Float64,
		LastDate:     last.Timestamp,
	}, nil
}
