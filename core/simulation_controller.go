package core

import (
	"errors"
	"fmt"
	"time"

	ex "github.com/andrewhamaty/qqq-voo-monte-carlo/data/extensions"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

// InstrumentResult is everything computed for a single ticker.
type InstrumentResult struct {
	Ticker     string
	Returns    models.ReturnSeries
	Estimation models.EstimationResult
	Ensemble   *Ensemble
	Summary    models.EnsembleSummary
	Sharpe     *models.SharpeResult // nil when the ratio is undefined for the ticker's returns
}

type ComparisonResult struct {
	Settings         models.ComparisonSettings
	Instruments      []*InstrumentResult
	Sharpe           []models.SharpeResult
	Underperformance []models.Underperformance
	Densities        []models.DensityCurve
}

// RunComparison fetches history once, then estimates, simulates and analyses every ticker in order.
// Any failure aborts the run with a StageError naming the stage and ticker, except a degenerate
// Sharpe ratio or density which only drops that output for the ticker.
func (sc *ServiceContext) RunComparison(settings models.ComparisonSettings) (*ComparisonResult, error) {
	start := time.Now()
	if len(settings.Tickers) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 tickers to compare, got %d", ErrInvalidParameter, len(settings.Tickers))
	}

	sc.Log.Info().
		Strs("tickers", settings.Tickers).
		Str("start", ex.FmtShort(settings.StartDate)).
		Str("end", ex.FmtShort(settings.EndDate)).
		Msg("Fetching historical closes")

	table, err := sc.Prices.GetDailyCloses(sc.Context, settings.Tickers, settings.StartDate, settings.EndDate)
	if err != nil {
		if !errors.Is(err, ErrDataRetrieval) {
			err = fmt.Errorf("%w: %w", ErrDataRetrieval, err)
		}
		return nil, stageError(StageRetrieval, "", err)
	}

	if err := verifyPriceTable(table, settings.Tickers); err != nil {
		return nil, stageError(StageRetrieval, "", err)
	}

	sc.Log.Info().Int("dates", len(table.Dates)).Dur("elapsed", time.Since(start)).Msg("Historical closes loaded")

	res := &ComparisonResult{Settings: settings}
	for _, ticker := range settings.Tickers {
		ir, err := sc.runInstrument(table, ticker, settings)
		if err != nil {
			return nil, err
		}
		res.Instruments = append(res.Instruments, ir)
		if ir.Sharpe != nil {
			res.Sharpe = append(res.Sharpe, *ir.Sharpe)
		}
		sc.Log.Info().Str("ticker", ticker).Dur("elapsed", time.Since(start)).Msg("Instrument completed")
	}

	res.Underperformance, err = compareInstruments(res.Instruments)
	if err != nil {
		return nil, stageError(StageAnalytics, "", err)
	}

	for _, ir := range res.Instruments {
		curve, err := KernelDensity(ir.Ensemble.TerminalValues(), settings.KDEPoints)
		switch {
		case errors.Is(err, ErrDegenerateInput):
			sc.Log.Warn().Str("ticker", ir.Ticker).Err(err).Msg("Skipping terminal value density")
		case err != nil:
			return nil, stageError(StageAnalytics, ir.Ticker, err)
		default:
			curve.Label = ir.Ticker
			res.Densities = append(res.Densities, curve)
		}
	}

	sc.Log.Info().Dur("elapsed", time.Since(start)).Msg("Comparison completed")
	return res, nil
}

func (sc *ServiceContext) runInstrument(table *models.PriceTable, ticker string, settings models.ComparisonSettings) (*InstrumentResult, error) {
	log := sc.Log.With().Str("ticker", ticker).Logger()

	series, _ := table.Series(ticker)
	returns, estimation, err := EstimateReturns(series)
	if err != nil {
		return nil, stageError(StageEstimation, ticker, err)
	}

	log.Info().
		Int("observations", estimation.Observations).
		Float64("mu", estimation.Mean).
		Float64("sigma", estimation.StdDev).
		Float64("start_price", estimation.LastPrice).
		Str("as_of", ex.FmtShort(estimation.LastDate)).
		Msg("Estimated daily return statistics")

	params := SimulationParams{
		StartPrice:  estimation.LastPrice,
		Mu:          estimation.Mean,
		Sigma:       estimation.StdDev,
		Days:        settings.Days(),
		Simulations: settings.Simulations,
	}

	simStart := time.Now()
	ensemble, err := sc.Simulator.Simulate(sc.Context, params)
	if err != nil {
		return nil, stageError(StageSimulation, ticker, err)
	}
	ensemble.Ticker = ticker

	log.Info().
		Int("days", params.Days).
		Int("simulations", params.Simulations).
		Int("workers", sc.Simulator.Workers()).
		Dur("elapsed", time.Since(simStart)).
		Msg("Simulated paths")

	ir := &InstrumentResult{
		Ticker:     ticker,
		Returns:    returns,
		Estimation: estimation,
		Ensemble:   ensemble,
		Summary:    SummarizeEnsemble(ensemble),
	}

	ratio, err := SharpeRatio(returns.Returns, settings.RiskFreeRate, settings.TradingDaysPerYear)
	switch {
	case errors.Is(err, ErrDegenerateInput):
		log.Warn().Err(err).Msg("Skipping sharpe ratio")
	case err != nil:
		return nil, stageError(StageAnalytics, ticker, err)
	default:
		ir.Sharpe = &models.SharpeResult{Ticker: ticker, Ratio: ratio}
	}

	return ir, nil
}

// compareInstruments computes P(a < b) for every ordered pair (a listed before b).
func compareInstruments(instruments []*InstrumentResult) ([]models.Underperformance, error) {
	var res []models.Underperformance
	for i := range instruments {
		for j := i + 1; j < len(instruments); j++ {
			a, b := instruments[i], instruments[j]
			below, above, tied, err := CompareTerminalValues(a.Ensemble.TerminalValues(), b.Ensemble.TerminalValues())
			if err != nil {
				return nil, fmt.Errorf("comparing %s with %s: %w", a.Ticker, b.Ticker, err)
			}

			res = append(res, models.Underperformance{
				Ticker:      a.Ticker,
				Benchmark:   b.Ticker,
				Probability: below,
				Outperform:  above,
				Tied:        tied,
			})
		}
	}
	return res, nil
}

// verifyPriceTable makes sure every requested ticker came back with at least one close.
func verifyPriceTable(table *models.PriceTable, tickers []string) error {
	if table == nil || len(table.Dates) == 0 {
		return fmt.Errorf("%w: no closes returned", ErrDataRetrieval)
	}

	for _, ticker := range tickers {
		if _, ok := table.Columns[ticker]; !ok {
			return fmt.Errorf("%w: no data returned for %s", ErrDataRetrieval, ticker)
		}
		if table.ValidCount(ticker) == 0 {
			return fmt.Errorf("%w: every close is missing for %s", ErrDataRetrieval, ticker)
		}
	}

	return nil
}
