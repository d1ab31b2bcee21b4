package models

import "time"

// ReturnSeries holds simple per period returns, r_t = p_t / p_{t-1} - 1.
// Dates[i] is the date of the later price of the pair.
type ReturnSeries struct {
	Ticker  string
	Dates   []time.Time
	Returns []float64
}

// EstimationResult holds the sample statistics used as (mu, sigma) by the simulator.
type EstimationResult struct {
	Ticker       string
	Mean         float64
	StdDev       float64 // unbiased, N-1 denominator
	Observations int
	LastPrice    float64
	LastDate     time.Time
}

type SharpeResult struct {
	Ticker string  `json:"ticker"`
	Ratio  float64 `json:"ratio"`
}

// DensityCurve is a kernel density estimate sampled over an x grid.
type DensityCurve struct {
	Label string    `json:"label"`
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
}

// Underperformance compares the terminal values of Ticker against Benchmark index by index.
type Underperformance struct {
	Ticker      string  `json:"ticker"`
	Benchmark   string  `json:"benchmark"`
	Probability float64 `json:"probability"` // P(ticker < benchmark)
	Outperform  float64 `json:"outperform"`  // P(ticker > benchmark)
	Tied        float64 `json:"tied"`
}

// EnsembleSummary describes the terminal value distribution of one simulated instrument.
type EnsembleSummary struct {
	Ticker            string  `json:"ticker"`
	StartPrice        float64 `json:"startPrice"`
	MeanFinalValue    float64 `json:"meanFinalValue"`
	MedianFinalValue  float64 `json:"medianFinalValue"`
	P5FinalValue      float64 `json:"p5FinalValue"`
	P95FinalValue     float64 `json:"p95FinalValue"`
	ProbabilityOfLoss float64 `json:"probabilityOfLoss"`
	VaR95             float64 `json:"var95"`  // 5th percentile of total return
	CVaR95            float64 `json:"cvar95"` // mean total return of the worst 5%
}

// ComparisonSettings are the inputs of a single comparison run.
type ComparisonSettings struct {
	Tickers            []string
	StartDate          time.Time
	EndDate            time.Time
	HorizonYears       int
	TradingDaysPerYear int
	Simulations        int
	RiskFreeRate       float64
	KDEPoints          int
}

// Days is the number of simulated days, including day 0.
func (s ComparisonSettings) Days() int {
	return s.HorizonYears * s.TradingDaysPerYear
}
