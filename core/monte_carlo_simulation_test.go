package core

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

// fixedSampler cycles through values and counts how often it was asked for draws
type fixedSampler struct {
	values []float64
	calls  int
	draws  int
}

func (f *fixedSampler) StandardNormals(dst []float64) {
	f.calls++
	for i := range dst {
		dst[i] = f.values[f.draws%len(f.values)]
		f.draws++
	}
}

func TestJobsAndIterationsLogicIsCorrect(t *testing.T) {
	jobs, nWorkers := GetNumberOfJobsAndWorkers(10_000, 1_000, 4)

	if len(jobs) != 10 {
		t.Errorf("Expected 10 jobs, got %d", len(jobs))
	}
	if nWorkers != 4 {
		t.Errorf("Expected 4 workers, got %d", nWorkers)
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i].start != jobs[i-1].end {
			t.Errorf("Expected job %d to start where job %d ends (%d), got %d", i, i-1, jobs[i-1].end, jobs[i].start)
		}
	}

	// should have 4 jobs, the last one picking up the remaining 500
	jobs, nWorkers = GetNumberOfJobsAndWorkers(3_500, 1_000, 4)

	if len(jobs) != 4 {
		t.Errorf("Expected 4 jobs, got %d", len(jobs))
	}
	if nWorkers != 4 {
		t.Errorf("Expected 4 workers, got %d", nWorkers)
	}
	if jobs[3].end != 3_500 {
		t.Errorf("Expected last job to end at 3_500 (exclusive), got %d", jobs[3].end)
	}
	if jobs[3].end-jobs[3].start != 500 {
		t.Errorf("Expected last job to hold 500 iterations, got %d", jobs[3].end-jobs[3].start)
	}

	jobs, nWorkers = GetNumberOfJobsAndWorkers(10, 1_000, 4)

	if len(jobs) != 1 {
		t.Errorf("Expected 1 job, got %d", len(jobs))
	}
	if nWorkers != 1 {
		t.Errorf("Expected 1 worker, got %d", nWorkers)
	}
	if jobs[0].start != 0 || jobs[0].end != 10 {
		t.Errorf("Expected single job [0, 10), got [%d, %d)", jobs[0].start, jobs[0].end)
	}
}

func TestSimulate_ZeroDriftZeroVolatilityIsConstant(t *testing.T) {
	sim := NewSimulator(42, 1)
	e, err := sim.Simulate(context.Background(), SimulationParams{StartPrice: 250, Mu: 0, Sigma: 0, Days: 20, Simulations: 7})
	require.NoError(t, err)

	nSims, nDays := e.Dims()
	for i := range nSims {
		for d := range nDays {
			assert.Equal(t, 250.0, e.At(i, d), "sim %d day %d", i, d)
		}
	}
}

func TestSimulate_ZeroVolatilityCompoundsDrift(t *testing.T) {
	mu := 0.0007
	sim := NewSimulator(7, 1)
	e, err := sim.Simulate(context.Background(), SimulationParams{StartPrice: 100, Mu: mu, Sigma: 0, Days: 252, Simulations: 3})
	require.NoError(t, err)

	nSims, nDays := e.Dims()
	for i := range nSims {
		for d := range nDays {
			expected := 100 * math.Pow(1+mu, float64(d))
			assert.InEpsilon(t, expected, e.At(i, d), 1e-9, "sim %d day %d", i, d)
		}
	}
}

func TestSimulate_ThreeDayDeterministicPath(t *testing.T) {
	sim := NewSimulator(1, 1)
	e, err := sim.Simulate(context.Background(), SimulationParams{StartPrice: 100, Mu: 0.001, Sigma: 0, Days: 3, Simulations: 1})
	require.NoError(t, err)

	path := e.Path(0)
	require.Len(t, path, 3)
	assert.InDelta(t, 100.0, path[0], 1e-9)
	assert.InDelta(t, 100.1, path[1], 1e-9)
	assert.InDelta(t, 100.2001, path[2], 1e-9)
}

func TestSimulate_ShapeAndStartColumn(t *testing.T) {
	sim := NewSimulator(99, 1)
	e, err := sim.Simulate(context.Background(), SimulationParams{StartPrice: 380.5, Mu: 0.0005, Sigma: 0.012, Days: 30, Simulations: 40})
	require.NoError(t, err)

	nSims, nDays := e.Dims()
	assert.Equal(t, 40, nSims)
	assert.Equal(t, 30, nDays)
	assert.Equal(t, 380.5, e.StartPrice)

	for _, v := range e.Day(0) {
		assert.Equal(t, 380.5, v)
	}
	assert.Len(t, e.TerminalValues(), 40)
	assert.Len(t, e.Path(3), 30)
	assert.Equal(t, e.Path(3)[5], e.At(3, 5))
	assert.Equal(t, e.Day(29)[7], e.At(7, 29))
	assert.Equal(t, 380.5, e.At(7, 0))
}

func TestSimulator_BatchSizeSplitsAcrossWorkers(t *testing.T) {
	cases := []struct {
		name        string
		sim         *Simulator
		simulations int
		expected    int
	}{
		{"default simulations over four workers", NewSimulator(1, 4), 10_000, 2_500},
		{"uneven split rounds up", NewSimulator(1, 3), 10, 4},
		{"capped at batch size", NewSimulator(1, 2), 50_000, BatchSize},
		{"explicit batch size is kept", NewSimulator(1, 4).WithBatchSize(100), 10_000, 100},
		{"sequential keeps batch size", NewSimulator(1, 1), 10_000, BatchSize},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.sim.batchSizeFor(tc.simulations))
		})
	}

	// the default run is spread over every worker
	jobs, nWorkers := GetNumberOfJobsAndWorkers(10_000, NewSimulator(1, 4).batchSizeFor(10_000), 4)
	assert.Len(t, jobs, 4)
	assert.Equal(t, 4, nWorkers)
}

func TestSimulate_AppliesShocksMultiplicatively(t *testing.T) {
	sampler := &fixedSampler{values: []float64{1, -1}}
	sim := NewSimulatorWithSampler(sampler)

	params := SimulationParams{StartPrice: 100, Mu: 0.01, Sigma: 0.02, Days: 3, Simulations: 2}
	e, err := sim.Simulate(context.Background(), params)
	require.NoError(t, err)

	// one batch per day, sim 0 always draws 1 and sim 1 always draws -1
	assert.Equal(t, 2, sampler.calls)
	assert.InDelta(t, 100*1.03*1.03, e.At(0, 2), 1e-9)
	assert.InDelta(t, 100*0.99*0.99, e.At(1, 2), 1e-9)
}

func TestSimulate_SingleDayConsumesNoDraws(t *testing.T) {
	sampler := &fixedSampler{values: []float64{0.5}}
	sim := NewSimulatorWithSampler(sampler)

	e, err := sim.Simulate(context.Background(), SimulationParams{StartPrice: 10, Mu: 0.1, Sigma: 0.3, Days: 1, Simulations: 5})
	require.NoError(t, err)

	assert.Zero(t, sampler.calls)
	assert.Zero(t, sampler.draws)
	assert.Equal(t, []float64{10, 10, 10, 10, 10}, e.TerminalValues())
}

func TestSimulate_InvalidParameters(t *testing.T) {
	cases := []struct {
		name   string
		params SimulationParams
	}{
		{"no simulations", SimulationParams{StartPrice: 100, Sigma: 0.01, Days: 10, Simulations: 0}},
		{"no days", SimulationParams{StartPrice: 100, Sigma: 0.01, Days: 0, Simulations: 10}},
		{"negative sigma", SimulationParams{StartPrice: 100, Sigma: -0.01, Days: 10, Simulations: 10}},
		{"nan sigma", SimulationParams{StartPrice: 100, Sigma: math.NaN(), Days: 10, Simulations: 10}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sampler := &fixedSampler{values: []float64{0}}
			_, err := NewSimulatorWithSampler(sampler).Simulate(context.Background(), tc.params)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.Zero(t, sampler.calls)
		})
	}
}

func TestSimulate_SequentialStreamIsSharedAcrossInstruments(t *testing.T) {
	params := SimulationParams{StartPrice: 100, Mu: 0.0004, Sigma: 0.01, Days: 50, Simulations: 20}
	ctx := context.Background()

	first := NewSimulator(42, 1)
	a1, err := first.Simulate(ctx, params)
	require.NoError(t, err)
	b1, err := first.Simulate(ctx, params)
	require.NoError(t, err)

	second := NewSimulator(42, 1)
	a2, err := second.Simulate(ctx, params)
	require.NoError(t, err)
	b2, err := second.Simulate(ctx, params)
	require.NoError(t, err)

	assert.Equal(t, a1.TerminalValues(), a2.TerminalValues())
	assert.Equal(t, b1.TerminalValues(), b2.TerminalValues())
	// the second instrument continues the stream instead of replaying it
	assert.NotEqual(t, a1.TerminalValues(), b1.TerminalValues())
}

func TestSimulate_ParallelIsReproducibleForSeed(t *testing.T) {
	params := SimulationParams{StartPrice: 100, Mu: 0.0004, Sigma: 0.01, Days: 60, Simulations: 1_050}
	ctx := context.Background()

	run := func() (*Ensemble, *Ensemble) {
		sim := NewSimulator(2024, 4).WithBatchSize(100)
		a, err := sim.Simulate(ctx, params)
		require.NoError(t, err)
		b, err := sim.Simulate(ctx, params)
		require.NoError(t, err)
		return a, b
	}

	a1, b1 := run()
	a2, b2 := run()

	assert.Equal(t, a1.TerminalValues(), a2.TerminalValues())
	assert.Equal(t, b1.TerminalValues(), b2.TerminalValues())
	assert.NotEqual(t, a1.TerminalValues(), b1.TerminalValues())

	// every batch owns a different stream, so neighbouring batches never repeat each other
	assert.NotEqual(t, a1.Path(0), a1.Path(100))
}

func TestSimulate_ParallelRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := NewSimulator(5, 4).WithBatchSize(10)
	_, err := sim.Simulate(ctx, SimulationParams{StartPrice: 1, Mu: 0, Sigma: 0.01, Days: 10, Simulations: 100})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewSimulator(5, 1).Simulate(ctx, SimulationParams{StartPrice: 1, Mu: 0, Sigma: 0.01, Days: 10, Simulations: 100})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulate_FirstDayReturnsMatchParameters(t *testing.T) {
	mu, sigma := 0.0005, 0.012
	n := 50_000

	sim := NewSimulator(11, 4)
	e, err := sim.Simulate(context.Background(), SimulationParams{StartPrice: 100, Mu: mu, Sigma: sigma, Days: 2, Simulations: n})
	require.NoError(t, err)

	returns := make([]float64, n)
	for i, v := range e.TerminalValues() {
		returns[i] = v/100 - 1
	}

	mean, std := stat.MeanStdDev(returns, nil)
	stdErr := sigma / math.Sqrt(float64(n))
	assert.InDelta(t, mu, mean, 5*stdErr)
	assert.InDelta(t, sigma, std, sigma*0.02)
}

func TestSimulate_DaysFromSettings(t *testing.T) {
	settings := models.ComparisonSettings{HorizonYears: 10, TradingDaysPerYear: models.Daily}
	assert.Equal(t, 2520, settings.Days())
}
