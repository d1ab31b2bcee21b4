package core

import (
	"context"
	"fmt"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	ex "github.com/andrewhamaty/qqq-voo-monte-carlo/data/extensions"
)

const (
	Workers   = 8
	BatchSize = 10_000
)

type SimulationParams struct {
	StartPrice  float64
	Mu          float64 // expected per period simple return
	Sigma       float64 // per period return standard deviation
	Days        int     // path length, day 0 is the start price
	Simulations int
}

func (p SimulationParams) Validate() error {
	if p.Days < 1 {
		return fmt.Errorf("%w: days must be at least 1, got %d", ErrInvalidParameter, p.Days)
	}

	if p.Simulations < 1 {
		return fmt.Errorf("%w: simulations must be at least 1, got %d", ErrInvalidParameter, p.Simulations)
	}

	if p.Sigma < 0 || math.IsNaN(p.Sigma) {
		return fmt.Errorf("%w: sigma must be non negative, got %v", ErrInvalidParameter, p.Sigma)
	}

	return nil
}

// Ensemble is the (simulations x days) table of simulated prices.
// It is stored with one matrix row per day so that a single day across all simulations is contiguous.
// Accessors hand out copies, an Ensemble is never modified once built.
type Ensemble struct {
	Ticker     string
	StartPrice float64
	values     *mat.Dense
}

// Dims returns the logical shape (simulations, days).
func (e *Ensemble) Dims() (simulations, days int) {
	r, c := e.values.Dims()
	return c, r
}

func (e *Ensemble) At(sim, day int) float64 {
	return e.values.At(day, sim)
}

// Path returns the prices of one simulation over every day.
func (e *Ensemble) Path(sim int) []float64 {
	return mat.Col(nil, sim, e.values)
}

// Day returns the price of every simulation on day t.
func (e *Ensemble) Day(t int) []float64 {
	return slices.Clone(e.values.RawRowView(t))
}

// TerminalValues returns the last simulated price of every path.
func (e *Ensemble) TerminalValues() []float64 {
	_, days := e.Dims()
	return e.Day(days - 1)
}

type job struct {
	start int
	end   int
}

func GetNumberOfJobsAndWorkers(iterations int, batchSize int, workers int) ([]job, int) {
	// total number of batches, rounded up so the last batch picks up the remainder
	nJobs := int(math.Ceil(float64(iterations) / float64(batchSize)))

	nWorkers := ex.Min(nJobs, workers)

	// end is exclusive, the last job is truncated to the number of iterations
	jobs := make([]job, nJobs)
	for i := range nJobs {
		jobs[i] = job{
			start: i * batchSize,
			end:   ex.Min((i+1)*batchSize, iterations),
		}
	}

	return jobs, nWorkers
}

// Simulator builds ensembles of geometric random walk paths.
// It is not safe for concurrent use, instruments are simulated one after the other.
type Simulator struct {
	sampler    Sampler // shared stream for sequential runs
	seed       uint64
	workers    int
	batchSize  int
	nextStream uint64
}

// NewSimulator returns a simulator over PCG streams derived from seed. A zero seed picks a random one.
// With workers <= 1 every ensemble consumes one continuing stream in order, the same as drawing
// QQQ then VOO from a single generator. With more workers the simulations are split into batches
// that each own a stream, so results depend on the seed, worker count and batch size but not on scheduling.
// Batches hold at most BatchSize simulations and are shrunk so that every worker gets one.
func NewSimulator(seed uint64, workers int) *Simulator {
	if seed == 0 {
		seed = RandomSeed()
	}

	return &Simulator{
		sampler:    NewNormalSampler(seed, 0),
		seed:       seed,
		workers:    ex.Max(workers, 1),
		batchSize:  BatchSize,
		nextStream: 1,
	}
}

// NewSimulatorWithSampler returns a sequential simulator drawing every shock from sampler.
func NewSimulatorWithSampler(sampler Sampler) *Simulator {
	return &Simulator{
		sampler:   sampler,
		workers:   1,
		batchSize: BatchSize,
	}
}

func (s *Simulator) Seed() uint64 {
	return s.seed
}

func (s *Simulator) Workers() int {
	return s.workers
}

// WithBatchSize overrides the number of simulations handled per parallel batch.
func (s *Simulator) WithBatchSize(batchSize int) *Simulator {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	return s
}

// batchSizeFor splits simulations evenly over the workers, capped at the configured batch size.
func (s *Simulator) batchSizeFor(simulations int) int {
	if s.workers <= 1 {
		return s.batchSize
	}
	perWorker := int(math.Ceil(float64(simulations) / float64(s.workers)))
	return ex.Max(ex.Min(s.batchSize, perWorker), 1)
}

// Simulate builds an ensemble where every path starts at params.StartPrice and each day
// multiplies the previous price by (1 + shock), shock ~ N(mu, sigma), drawn as one batch per day.
// Parameters are validated before anything is allocated.
func (s *Simulator) Simulate(ctx context.Context, params SimulationParams) (*Ensemble, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	values := mat.NewDense(params.Days, params.Simulations, nil)
	first := values.RawRowView(0)
	for i := range first {
		first[i] = params.StartPrice
	}

	ensemble := &Ensemble{StartPrice: params.StartPrice, values: values}
	if params.Days == 1 {
		return ensemble, nil
	}

	jobs, nWorkers := GetNumberOfJobsAndWorkers(params.Simulations, s.batchSizeFor(params.Simulations), s.workers)
	if nWorkers <= 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stepRows(values, params, job{start: 0, end: params.Simulations}, s.sampler)
		return ensemble, nil
	}

	// every batch gets its own stream, the counter moves on so the next instrument does not reuse them
	baseStream := s.nextStream
	s.nextStream += uint64(len(jobs))

	jobsChannel := make(chan int, len(jobs))
	for i := range jobs {
		jobsChannel <- i
	}
	close(jobsChannel)

	g, gctx := errgroup.WithContext(ctx)
	for range nWorkers {
		g.Go(func() error {
			for idx := range jobsChannel {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				sampler := NewNormalSampler(s.seed, baseStream+uint64(idx))
				stepRows(values, params, jobs[idx], sampler)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ensemble, nil
}

// stepRows advances the simulations in [j.start, j.end) through every day.
// Rows only read their own previous value, so disjoint jobs can run at the same time.
func stepRows(values *mat.Dense, params SimulationParams, j job, sampler Sampler) {
	shock := make([]float64, j.end-j.start)

	for t := 1; t < params.Days; t++ {
		sampler.StandardNormals(shock)

		prev := values.RawRowView(t - 1)[j.start:j.end]
		curr := values.RawRowView(t)[j.start:j.end]
		for i, z := range shock {
			curr[i] = prev[i] * (1 + (params.Mu + params.Sigma*z))
		}
	}
}
