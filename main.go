package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/andrewhamaty/qqq-voo-monte-carlo/api"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/api/yahoo"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/config"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/core"
	r "github.com/andrewhamaty/qqq-voo-monte-carlo/data/repos"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/logger"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/report"
)

func main() {
	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// .env, config file and environment
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, runID := logger.WithRunID(logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}))
	logger.SetGlobalLogger(log)

	settings, err := cfg.ToSettings(time.Now())
	if err != nil {
		return err
	}

	prices, closeSource, err := getPriceSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSource()

	simulator := core.NewSimulator(cfg.Seed, cfg.Workers)
	log.Info().
		Str("run_id", runID).
		Uint64("seed", simulator.Seed()).
		Int("workers", simulator.Workers()).
		Str("source", cfg.DataSource).
		Msg("Starting comparison")

	sc := core.ServiceContext{
		Context:   ctx,
		Prices:    prices,
		Simulator: simulator,
		Log:       log,
	}

	res, err := sc.RunComparison(settings)
	if err != nil {
		log.Error().Err(err).Msg("Comparison failed")
		return err
	}

	printResults(res)

	if cfg.Output.SkipCharts {
		return nil
	}
	return writeCharts(res, cfg, log)
}

// getPriceSource picks the configured upstream and puts the postgres cache in front of it when DATABASE_URL is set.
func getPriceSource(ctx context.Context, cfg *config.Config, log zerolog.Logger) (core.PriceSource, func(), error) {
	var (
		upstream   core.PriceSource
		sourceName string
	)

	switch cfg.DataSource {
	case config.SourceAlphaVantage:
		ts, _ := api.ParseTimeSeries(cfg.AlphaVantage.TimeSeries)
		upstream = api.GetClient(cfg.AlphaVantage.APIKey, ts, log)
		sourceName = api.SourceName + "_" + strings.ToLower(ts.Function())
	default:
		upstream = yahoo.NewClient(log)
		sourceName = yahoo.SourceName
	}

	noop := func() {}
	if cfg.Cache.DatabaseURL == "" {
		return upstream, noop, nil
	}

	pg, err := r.GetPostgresConnection(ctx, cfg.Cache.DatabaseURL)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, noop, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, noop, err
	}

	log.Info().Dur("max_age", cfg.Cache.MaxAge).Msg("Using postgres price cache")
	return core.NewCachedPriceSource(upstream, pg, sourceName, cfg.Cache.MaxAge, log), pg.Close, nil
}

func printResults(res *core.ComparisonResult) {
	years := res.Settings.HorizonYears

	fmt.Println(report.SharpeTable(res.Sharpe))
	fmt.Println()

	summaries := make([]models.EnsembleSummary, 0, len(res.Instruments))
	for _, ir := range res.Instruments {
		summaries = append(summaries, ir.Summary)
	}
	fmt.Printf("Terminal values after %d years\n", years)
	fmt.Println(report.SummaryTable(summaries))
	fmt.Println()

	for _, u := range res.Underperformance {
		fmt.Println(report.UnderperformanceStatement(u, years))
	}
}

func writeCharts(res *core.ComparisonResult, cfg *config.Config, log zerolog.Logger) error {
	ext := "." + cfg.Output.ChartFormat
	var written []string

	for _, ir := range res.Instruments {
		chart, err := report.PathChart(ir.Ensemble, report.PathChartOptions{MaxPaths: cfg.Output.MaxPlottedPaths})
		if err != nil {
			return err
		}

		path := filepath.Join(cfg.Output.Dir, strings.ToLower(ir.Ticker)+"_paths"+ext)
		if err := chart.Save(path); err != nil {
			return err
		}
		written = append(written, path)
	}

	if len(res.Densities) > 0 {
		chart, err := report.DensityChart(res.Densities, report.DensityChartOptions{})
		if err != nil {
			return err
		}

		path := filepath.Join(cfg.Output.Dir, "terminal_value_density"+ext)
		if err := chart.Save(path); err != nil {
			return err
		}
		written = append(written, path)
	}

	log.Info().Strs("files", written).Msg("Charts written")
	return nil
}
