package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
	"golang.org/x/sync/errgroup"

	ex "github.com/andrewhamaty/qqq-voo-monte-carlo/data/extensions"
	m "github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

const (
	SourceName = "yahoo"

	dailyInterval = "1d"
	maxConcurrent = 4
)

var ErrNoData = errors.New("no data returned")

// periods yahoo accepts, smallest first, with the lookback each one covers
var periods = []struct {
	name  string
	years int
}{
	{"1y", 1},
	{"2y", 2},
	{"5y", 5},
	{"10y", 10},
}

// HistoryFunc downloads bars for one symbol.
type HistoryFunc func(symbol string, params models.HistoryParams) ([]models.Bar, error)

// Client reads split/dividend adjusted daily closes from Yahoo Finance.
type Client struct {
	history HistoryFunc
	now     func() time.Time
	log     zerolog.Logger
}

func NewClient(log zerolog.Logger) *Client {
	return NewClientWithHistory(tickerHistory, log)
}

func NewClientWithHistory(history HistoryFunc, log zerolog.Logger) *Client {
	return &Client{
		history: history,
		now:     time.Now,
		log:     log.With().Str("source", SourceName).Logger(),
	}
}

func tickerHistory(symbol string, params models.HistoryParams) ([]models.Bar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	return t.History(params)
}

// GetDailyCloses downloads every ticker concurrently and keeps closes in [start, end).
// The fetch is all or nothing: the first failing ticker cancels the rest.
func (c *Client) GetDailyCloses(ctx context.Context, tickers []string, start, end time.Time) (*m.PriceTable, error) {
	params := models.HistoryParams{
		Period:     c.periodFor(start),
		Interval:   dailyInterval,
		AutoAdjust: true,
	}

	var mu sync.Mutex
	series := make(map[string][]m.PricePoint, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for _, symbol := range tickers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			t := time.Now()
			bars, err := c.history(symbol, params)
			if err != nil {
				return fmt.Errorf("failed to get historical prices for %s: %w", symbol, err)
			}

			points := barsToPoints(bars, start, end)
			if len(points) == 0 {
				return fmt.Errorf("%w for %s between %s and %s", ErrNoData, symbol, ex.FmtShort(start), ex.FmtShort(end))
			}

			c.log.Debug().
				Str("ticker", symbol).
				Str("period", params.Period).
				Int("received", len(bars)).
				Int("kept", len(points)).
				Msgf("Fetched daily closes (time: %v)", time.Since(t))

			mu.Lock()
			series[symbol] = points
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return m.BuildPriceTable(series), nil
}

// periodFor picks the smallest yahoo period reaching back to start
func (c *Client) periodFor(start time.Time) string {
	today := ex.TruncateDay(c.now())
	for _, p := range periods {
		if !start.Before(today.AddDate(-p.years, 0, 0)) {
			return p.name
		}
	}
	return "max"
}

func barsToPoints(bars []models.Bar, start, end time.Time) []m.PricePoint {
	points := make([]m.PricePoint, 0, len(bars))
	for _, bar := range bars {
		day := ex.TruncateDay(bar.Date)
		if day.Before(start) || !day.Before(end) {
			continue
		}

		price := bar.Close
		valid := price > 0 && !math.IsNaN(price)
		points = append(points, m.PricePoint{Timestamp: day, Price: null.NewFloat(price, valid)})
	}
	return points
}
