package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	ex "github.com/andrewhamaty/qqq-voo-monte-carlo/data/extensions"
	dm "github.com/andrewhamaty/qqq-voo-monte-carlo/data/models"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

const DefaultCacheMaxAge = 24 * time.Hour

// PriceStore persists downloaded closes per (symbol, source). Implemented by repos.Postgres.
type PriceStore interface {
	GetMetadataBySymbol(ctx context.Context, symbol, source string) (*dm.PriceHistoryMetadata, error)
	GetDailyCloses(ctx context.Context, symbol, source string, start, end time.Time) ([]*dm.DailyClose, error)
	SaveDailyCloses(ctx context.Context, metadata *dm.PriceHistoryMetadata, data []*dm.DailyClose) (int64, error)
}

// CachedPriceSource serves closes from a PriceStore and only goes to the upstream source for tickers whose
// cached window is stale or does not cover the request. Only input history is cached.
type CachedPriceSource struct {
	upstream   PriceSource
	store      PriceStore
	sourceName string
	maxAge     time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

func NewCachedPriceSource(upstream PriceSource, store PriceStore, sourceName string, maxAge time.Duration, log zerolog.Logger) *CachedPriceSource {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}

	return &CachedPriceSource{
		upstream:   upstream,
		store:      store,
		sourceName: sourceName,
		maxAge:     maxAge,
		now:        time.Now,
		log:        log,
	}
}

func (c *CachedPriceSource) GetDailyCloses(ctx context.Context, tickers []string, start, end time.Time) (*models.PriceTable, error) {
	metadata := make(map[string]*dm.PriceHistoryMetadata, len(tickers))
	var stale []string

	for _, ticker := range tickers {
		md, err := c.store.GetMetadataBySymbol(ctx, ticker, c.sourceName)
		if err != nil {
			return nil, fmt.Errorf("error determining if %s is cached: %w", ticker, err)
		}

		if md == nil {
			c.log.Info().Str("ticker", ticker).Msg("Ticker not cached yet")
			md = &dm.PriceHistoryMetadata{Symbol: ticker, Source: c.sourceName}
			stale = append(stale, ticker)
		} else if !c.isFresh(md, start, end) {
			c.log.Info().
				Str("ticker", ticker).
				Str("last_refreshed", ex.FmtLong(md.LastRefreshed)).
				Str("covered_start", ex.FmtShort(md.CoveredStart)).
				Str("covered_end", ex.FmtShort(md.CoveredEnd)).
				Msg("Cached closes are stale")
			stale = append(stale, ticker)
		}
		metadata[ticker] = md
	}

	if len(stale) > 0 {
		if err := c.refresh(ctx, stale, metadata, start, end); err != nil {
			return nil, err
		}
	}

	series := make(map[string][]models.PricePoint, len(tickers))
	for _, ticker := range tickers {
		closes, err := c.store.GetDailyCloses(ctx, ticker, c.sourceName, start, end)
		if err != nil {
			return nil, err
		}

		if len(closes) == 0 {
			return nil, fmt.Errorf("%w: no cached closes for %s between %s and %s", ErrDataRetrieval, ticker, ex.FmtShort(start), ex.FmtShort(end))
		}

		points := make([]models.PricePoint, len(closes))
		for i, dc := range closes {
			points[i] = models.PricePoint{Timestamp: ex.TruncateDay(dc.Timestamp), Price: dc.Close}
		}
		series[ticker] = points
	}

	return models.BuildPriceTable(series), nil
}

func (c *CachedPriceSource) isFresh(md *dm.PriceHistoryMetadata, start, end time.Time) bool {
	return md.LastRefreshed.After(c.now().Add(-c.maxAge)) && md.Covers(start, end)
}

// refresh downloads the stale tickers in one upstream call and replaces their cached closes.
// The window fetched is widened to whatever was cached before, so the covered range never shrinks.
func (c *CachedPriceSource) refresh(ctx context.Context, stale []string, metadata map[string]*dm.PriceHistoryMetadata, start, end time.Time) error {
	fetchStart, fetchEnd := start, end
	for _, ticker := range stale {
		md := metadata[ticker]
		if md.Id == 0 {
			continue
		}
		if md.CoveredStart.Before(fetchStart) {
			fetchStart = md.CoveredStart
		}
		if md.CoveredEnd.After(fetchEnd) {
			fetchEnd = md.CoveredEnd
		}
	}

	c.log.Info().
		Strs("tickers", stale).
		Str("start", ex.FmtShort(fetchStart)).
		Str("end", ex.FmtShort(fetchEnd)).
		Msg("Refreshing cached closes")

	table, err := c.upstream.GetDailyCloses(ctx, stale, fetchStart, fetchEnd)
	if err != nil {
		return err
	}

	refreshed := c.now().UTC()
	for _, ticker := range stale {
		series, ok := table.Series(ticker)
		if !ok {
			return fmt.Errorf("%w: upstream returned no data for %s", ErrDataRetrieval, ticker)
		}

		rows := make([]*dm.DailyClose, 0, series.Len())
		for _, p := range series.Points {
			if p.Price.Valid {
				rows = append(rows, &dm.DailyClose{Timestamp: p.Timestamp, Close: p.Price})
			}
		}

		md := metadata[ticker]
		md.CoveredStart = fetchStart
		md.CoveredEnd = fetchEnd
		md.LastRefreshed = refreshed

		ra, err := c.store.SaveDailyCloses(ctx, md, rows)
		if err != nil {
			return fmt.Errorf("error caching closes for %s: %w", ticker, err)
		}

		c.log.Info().Str("ticker", ticker).Int64("rows", ra).Msg("Cached closes")
	}

	return nil
}
