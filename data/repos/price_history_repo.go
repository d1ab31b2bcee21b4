package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	m "github.com/andrewhamaty/qqq-voo-monte-carlo/data/models"
	q "github.com/andrewhamaty/qqq-voo-monte-carlo/data/queries"
)

const priceHistoryDataTable = "price_history_data"

func (pg *Postgres) GetMetadataBySymbol(ctx context.Context, symbol, source string) (*m.PriceHistoryMetadata, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
		"source": source,
	}

	res, err := Query[m.PriceHistoryMetadata](ctx, pg, q.Get(q.QueryHelper.Select.MetadataBySymbol), args)
	if err != nil {
		return nil, fmt.Errorf("unable to query metadata by symbol (%s): %w", symbol, err)
	}

	if len(res) == 0 {
		return nil, nil
	}

	return res[0], nil
}

func (pg *Postgres) InsertMetadata(ctx context.Context, metadata *m.PriceHistoryMetadata, tx *pgx.Tx) error {
	args := pgx.NamedArgs{
		"symbol":         metadata.Symbol,
		"source":         metadata.Source,
		"covered_start":  metadata.CoveredStart,
		"covered_end":    metadata.CoveredEnd,
		"last_refreshed": metadata.LastRefreshed,
	}

	query := q.Get(q.QueryHelper.Insert.Metadata)

	var err error
	if tx == nil {
		err = pg.db.QueryRow(ctx, query, args).Scan(&metadata.Id)
	} else {
		err = (*tx).QueryRow(ctx, query, args).Scan(&metadata.Id)
	}

	if err != nil {
		return fmt.Errorf("error inserting new metadata for %s: %w", metadata.Symbol, err)
	}

	return nil
}

func (pg *Postgres) UpdateMetadata(ctx context.Context, metadata *m.PriceHistoryMetadata, tx *pgx.Tx) error {
	args := pgx.NamedArgs{
		"id":             metadata.Id,
		"covered_start":  metadata.CoveredStart,
		"covered_end":    metadata.CoveredEnd,
		"last_refreshed": metadata.LastRefreshed,
	}

	if err := pg.exec(ctx, q.Get(q.QueryHelper.Update.Metadata), args, tx); err != nil {
		return fmt.Errorf("error updating metadata for %s: %w", metadata.Symbol, err)
	}

	return nil
}

// GetDailyCloses returns the cached closes of symbol in [start, end), oldest first.
func (pg *Postgres) GetDailyCloses(ctx context.Context, symbol, source string, start, end time.Time) ([]*m.DailyClose, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
		"source": source,
		"start":  start,
		"end":    end,
	}

	res, err := Query[m.DailyClose](ctx, pg, q.Get(q.QueryHelper.Select.DailyClosesBySymbol), args)
	if err != nil {
		return nil, fmt.Errorf("unable to query daily closes by symbol (%s): %w", symbol, err)
	}
	return res, nil
}

func (pg *Postgres) InsertDailyCloses(ctx context.Context, data []*m.DailyClose, sourceId int32, tx *pgx.Tx) (int64, error) {
	columns := []string{"source_id", "timestamp", "close"}

	entries := make([][]any, len(data))
	for i, ent := range data {
		entries[i] = []any{sourceId, ent.Timestamp, ent.Close}
	}

	return pg.BulkInsert(ctx, priceHistoryDataTable, columns, entries, tx)
}

// SaveDailyCloses replaces every cached close of the symbol with data and records the new covered window,
// all in one transaction.
func (pg *Postgres) SaveDailyCloses(ctx context.Context, metadata *m.PriceHistoryMetadata, data []*m.DailyClose) (int64, error) {
	tx, err := pg.GetTransaction(ctx)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	if metadata.Id == 0 {
		if err := pg.InsertMetadata(ctx, metadata, &tx); err != nil {
			return 0, err
		}
	} else {
		if err := pg.UpdateMetadata(ctx, metadata, &tx); err != nil {
			return 0, err
		}

		args := pgx.NamedArgs{"source_id": metadata.Id}
		if err := pg.exec(ctx, q.Get(q.QueryHelper.Delete.DailyClosesBySourceId), args, &tx); err != nil {
			return 0, fmt.Errorf("error clearing cached closes for %s: %w", metadata.Symbol, err)
		}
	}

	var ra int64
	if len(data) > 0 {
		ra, err = pg.InsertDailyCloses(ctx, data, metadata.Id, &tx)
		if err != nil {
			return 0, fmt.Errorf("error inserting daily closes for %s: %w", metadata.Symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing price history for %s: %w", metadata.Symbol, err)
	}

	return ra, nil
}
