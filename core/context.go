package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

// PriceSource supplies split/dividend adjusted daily closes.
// Implementations return an error wrapping ErrDataRetrieval when a ticker is missing or empty.
type PriceSource interface {
	GetDailyCloses(ctx context.Context, tickers []string, start, end time.Time) (*models.PriceTable, error)
}

type ServiceContext struct {
	Context   context.Context
	Prices    PriceSource
	Simulator *Simulator
	Log       zerolog.Logger
}
