package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// PriceHistoryMetadata tracks which window of a symbol's closes is cached, and when it was fetched.
type PriceHistoryMetadata struct {
	Id            int32     `db:"id"`
	Symbol        string    `db:"symbol"`
	Source        string    `db:"source"`
	CoveredStart  time.Time `db:"covered_start"`
	CoveredEnd    time.Time `db:"covered_end"` // exclusive
	LastRefreshed time.Time `db:"last_refreshed"`
}

// Covers reports whether the cached window contains [start, end).
func (md *PriceHistoryMetadata) Covers(start, end time.Time) bool {
	return !md.CoveredStart.After(start) && !md.CoveredEnd.Before(end)
}

type DailyClose struct {
	SourceId  int32      `db:"source_id"`
	Timestamp time.Time  `db:"timestamp"`
	Close     null.Float `db:"close"`
}
