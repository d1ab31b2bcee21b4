package models

import (
	"slices"
	"time"

	"github.com/guregu/null/v6"
)

// PricePoint is a single dated close. Price is invalid when the source had no data for the date.
type PricePoint struct {
	Timestamp time.Time
	Price     null.Float
}

// PriceSeries is an ordered (oldest first) sequence of closes for one instrument.
type PriceSeries struct {
	Ticker string
	Points []PricePoint
}

func (ps PriceSeries) Len() int {
	return len(ps.Points)
}

// PriceTable holds daily closes keyed by date with one column per ticker.
// Every column has the same length as Dates.
type PriceTable struct {
	Dates   []time.Time
	Columns map[string][]null.Float
}

func NewPriceTable(dates []time.Time) *PriceTable {
	return &PriceTable{
		Dates:   dates,
		Columns: make(map[string][]null.Float),
	}
}

// Tickers returns the column names in sorted order.
func (pt *PriceTable) Tickers() []string {
	res := make([]string, 0, len(pt.Columns))
	for k := range pt.Columns {
		res = append(res, k)
	}
	slices.Sort(res)
	return res
}

// Series extracts the column for ticker, ok is false if the column does not exist.
func (pt *PriceTable) Series(ticker string) (PriceSeries, bool) {
	col, ok := pt.Columns[ticker]
	if !ok {
		return PriceSeries{}, false
	}

	points := make([]PricePoint, len(pt.Dates))
	for i, d := range pt.Dates {
		points[i] = PricePoint{Timestamp: d, Price: col[i]}
	}

	return PriceSeries{Ticker: ticker, Points: points}, true
}

// ValidCount is the number of non null values in a ticker's column.
func (pt *PriceTable) ValidCount(ticker string) int {
	n := 0
	for _, v := range pt.Columns[ticker] {
		if v.Valid {
			n++
		}
	}
	return n
}

// BuildPriceTable aligns per ticker series onto the union of their dates.
// A ticker with no close on a given date gets a null entry for it.
func BuildPriceTable(series map[string][]PricePoint) *PriceTable {
	seen := make(map[time.Time]struct{})
	for _, points := range series {
		for _, p := range points {
			seen[p.Timestamp] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(i, j time.Time) int {
		return i.Compare(j)
	})

	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	table := NewPriceTable(dates)
	for ticker, points := range series {
		col := make([]null.Float, len(dates))
		for _, p := range points {
			col[index[p.Timestamp]] = p.Price
		}
		table.Columns[ticker] = col
	}

	return table
}
