package api

import "strings"

// TimeSeries specifies which daily series to query for stock data.
type TimeSeries uint8

const (
	TimeSeriesDaily TimeSeries = iota
	TimeSeriesDailyAdjusted
)

func (t TimeSeries) Name() string {
	switch t {
	case TimeSeriesDaily:
		return "TimeSeriesDaily"
	case TimeSeriesDailyAdjusted:
		return "TimeSeriesDailyAdjusted"
	default:
		return ""
	}
}

func (t TimeSeries) Function() string {
	switch t {
	case TimeSeriesDaily:
		return "TIME_SERIES_DAILY"
	case TimeSeriesDailyAdjusted:
		return "TIME_SERIES_DAILY_ADJUSTED"
	default:
		return ""
	}
}

// TimeSeriesKey is the top level key holding the dated values in the response.
func (t TimeSeries) TimeSeriesKey() string {
	switch t {
	case TimeSeriesDaily, TimeSeriesDailyAdjusted:
		return "Time Series (Daily)"
	default:
		return ""
	}
}

func (t TimeSeries) IsAdjusted() bool {
	return strings.HasSuffix(t.Function(), "_ADJUSTED")
}

// ParseTimeSeries maps a config value ("daily", "daily_adjusted") to a TimeSeries.
func ParseTimeSeries(s string) (TimeSeries, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return TimeSeriesDaily, true
	case "", "daily_adjusted", "dailyadjusted":
		return TimeSeriesDailyAdjusted, true
	default:
		return 0, false
	}
}
