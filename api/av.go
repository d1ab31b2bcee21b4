package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog"

	ex "github.com/andrewhamaty/qqq-voo-monte-carlo/data/extensions"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

// public
const (
	HostDefault = "www.alphavantage.co"
	SourceName  = "alphavantage"
)

// private
const (
	schemeHttps = "https"

	apiKey     = "apikey"
	dataType   = "datatype"
	outputSize = "outputsize"
	symbol     = "symbol"
	function   = "function"

	defaultOutputSize = "full"
	defaultDataType   = "json"

	query    = "query"
	metaData = "Meta Data"

	requestTimeout = time.Second * 30

	Open             = "Open"
	High             = "High"
	Low              = "Low"
	Close            = "Close"
	AdjustedClose    = "AdjustedClose"
	Volume           = "Volume"
	DividendAmount   = "DividendAmount"
	SplitCoefficient = "SplitCoefficient"
)

var (
	// ErrApiResponse is returned when alpha vantage answers with an error, rate limit or premium notice instead of data.
	ErrApiResponse = errors.New("alpha vantage error response")

	// ErrNoData is returned when a ticker has no closes in the requested window.
	ErrNoData = errors.New("no data returned")

	timeSeriesDateFormats = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
	}

	// the payload keys alpha vantage uses instead of "Meta Data" when it refuses a request
	errorPayloadKeys = []string{"Error Message", "Note", "Information"}

	// <TimeSeriesData attribute, suffix of the json key>
	timeSeriesDataResultKeys = map[string]string{
		Open:             ". open",
		High:             ". high",
		Low:              ". low",
		Close:            ". close",
		AdjustedClose:    ". adjusted close",
		Volume:           ". volume",
		DividendAmount:   ". dividend amount",
		SplitCoefficient: ". split coefficient",
	}
)

type AlphaVantageClient struct {
	*Client
	timeSeries TimeSeries
	log        zerolog.Logger
}

func GetClient(apiKey string, timeSeries TimeSeries, log zerolog.Logger) *AlphaVantageClient {
	return NewAlphaVantageClient(ClientFactory(HostDefault, apiKey, requestTimeout), timeSeries, log)
}

func NewAlphaVantageClient(client *Client, timeSeries TimeSeries, log zerolog.Logger) *AlphaVantageClient {
	return &AlphaVantageClient{
		Client:     client,
		timeSeries: timeSeries,
		log:        log.With().Str("source", SourceName).Logger(),
	}
}

type TimeSeriesResult struct {
	MetaData   TimeSeriesMetaData
	TimeSeries []*TimeSeriesData // oldest first
}

type TimeSeriesMetaData struct {
	Information   string
	Symbol        string
	LastRefreshed time.Time
	TimeZone      string
}

type TimeSeriesData struct {
	Timestamp        time.Time
	Open             null.Float
	High             null.Float
	Low              null.Float
	Close            null.Float
	AdjustedClose    null.Float
	Volume           null.Float
	DividendAmount   null.Float
	SplitCoefficient null.Float
}

// GetDailyCloses fetches every ticker one after the other (the free tier is rate limited per minute) and
// keeps the closes in [start, end). Adjusted closes are used when the configured series is adjusted.
func (avc *AlphaVantageClient) GetDailyCloses(ctx context.Context, tickers []string, start, end time.Time) (*models.PriceTable, error) {
	series := make(map[string][]models.PricePoint, len(tickers))

	for _, ticker := range tickers {
		t := time.Now()
		res, err := avc.StockTimeSeries(ctx, avc.timeSeries, ticker)
		if err != nil {
			return nil, fmt.Errorf("error getting %s for %s: %w", avc.timeSeries.Function(), ticker, err)
		}

		points := make([]models.PricePoint, 0, len(res.TimeSeries))
		for _, tsd := range res.TimeSeries {
			if tsd.Timestamp.Before(start) || !tsd.Timestamp.Before(end) {
				continue
			}

			price := tsd.Close
			if avc.timeSeries.IsAdjusted() {
				price = tsd.AdjustedClose
			}
			points = append(points, models.PricePoint{Timestamp: tsd.Timestamp, Price: price})
		}

		if len(points) == 0 {
			return nil, fmt.Errorf("%w for %s between %s and %s", ErrNoData, ticker, ex.FmtShort(start), ex.FmtShort(end))
		}

		series[ticker] = points
		avc.log.Debug().
			Str("ticker", ticker).
			Str("series", avc.timeSeries.Name()).
			Int("received", len(res.TimeSeries)).
			Int("kept", len(points)).
			Msgf("Fetched daily closes (time: %v)", time.Since(t))
	}

	return models.BuildPriceTable(series), nil
}

// StockTimeSeries queries a full daily time series for ticker
func (avc *AlphaVantageClient) StockTimeSeries(ctx context.Context, timeSeries TimeSeries, ticker string) (*TimeSeriesResult, error) {
	endpoint := avc.buildRequestPath(map[string]string{
		function: timeSeries.Function(),
		symbol:   ticker,
	})

	response, err := avc.connection.Request(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrApiResponse, response.Status)
	}

	return parseTimeSeriesRequestResult(response.Body, timeSeries.TimeSeriesKey())
}

func (c *Client) buildRequestPath(params map[string]string) *url.URL {
	// build our URL
	endpoint := &url.URL{}
	endpoint.Path = query

	// base parameters
	query := endpoint.Query()
	query.Set(apiKey, c.apiKey)
	query.Set(dataType, defaultDataType)
	query.Set(outputSize, defaultOutputSize)

	// additional parameters
	for key, value := range params {
		query.Set(key, value)
	}

	endpoint.RawQuery = query.Encode()

	return endpoint
}

func parseTimeSeriesRequestResult(reader io.Reader, timeSeriesKey string) (*TimeSeriesResult, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	// converting to a <string, raw message> map
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	if _, ok := raw[metaData]; !ok {
		return nil, errorPayload(raw)
	}

	md, err := parseMetaData(raw[metaData])
	if err != nil {
		return nil, err
	}

	ts, err := parseTimeSeries(raw, timeSeriesKey)
	if err != nil {
		return nil, err
	}

	return &TimeSeriesResult{
		MetaData:   md,
		TimeSeries: ts,
	}, nil
}

func errorPayload(raw map[string]json.RawMessage) error {
	for _, key := range errorPayloadKeys {
		msg, ok := raw[key]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			s = string(msg)
		}
		return fmt.Errorf("%w: %s", ErrApiResponse, s)
	}

	return fmt.Errorf("%w: response has no %q, keys: %v", ErrApiResponse, metaData, slices.Sorted(maps.Keys(raw)))
}

// parseMetaData matches keys on their suffix, the numbering differs between functions
// e.g. "3. Last Refreshed" vs "4. Time Zone"/"5. Time Zone"
func parseMetaData(raw json.RawMessage) (TimeSeriesMetaData, error) {
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return TimeSeriesMetaData{}, fmt.Errorf("error unmarshaling metadata: %w", err)
	}

	keys := slices.Collect(maps.Keys(values))
	get := func(suffix string) string {
		key, _ := ex.FilterFirst(keys, func(k string) bool { return strings.HasSuffix(k, ". "+suffix) })
		return values[key]
	}

	md := TimeSeriesMetaData{
		Information: get("Information"),
		Symbol:      get("Symbol"),
		TimeZone:    get("Time Zone"),
	}

	if lr := get("Last Refreshed"); lr != "" {
		lastRefreshed, err := parseDate(lr)
		if err != nil {
			return TimeSeriesMetaData{}, err
		}
		md.LastRefreshed = lastRefreshed
	}

	return md, nil
}

func parseTimeSeries(raw map[string]json.RawMessage, key string) ([]*TimeSeriesData, error) {
	rawSeries, ok := raw[key]
	if !ok {
		return nil, fmt.Errorf("%w: response has no %q", ErrApiResponse, key)
	}

	var timeSeriesElements map[string]map[string]string
	if err := json.Unmarshal(rawSeries, &timeSeriesElements); err != nil {
		return nil, fmt.Errorf("error unmarshaling time series: %w", err)
	}

	timeSeries := make([]*TimeSeriesData, 0, len(timeSeriesElements))
	lookup := make(map[string]string) // <json result key string, time series data attribute name>
	for timeSeriesKey, timeSeriesValue := range timeSeriesElements {
		if len(lookup) == 0 {
			avResponseValueHeaders := slices.Collect(maps.Keys(timeSeriesValue))
			for attribute, suffix := range timeSeriesDataResultKeys {
				f := func(s string) bool {
					return strings.HasSuffix(strings.ToLower(s), suffix)
				}
				if jsonKey, ok := ex.FilterFirst(avResponseValueHeaders, f); ok {
					lookup[jsonKey] = attribute
				}
			}
			if len(lookup) == 0 {
				return nil, fmt.Errorf("error generating key value map from av response object. Available headers: %v", avResponseValueHeaders)
			}
		}

		timestamp, err := parseDate(timeSeriesKey)
		if err != nil {
			return nil, fmt.Errorf("error converting TIMESTAMP from string to time.Time: %w", err)
		}

		tsd := TimeSeriesData{Timestamp: timestamp}
		v := reflect.ValueOf(&tsd).Elem()

		for jsonKey, structAttribute := range lookup {
			field := v.FieldByName(structAttribute)
			if !field.IsValid() || !field.CanSet() {
				return nil, fmt.Errorf("field %s cannot be set", structAttribute)
			}

			field.Set(reflect.ValueOf(parseFloat(timeSeriesValue[jsonKey])))
		}

		timeSeries = append(timeSeries, &tsd)
	}

	slices.SortFunc(timeSeries, func(a, b *TimeSeriesData) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return timeSeries, nil
}

func parseDate(dateString string) (time.Time, error) {
	for _, format := range timeSeriesDateFormats {
		t, err := time.Parse(format, dateString)
		if err != nil {
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("error converting date %s to time.Time", dateString)
}

func parseFloat(val string) null.Float {
	if val != "" {
		if conv, err := strconv.ParseFloat(val, 64); err == nil {
			return null.NewFloat(conv, true)
		}
	}
	return null.NewFloat(0, false)
}
