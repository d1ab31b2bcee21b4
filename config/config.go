package config

import (
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ex "github.com/andrewhamaty/qqq-voo-monte-carlo/data/extensions"
	"github.com/andrewhamaty/qqq-voo-monte-carlo/models"
)

const (
	DefaultConfigFile = "config.yaml"

	SourceYahoo        = "yahoo"
	SourceAlphaVantage = "alphavantage"
)

var (
	chartFormats = []string{"png", "svg", "pdf", "jpg"}
	logLevels    = []string{"debug", "info", "warn", "error"}
	timeSeries   = []string{"", "daily", "daily_adjusted"}
)

// Config holds all run configuration. Values come from defaults, then the YAML file, then the environment.
type Config struct {
	Tickers            []string `yaml:"tickers"`
	StartDate          string   `yaml:"start_date"` // YYYY-MM-DD, inclusive
	EndDate            string   `yaml:"end_date"`   // YYYY-MM-DD, exclusive
	LookbackYears      int      `yaml:"lookback_years"`
	HorizonYears       int      `yaml:"horizon_years"`
	TradingDaysPerYear int      `yaml:"trading_days_per_year"`
	Simulations        int      `yaml:"simulations"`
	Seed               uint64   `yaml:"seed"` // 0 picks a random seed
	Workers            int      `yaml:"workers"`
	RiskFreeRate       float64  `yaml:"risk_free_rate"`
	KDEPoints          int      `yaml:"kde_points"`

	Output struct {
		Dir             string `yaml:"dir"`
		ChartFormat     string `yaml:"chart_format"`
		MaxPlottedPaths int    `yaml:"max_plotted_paths"`
		SkipCharts      bool   `yaml:"skip_charts"`
	} `yaml:"output"`

	DataSource   string `yaml:"data_source"`
	AlphaVantage struct {
		APIKey     string `yaml:"api_key"`
		TimeSeries string `yaml:"time_series"` // daily | daily_adjusted
	} `yaml:"alpha_vantage"`

	Cache struct {
		DatabaseURL string        `yaml:"database_url"`
		MaxAge      time.Duration `yaml:"max_age"`
	} `yaml:"cache"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

func defaults() *Config {
	cfg := &Config{
		Tickers:            []string{"QQQ", "VOO"},
		LookbackYears:      10,
		HorizonYears:       10,
		TradingDaysPerYear: models.Daily,
		Simulations:        10_000,
		Workers:            1,
		RiskFreeRate:       models.DefaultRiskFreeRate,
		KDEPoints:          models.DefaultKDEPoints,
		DataSource:         SourceYahoo,
	}
	cfg.Output.Dir = "output"
	cfg.Output.ChartFormat = "png"
	cfg.Output.MaxPlottedPaths = 1_000
	cfg.Cache.MaxAge = 24 * time.Hour
	cfg.Log.Level = "info"
	return cfg
}

// Load reads .env (if present), the YAML file at path (CONFIG_FILE or config.yaml when path is empty,
// a missing default file is fine) and finally applies environment variable overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = getEnv("CONFIG_FILE", "")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigFile
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && (explicit || !os.IsNotExist(err)) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Tickers = ex.NormalizeTickers(cfg.Tickers)
	cfg.DataSource = strings.ToLower(strings.TrimSpace(cfg.DataSource))
	cfg.Output.ChartFormat = strings.ToLower(strings.TrimSpace(cfg.Output.ChartFormat))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.AlphaVantage.TimeSeries = strings.ToLower(strings.TrimSpace(cfg.AlphaVantage.TimeSeries))

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := getEnv("TICKERS", ""); v != "" {
		c.Tickers = strings.Split(v, ",")
	}
	c.StartDate = getEnv("START_DATE", c.StartDate)
	c.EndDate = getEnv("END_DATE", c.EndDate)
	c.DataSource = getEnv("DATA_SOURCE", c.DataSource)
	c.AlphaVantage.APIKey = getEnv("ALPHAVANTAGE_API_KEY", c.AlphaVantage.APIKey)
	c.AlphaVantage.TimeSeries = getEnv("ALPHAVANTAGE_TIME_SERIES", c.AlphaVantage.TimeSeries)
	c.Cache.DatabaseURL = getEnv("DATABASE_URL", c.Cache.DatabaseURL)
	c.Output.Dir = getEnv("OUTPUT_DIR", c.Output.Dir)
	c.Output.ChartFormat = getEnv("CHART_FORMAT", c.Output.ChartFormat)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	var err error
	ints := []struct {
		key string
		dst *int
	}{
		{"LOOKBACK_YEARS", &c.LookbackYears},
		{"HORIZON_YEARS", &c.HorizonYears},
		{"TRADING_DAYS_PER_YEAR", &c.TradingDaysPerYear},
		{"SIMULATIONS", &c.Simulations},
		{"WORKERS", &c.Workers},
		{"KDE_POINTS", &c.KDEPoints},
		{"MAX_PLOTTED_PATHS", &c.Output.MaxPlottedPaths},
	}
	for _, e := range ints {
		if *e.dst, err = getEnvAsInt(e.key, *e.dst); err != nil {
			return err
		}
	}

	if c.Seed, err = getEnvAsUint("SEED", c.Seed); err != nil {
		return err
	}
	if c.RiskFreeRate, err = getEnvAsFloat("RISK_FREE_RATE", c.RiskFreeRate); err != nil {
		return err
	}
	if c.Cache.MaxAge, err = getEnvAsDuration("CACHE_MAX_AGE", c.Cache.MaxAge); err != nil {
		return err
	}
	if c.Output.SkipCharts, err = getEnvAsBool("SKIP_CHARTS", c.Output.SkipCharts); err != nil {
		return err
	}
	if c.Log.Pretty, err = getEnvAsBool("LOG_PRETTY", c.Log.Pretty); err != nil {
		return err
	}

	return nil
}

// Validate checks every field a run depends on.
func (c *Config) Validate() error {
	if len(c.Tickers) < 2 {
		return fmt.Errorf("at least 2 distinct tickers are required, got %v", c.Tickers)
	}
	if c.HorizonYears <= 0 {
		return fmt.Errorf("horizon_years must be positive")
	}
	if c.TradingDaysPerYear <= 0 {
		return fmt.Errorf("trading_days_per_year must be positive")
	}
	if c.Simulations <= 0 {
		return fmt.Errorf("simulations must be positive")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.KDEPoints < 2 {
		return fmt.Errorf("kde_points must be at least 2")
	}
	if math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0) {
		return fmt.Errorf("risk_free_rate must be a finite number")
	}
	if c.Output.MaxPlottedPaths <= 0 {
		return fmt.Errorf("output.max_plotted_paths must be positive")
	}
	if !slices.Contains(chartFormats, c.Output.ChartFormat) {
		return fmt.Errorf("output.chart_format must be one of %v, got %q", chartFormats, c.Output.ChartFormat)
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		return fmt.Errorf("log.level must be one of %v, got %q", logLevels, c.Log.Level)
	}

	switch c.DataSource {
	case SourceYahoo:
	case SourceAlphaVantage:
		if c.AlphaVantage.APIKey == "" {
			return fmt.Errorf("alpha_vantage.api_key (ALPHAVANTAGE_API_KEY) is required for data source %s", SourceAlphaVantage)
		}
		if !slices.Contains(timeSeries, c.AlphaVantage.TimeSeries) {
			return fmt.Errorf("alpha_vantage.time_series must be daily or daily_adjusted, got %q", c.AlphaVantage.TimeSeries)
		}
	default:
		return fmt.Errorf("data_source must be %s or %s, got %q", SourceYahoo, SourceAlphaVantage, c.DataSource)
	}

	if _, _, err := c.Window(time.Now()); err != nil {
		return err
	}

	return nil
}

// Window resolves the historical window [start, end). End defaults to today and start to LookbackYears before end.
func (c *Config) Window(now time.Time) (start, end time.Time, err error) {
	end = ex.TruncateDay(now)
	if c.EndDate != "" {
		if end, err = ex.ParseShort(c.EndDate); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
		}
	}

	if c.StartDate != "" {
		if start, err = ex.ParseShort(c.StartDate); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
		}
	} else {
		if c.LookbackYears <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("lookback_years must be positive when start_date is not set")
		}
		start = end.AddDate(-c.LookbackYears, 0, 0)
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s must be before end date %s", ex.FmtShort(start), ex.FmtShort(end))
	}

	return start, end, nil
}

// ToSettings builds the comparison inputs for a run started at now.
func (c *Config) ToSettings(now time.Time) (models.ComparisonSettings, error) {
	start, end, err := c.Window(now)
	if err != nil {
		return models.ComparisonSettings{}, err
	}

	return models.ComparisonSettings{
		Tickers:            slices.Clone(c.Tickers),
		StartDate:          start,
		EndDate:            end,
		HorizonYears:       c.HorizonYears,
		TradingDaysPerYear: c.TradingDaysPerYear,
		Simulations:        c.Simulations,
		RiskFreeRate:       c.RiskFreeRate,
		KDEPoints:          c.KDEPoints,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(s, "_", ""))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvAsUint(key string, defaultValue uint64) (uint64, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
