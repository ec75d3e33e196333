package backtester

import (
	"fmt"
	"os"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/feed"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FillPolicy selects the reference price orders execute against.
type FillPolicy string

const (
	// FillCloseOfBar executes a bar's signals against that bar's close.
	FillCloseOfBar FillPolicy = "close_of_bar"
	// FillNextBarOpen defers a bar's signals to the next bar's open.
	FillNextBarOpen FillPolicy = "next_bar_open"
)

// Config represents a fully resolved backtest configuration. The CLI layer
// owns flag/env/file precedence; the engine only ever sees resolved values.
type Config struct {
	Symbols            []string
	Timeframe          string
	StartDate          time.Time
	EndDate            time.Time
	InitialCapital     decimal.Decimal
	CommissionPerShare decimal.Decimal
	SlippageBps        int64
	FillPolicy         FillPolicy
	WarmupBars         int // -1 means derive from the strategy
	Completeness       feed.CompletenessPolicy
	StrategyParams     map[string]interface{}
}

// DefaultConfig returns the documented defaults: 100k capital, $0.01/share
// commission, zero slippage, close-of-bar fills, strict completeness,
// strategy-derived warm-up.
func DefaultConfig() Config {
	return Config{
		Timeframe:          "1D",
		InitialCapital:     decimal.NewFromInt(100_000),
		CommissionPerShare: decimal.NewFromFloat(0.01),
		SlippageBps:        0,
		FillPolicy:         FillCloseOfBar,
		WarmupBars:         -1,
		Completeness:       feed.PolicyStrict,
	}
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol required")
	}
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("config: initial capital must be positive, got %s", c.InitialCapital)
	}
	if c.CommissionPerShare.IsNegative() {
		return fmt.Errorf("config: commission per share must be non-negative, got %s", c.CommissionPerShare)
	}
	if c.SlippageBps < 0 {
		return fmt.Errorf("config: slippage bps must be non-negative, got %d", c.SlippageBps)
	}
	if c.FillPolicy != FillCloseOfBar && c.FillPolicy != FillNextBarOpen {
		return fmt.Errorf("config: unknown fill policy %q", c.FillPolicy)
	}
	if !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("config: end date before start date")
	}
	return nil
}

// SignalSymbol returns the symbol driving strategy decisions: the first of
// the universe.
func (c *Config) SignalSymbol() string {
	if len(c.Symbols) == 0 {
		return ""
	}
	return c.Symbols[0]
}

// configYAML mirrors Config for file loading. Money fields are strings so
// they never pass through binary floats.
type configYAML struct {
	Symbols            []string               `yaml:"symbols"`
	Timeframe          string                 `yaml:"timeframe"`
	StartDate          string                 `yaml:"start_date"`
	EndDate            string                 `yaml:"end_date"`
	InitialCapital     string                 `yaml:"initial_capital"`
	CommissionPerShare string                 `yaml:"commission_per_share"`
	SlippageBps        int64                  `yaml:"slippage_bps"`
	FillPolicy         string                 `yaml:"fill_policy"`
	WarmupBars         *int                   `yaml:"warmup_bars"`
	Completeness       string                 `yaml:"completeness"`
	StrategyParams     map[string]interface{} `yaml:"strategy_params"`
}

// LoadConfig reads and parses a YAML run configuration, applying defaults
// for omitted fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw configYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	config := DefaultConfig()
	config.Symbols = raw.Symbols
	config.StrategyParams = raw.StrategyParams

	if raw.Timeframe != "" {
		config.Timeframe = raw.Timeframe
	}
	if raw.StartDate != "" {
		start, err := time.Parse("2006-01-02", raw.StartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start_date: %w", err)
		}
		config.StartDate = start.UTC()
	}
	if raw.EndDate != "" {
		end, err := time.Parse("2006-01-02", raw.EndDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end_date: %w", err)
		}
		// Include the entire end day.
		config.EndDate = end.UTC().Add(24*time.Hour - time.Nanosecond)
	}
	if raw.InitialCapital != "" {
		capital, err := decimal.NewFromString(raw.InitialCapital)
		if err != nil {
			return nil, fmt.Errorf("invalid initial_capital: %w", err)
		}
		config.InitialCapital = capital
	}
	if raw.CommissionPerShare != "" {
		commission, err := decimal.NewFromString(raw.CommissionPerShare)
		if err != nil {
			return nil, fmt.Errorf("invalid commission_per_share: %w", err)
		}
		config.CommissionPerShare = commission
	}
	if raw.SlippageBps != 0 {
		config.SlippageBps = raw.SlippageBps
	}
	if raw.FillPolicy != "" {
		config.FillPolicy = FillPolicy(raw.FillPolicy)
	}
	if raw.WarmupBars != nil {
		config.WarmupBars = *raw.WarmupBars
	}
	if raw.Completeness != "" {
		config.Completeness = feed.CompletenessPolicy(raw.Completeness)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
