package feed

import (
	"fmt"
	"sort"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/logging"
	"github.com/rs/zerolog"
)

// HistoricalFeed replays persisted bars as timestamp-ordered groups. The
// first symbol of the universe is the signal symbol; under PolicyLenient it
// alone decides which timestamps are emitted.
type HistoricalFeed struct {
	provider   BarProvider
	symbols    []string
	timeframe  string
	startDate  time.Time
	endDate    time.Time
	warmupBars int
	policy     CompletenessPolicy
	logger     zerolog.Logger

	dataPoints  []DataPoint
	currentIdx  int
	initialized bool
}

// NewHistoricalFeed creates a feed over the provider for the given universe
// and date range. warmupBars of history before start are emitted flagged as
// warm-up.
func NewHistoricalFeed(provider BarProvider, symbols []string, timeframe string, start, end time.Time, warmupBars int, policy CompletenessPolicy) *HistoricalFeed {
	if policy == "" {
		policy = PolicyStrict
	}
	return &HistoricalFeed{
		provider:   provider,
		symbols:    symbols,
		timeframe:  timeframe,
		startDate:  start.UTC(),
		endDate:    end.UTC(),
		warmupBars: warmupBars,
		policy:     policy,
		logger:     logging.GetLogger("historical-feed"),
	}
}

// Initialize loads all bars, prepends warm-up history and groups by
// timestamp under the completeness policy.
func (hf *HistoricalFeed) Initialize() error {
	if hf.initialized {
		return nil
	}
	if len(hf.symbols) == 0 {
		return fmt.Errorf("historical feed: no symbols declared")
	}

	allBars := make(map[string][]event.Bar, len(hf.symbols))
	for _, symbol := range hf.symbols {
		bars, err := hf.provider.GetBars(symbol, hf.timeframe, hf.startDate, hf.endDate)
		if err != nil {
			return fmt.Errorf("failed to load data for symbol %s: %w", symbol, err)
		}

		if hf.warmupBars > 0 {
			warmup, err := hf.provider.GetBarsBefore(symbol, hf.timeframe, hf.startDate, hf.warmupBars)
			if err != nil {
				return fmt.Errorf("failed to load warmup data for symbol %s: %w", symbol, err)
			}
			bars = append(warmup, bars...)
		}

		allBars[symbol] = bars
		hf.logger.Debug().Str("symbol", symbol).Int("bars_loaded", len(bars)).Msg("Data loaded")
	}

	// Group bars by timestamp.
	grouped := make(map[time.Time]map[string]event.Bar)
	for symbol, bars := range allBars {
		for _, bar := range bars {
			if grouped[bar.Timestamp] == nil {
				grouped[bar.Timestamp] = make(map[string]event.Bar)
			}
			grouped[bar.Timestamp][symbol] = bar
		}
	}

	timestamps := make([]time.Time, 0, len(grouped))
	for ts := range grouped {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].Before(timestamps[j])
	})

	signalSymbol := hf.symbols[0]
	skipped := 0
	for _, ts := range timestamps {
		symbolBars := grouped[ts]

		emit := false
		switch hf.policy {
		case PolicyLenient:
			_, emit = symbolBars[signalSymbol]
		default:
			emit = len(symbolBars) == len(hf.symbols)
		}
		if !emit {
			skipped++
			continue
		}

		bars := make([]event.Bar, 0, len(symbolBars))
		for _, symbol := range hf.symbols {
			if bar, ok := symbolBars[symbol]; ok {
				bars = append(bars, bar)
			}
		}
		sort.Slice(bars, func(i, j int) bool { return bars[i].Symbol < bars[j].Symbol })

		hf.dataPoints = append(hf.dataPoints, DataPoint{
			Timestamp: ts,
			Bars:      bars,
			Warmup:    ts.Before(hf.startDate),
		})
	}

	hf.logger.Info().
		Int("total_datapoints", len(hf.dataPoints)).
		Int("skipped_incomplete", skipped).
		Int("symbols", len(hf.symbols)).
		Str("policy", string(hf.policy)).
		Msg("Historical feed initialized")

	hf.initialized = true
	return nil
}

// Next returns the next chronological datapoint, or nil at EOF.
func (hf *HistoricalFeed) Next() (*DataPoint, error) {
	if !hf.initialized {
		if err := hf.Initialize(); err != nil {
			return nil, err
		}
	}
	if hf.currentIdx >= len(hf.dataPoints) {
		return nil, nil
	}
	dp := hf.dataPoints[hf.currentIdx]
	hf.currentIdx++
	return &dp, nil
}

// Close releases the loaded data.
func (hf *HistoricalFeed) Close() error {
	hf.dataPoints = nil
	return nil
}

// Symbols returns the universe of this feed.
func (hf *HistoricalFeed) Symbols() []string {
	return hf.symbols
}

// Timeframe returns the timeframe of the data.
func (hf *HistoricalFeed) Timeframe() string {
	return hf.timeframe
}

// TotalDataPoints returns the number of datapoints loaded.
func (hf *HistoricalFeed) TotalDataPoints() int {
	return len(hf.dataPoints)
}

var _ DataHandler = (*HistoricalFeed)(nil)
