package event

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// InvalidBarError reports a bar that failed construction validation.
type InvalidBarError struct {
	Symbol    string
	Timestamp time.Time
	Reason    string
}

func (e *InvalidBarError) Error() string {
	return fmt.Sprintf("invalid bar %s @ %s: %s", e.Symbol, e.Timestamp.Format(time.RFC3339), e.Reason)
}

// Bar is one OHLCV record for one symbol at one timestamp. Bars are value
// types; once built through NewBar they are never mutated.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
	Timeframe string
}

// NewBar validates and constructs a Bar. Timestamps must be timezone-aware;
// they are normalized to UTC. Prices must satisfy low <= open,close <= high
// and all be positive.
func NewBar(symbol string, timestamp time.Time, open, high, low, close decimal.Decimal, volume int64, timeframe string) (Bar, error) {
	fail := func(reason string) (Bar, error) {
		return Bar{}, &InvalidBarError{Symbol: symbol, Timestamp: timestamp, Reason: reason}
	}

	if symbol == "" {
		return fail("empty symbol")
	}
	if timestamp.IsZero() {
		return fail("zero timestamp")
	}
	if !open.IsPositive() || !high.IsPositive() || !low.IsPositive() || !close.IsPositive() {
		return fail("non-positive price")
	}
	if low.GreaterThan(high) {
		return fail("low > high")
	}
	if open.LessThan(low) || open.GreaterThan(high) {
		return fail("open outside [low, high]")
	}
	if close.LessThan(low) || close.GreaterThan(high) {
		return fail("close outside [low, high]")
	}
	if volume < 0 {
		return fail("negative volume")
	}

	return Bar{
		Symbol:    symbol,
		Timestamp: timestamp.UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		Timeframe: timeframe,
	}, nil
}

// BarCSVHeader is the column layout used by MarshalRecord/UnmarshalBarRecord.
var BarCSVHeader = []string{"symbol", "timestamp", "open", "high", "low", "close", "volume", "timeframe"}

// MarshalRecord renders the bar as a CSV record matching BarCSVHeader.
func (b Bar) MarshalRecord() []string {
	return []string{
		b.Symbol,
		b.Timestamp.UTC().Format(time.RFC3339),
		b.Open.String(),
		b.High.String(),
		b.Low.String(),
		b.Close.String(),
		strconv.FormatInt(b.Volume, 10),
		b.Timeframe,
	}
}

// UnmarshalBarRecord parses a CSV record written by MarshalRecord back into a
// validated Bar.
func UnmarshalBarRecord(record []string) (Bar, error) {
	if len(record) != len(BarCSVHeader) {
		return Bar{}, fmt.Errorf("bar record has %d fields, want %d", len(record), len(BarCSVHeader))
	}

	timestamp, err := time.Parse(time.RFC3339, record[1])
	if err != nil {
		return Bar{}, fmt.Errorf("bar record timestamp: %w", err)
	}

	prices := make([]decimal.Decimal, 4)
	for i, field := range record[2:6] {
		d, err := decimal.NewFromString(field)
		if err != nil {
			return Bar{}, fmt.Errorf("bar record %s: %w", BarCSVHeader[i+2], err)
		}
		prices[i] = d
	}

	volume, err := strconv.ParseInt(record[6], 10, 64)
	if err != nil {
		return Bar{}, fmt.Errorf("bar record volume: %w", err)
	}

	return NewBar(record[0], timestamp, prices[0], prices[1], prices[2], prices[3], volume, record[7])
}
