package examples

import (
	"errors"
	"fmt"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/indicator"
	"github.com/ridopark/JonBuhReplay/pkg/strategy"
	"github.com/shopspring/decimal"
)

// SMACrossover enters when the short SMA crosses above the long SMA and
// exits on the reverse cross. Percent-of-portfolio sizing.
type SMACrossover struct {
	*strategy.BaseStrategy
	symbol      string
	shortPeriod int
	longPeriod  int
	percent     decimal.Decimal
}

// NewSMACrossover creates an SMA crossover strategy on symbol.
func NewSMACrossover(symbol string, shortPeriod, longPeriod int, percent decimal.Decimal) (*SMACrossover, error) {
	if shortPeriod >= longPeriod {
		return nil, fmt.Errorf("short period %d must be below long period %d", shortPeriod, longPeriod)
	}

	base := strategy.NewBaseStrategy("SMACrossover", map[string]interface{}{
		"symbol":      symbol,
		"shortPeriod": shortPeriod,
		"longPeriod":  longPeriod,
		"percent":     percent.String(),
	})
	base.SetWarmupBars(longPeriod + 1)

	return &SMACrossover{
		BaseStrategy: base,
		symbol:       symbol,
		shortPeriod:  shortPeriod,
		longPeriod:   longPeriod,
		percent:      percent,
	}, nil
}

// OnBar checks the crossover condition against the latest bar.
func (s *SMACrossover) OnBar(ctx *strategy.Context, bar event.Bar) ([]event.Signal, error) {
	if bar.Symbol != s.symbol {
		return nil, nil
	}

	// One bar beyond the long period when available, so the previous
	// crossover state is observable too. On the first definable bar the
	// previous state counts as not-above.
	have := ctx.BarCount(s.symbol)
	if have < s.longPeriod {
		return nil, nil
	}
	n := s.longPeriod + 1
	if have < n {
		n = s.longPeriod
	}
	closes, err := ctx.Closes(s.symbol, n)
	if err != nil {
		var insufficient *strategy.InsufficientHistoryError
		if errors.As(err, &insufficient) {
			return nil, nil
		}
		return nil, err
	}

	shortSMA, err := indicator.SMA(closes, s.shortPeriod)
	if err != nil {
		return nil, err
	}
	longSMA, err := indicator.SMA(closes, s.longPeriod)
	if err != nil {
		return nil, err
	}

	last := len(closes) - 1
	if !longSMA[last].Valid {
		return nil, nil
	}

	prevAbove := last > 0 && shortSMA[last-1].Valid && longSMA[last-1].Valid &&
		shortSMA[last-1].Decimal.GreaterThan(longSMA[last-1].Decimal)
	currAbove := shortSMA[last].Decimal.GreaterThan(longSMA[last].Decimal)

	snapshot := map[string]decimal.Decimal{
		fmt.Sprintf("sma_%d", s.shortPeriod): shortSMA[last].Decimal,
		fmt.Sprintf("sma_%d", s.longPeriod):  longSMA[last].Decimal,
	}

	if !prevAbove && currAbove && !ctx.HasPosition(s.symbol) {
		sig, err := ctx.Buy(s.symbol, s.percent,
			strategy.WithReason("bullish_crossover"),
			strategy.WithIndicators(snapshot),
		)
		if err != nil {
			return nil, err
		}
		return []event.Signal{sig}, nil
	}

	if prevAbove && !currAbove && ctx.HasPosition(s.symbol) {
		sig, err := ctx.Sell(s.symbol, decimal.Zero,
			strategy.WithReason("bearish_crossover"),
			strategy.WithIndicators(snapshot),
		)
		if err != nil {
			return nil, err
		}
		return []event.Signal{sig}, nil
	}

	return nil, nil
}
