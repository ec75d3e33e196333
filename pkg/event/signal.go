package event

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the side of a signal or order
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// InvalidSignalError reports a signal that failed construction validation.
type InvalidSignalError struct {
	Symbol string
	Reason string
}

func (e *InvalidSignalError) Error() string {
	return fmt.Sprintf("invalid signal for %s: %s", e.Symbol, e.Reason)
}

// Signal expresses a strategy's intent to hold a target allocation of one
// symbol. The portfolio resolves it into an integer-share order; strategies
// never pick share counts themselves.
type Signal struct {
	Symbol    string
	Timestamp time.Time
	Side      Side

	// PortfolioPercent is the target allocation share of total equity in
	// [0, 1]. Zero on a SELL means fully exit.
	PortfolioPercent decimal.Decimal

	// RiskPerShare, when positive, switches sizing to risk-budget mode:
	// quantity = floor(equity * percent / RiskPerShare), with a protective
	// stop placed RiskPerShare away from the entry.
	RiskPerShare decimal.Decimal

	// LimitPrice, when positive, makes the resulting order a limit order.
	LimitPrice decimal.Decimal

	Strategy string
	Reason   string

	// State tags the strategy's regime or internal state at decision time.
	State string

	// Indicator and threshold snapshots taken at decision time, exported as
	// dynamic journal columns.
	Indicators map[string]decimal.Decimal
	Thresholds map[string]decimal.Decimal
}

// NewSignal validates and constructs a Signal.
func NewSignal(symbol string, timestamp time.Time, side Side, portfolioPercent decimal.Decimal) (Signal, error) {
	if symbol == "" {
		return Signal{}, &InvalidSignalError{Symbol: symbol, Reason: "empty symbol"}
	}
	if side != SideBuy && side != SideSell {
		return Signal{}, &InvalidSignalError{Symbol: symbol, Reason: fmt.Sprintf("unknown side %q", side)}
	}
	if portfolioPercent.IsNegative() || portfolioPercent.GreaterThan(decimal.NewFromInt(1)) {
		return Signal{}, &InvalidSignalError{
			Symbol: symbol,
			Reason: fmt.Sprintf("portfolio percent %s outside [0, 1]", portfolioPercent),
		}
	}

	return Signal{
		Symbol:           symbol,
		Timestamp:        timestamp.UTC(),
		Side:             side,
		PortfolioPercent: portfolioPercent,
	}, nil
}

// Validate re-checks the signal invariants. The engine calls this on every
// signal a strategy emits, since strategies may build Signal values directly.
func (s Signal) Validate() error {
	_, err := NewSignal(s.Symbol, s.Timestamp, s.Side, s.PortfolioPercent)
	if err != nil {
		return err
	}
	if s.RiskPerShare.IsNegative() {
		return &InvalidSignalError{Symbol: s.Symbol, Reason: "negative risk per share"}
	}
	if s.LimitPrice.IsNegative() {
		return &InvalidSignalError{Symbol: s.Symbol, Reason: "negative limit price"}
	}
	return nil
}

// RiskSized reports whether the signal requests ATR-risk sizing.
func (s Signal) RiskSized() bool {
	return s.RiskPerShare.IsPositive()
}
