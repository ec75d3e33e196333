package strategy

import (
	"fmt"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/shopspring/decimal"
)

// InsufficientHistoryError is returned by the history accessors when a
// strategy asks for more bars than are buffered. Strategies are expected to
// treat it as "no signal yet", not as a fatal condition.
type InsufficientHistoryError struct {
	Symbol string
	Need   int
	Have   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: need %d bars, have %d", e.Symbol, e.Need, e.Have)
}

// PortfolioView is the read-only window a strategy gets onto portfolio
// state. The engine wires the live portfolio behind it; strategies can never
// mutate positions or cash directly.
type PortfolioView interface {
	Cash() decimal.Decimal
	Equity() decimal.Decimal
	PositionQuantity(symbol string) int64
	HasPosition(symbol string) bool
}

// Strategy defines the contract all trading strategies implement. OnBar is
// called once per bar of each symbol in the feed universe, in timestamp then
// symbol order; the bar has already been appended to the context history.
type Strategy interface {
	// Initialize is called once before replay starts
	Initialize(ctx *Context) error

	// OnBar reacts to a single bar and returns zero or more signals
	OnBar(ctx *Context, bar event.Bar) ([]event.Signal, error)

	// Name returns the strategy name used in journals and results
	Name() string

	// Parameters returns the strategy parameters for result metadata
	Parameters() map[string]interface{}

	// WarmupBars returns how many bars of history the strategy needs before
	// the logical start date to prime its indicators
	WarmupBars() int
}
