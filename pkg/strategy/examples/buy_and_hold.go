package examples

import (
	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/strategy"
	"github.com/shopspring/decimal"
)

// BuyAndHold buys the full target allocation on the first bar and never
// sells. Mostly useful as a benchmark and engine sanity check.
type BuyAndHold struct {
	*strategy.BaseStrategy
	symbol  string
	percent decimal.Decimal
	bought  bool
}

// NewBuyAndHold creates a buy-and-hold strategy targeting percent of equity
// in symbol.
func NewBuyAndHold(symbol string, percent decimal.Decimal) *BuyAndHold {
	base := strategy.NewBaseStrategy("BuyAndHold", map[string]interface{}{
		"symbol":  symbol,
		"percent": percent.String(),
	})
	return &BuyAndHold{
		BaseStrategy: base,
		symbol:       symbol,
		percent:      percent,
	}
}

// OnBar enters once and then holds.
func (s *BuyAndHold) OnBar(ctx *strategy.Context, bar event.Bar) ([]event.Signal, error) {
	if s.bought || bar.Symbol != s.symbol {
		return nil, nil
	}

	sig, err := ctx.Buy(s.symbol, s.percent, strategy.WithReason("initial_entry"))
	if err != nil {
		return nil, err
	}
	s.bought = true
	return []event.Signal{sig}, nil
}
