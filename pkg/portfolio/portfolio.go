// Package portfolio simulates the cash and position ledger of a backtest.
// All money amounts are decimals; share quantities are whole integers. The
// portfolio owns its mutable state exclusively: the engine drives it, the
// strategy sees it only through a read-only view.
package portfolio

import (
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds the execution parameters of the simulated account.
type Config struct {
	InitialCapital     decimal.Decimal
	CommissionPerShare decimal.Decimal
	SlippageBps        int64
}

// DefaultConfig returns the default account parameters: 100k capital,
// $0.01/share commission, no slippage.
func DefaultConfig() Config {
	return Config{
		InitialCapital:     decimal.NewFromInt(100_000),
		CommissionPerShare: decimal.NewFromFloat(0.01),
		SlippageBps:        0,
	}
}

// Position is an open holding in one symbol. Quantity is always a positive
// whole-share count; positions are removed when quantity reaches zero.
type Position struct {
	Symbol        string
	Quantity      int64
	AvgEntryPrice decimal.Decimal
	OpenedAt      time.Time

	// StopPrice is set for risk-sized entries; zero means no stop.
	StopPrice decimal.Decimal
}

// EquityPoint is the total portfolio value at one bar close.
type EquityPoint struct {
	Timestamp time.Time
	Value     decimal.Decimal
	Warmup    bool
}

// AllocationPoint is the per-bar value split across held symbols and cash.
type AllocationPoint struct {
	Timestamp time.Time
	Fractions map[string]decimal.Decimal // symbol -> fraction of equity, plus "CASH"
}

// Portfolio manages positions, cash, the trade journal and the equity curve.
type Portfolio struct {
	config Config
	logger zerolog.Logger

	cash      decimal.Decimal
	positions map[string]*Position
	lastClose map[string]decimal.Decimal

	fills       []event.Fill
	journal     []JournalEntry
	equity      []EquityPoint
	allocations []AllocationPoint

	nextOrderID int64
	nextTradeID int64
	barIndex    int
}

// NewPortfolio creates a portfolio with the given account parameters.
func NewPortfolio(config Config) *Portfolio {
	return &Portfolio{
		config:    config,
		logger:    logging.GetLogger("portfolio"),
		cash:      config.InitialCapital,
		positions: make(map[string]*Position),
		lastClose: make(map[string]decimal.Decimal),
	}
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() decimal.Decimal {
	return p.cash
}

// InitialCapital returns the starting cash.
func (p *Portfolio) InitialCapital() decimal.Decimal {
	return p.config.InitialCapital
}

// Position returns a copy of the position for symbol, or false when flat.
func (p *Portfolio) Position(symbol string) (Position, bool) {
	pos, ok := p.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// HasPosition reports whether the portfolio holds shares of symbol.
func (p *Portfolio) HasPosition(symbol string) bool {
	_, ok := p.positions[symbol]
	return ok
}

// PositionQuantity returns the held share count for symbol, zero when flat.
func (p *Portfolio) PositionQuantity(symbol string) int64 {
	if pos, ok := p.positions[symbol]; ok {
		return pos.Quantity
	}
	return 0
}

// Symbols returns the symbols currently held, in no particular order.
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.positions))
	for symbol := range p.positions {
		out = append(out, symbol)
	}
	return out
}

// Fills returns the append-only fill journal.
func (p *Portfolio) Fills() []event.Fill {
	return p.fills
}

// Journal returns the full decision journal, fills and skip notes included.
func (p *Portfolio) Journal() []JournalEntry {
	return p.journal
}

// EquityHistory returns the per-bar equity curve.
func (p *Portfolio) EquityHistory() []EquityPoint {
	return p.equity
}

// AllocationHistory returns the per-bar allocation snapshots.
func (p *Portfolio) AllocationHistory() []AllocationPoint {
	return p.allocations
}

// ObserveBars records the closes of a bar group so mark-to-market uses the
// latest prices. Called by the engine at the start of every replay step.
func (p *Portfolio) ObserveBars(bars []event.Bar) {
	for _, bar := range bars {
		p.lastClose[bar.Symbol] = bar.Close
	}
	p.barIndex++
}

// Equity returns cash plus the mark-to-market value of all positions at the
// last observed closes. Exact decimal arithmetic throughout.
func (p *Portfolio) Equity() decimal.Decimal {
	total := p.cash
	for symbol, pos := range p.positions {
		if close, ok := p.lastClose[symbol]; ok {
			total = total.Add(close.Mul(decimal.NewFromInt(pos.Quantity)))
		} else {
			// No mark yet; fall back to entry price so equity stays conserved.
			total = total.Add(pos.AvgEntryPrice.Mul(decimal.NewFromInt(pos.Quantity)))
		}
	}
	return total
}

// MarkToMarket appends an equity point and allocation snapshot for the bar
// group at ts.
func (p *Portfolio) MarkToMarket(ts time.Time, warmup bool) {
	equity := p.Equity()
	p.equity = append(p.equity, EquityPoint{Timestamp: ts, Value: equity, Warmup: warmup})

	fractions := make(map[string]decimal.Decimal, len(p.positions)+1)
	if equity.IsPositive() {
		for symbol, pos := range p.positions {
			close, ok := p.lastClose[symbol]
			if !ok {
				close = pos.AvgEntryPrice
			}
			value := close.Mul(decimal.NewFromInt(pos.Quantity))
			fractions[symbol] = value.Div(equity)
		}
		fractions[CashSymbol] = p.cash.Div(equity)
	} else {
		fractions[CashSymbol] = decimal.NewFromInt(1)
	}
	p.allocations = append(p.allocations, AllocationPoint{Timestamp: ts, Fractions: fractions})
}
