package strategy

import (
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultHistoryBars is the per-symbol bar history capacity.
const DefaultHistoryBars = 500

// Context carries everything a strategy may touch during replay: bounded
// per-symbol bar history, a read-only portfolio view, signal constructors
// and a logger. The engine owns the context and appends bars before each
// OnBar call; strategies only read.
type Context struct {
	history      map[string]*barRing
	capacity     int
	view         PortfolioView
	logger       zerolog.Logger
	strategyName string
	now          time.Time
}

// NewContext creates a strategy context. capacity <= 0 selects
// DefaultHistoryBars.
func NewContext(capacity int, view PortfolioView, logger zerolog.Logger) *Context {
	if capacity <= 0 {
		capacity = DefaultHistoryBars
	}
	return &Context{
		history:  make(map[string]*barRing),
		capacity: capacity,
		view:     view,
		logger:   logger,
	}
}

// BindStrategy stamps the strategy name onto signals built through this
// context. Called by the engine before Initialize.
func (c *Context) BindStrategy(name string) {
	c.strategyName = name
}

// Append adds a bar to the symbol's history and advances the context clock.
// Called by the engine; never by strategies.
func (c *Context) Append(bar event.Bar) {
	ring, ok := c.history[bar.Symbol]
	if !ok {
		ring = newBarRing(c.capacity)
		c.history[bar.Symbol] = ring
	}
	ring.push(bar)
	if bar.Timestamp.After(c.now) {
		c.now = bar.Timestamp
	}
}

// Now returns the timestamp of the bar group currently being replayed.
func (c *Context) Now() time.Time {
	return c.now
}

// Logger returns the strategy logger.
func (c *Context) Logger() zerolog.Logger {
	return c.logger
}

// BarCount returns the number of buffered bars for a symbol.
func (c *Context) BarCount(symbol string) int {
	if ring, ok := c.history[symbol]; ok {
		return ring.len()
	}
	return 0
}

// LastBar returns the most recent bar for a symbol.
func (c *Context) LastBar(symbol string) (event.Bar, bool) {
	ring, ok := c.history[symbol]
	if !ok || ring.len() == 0 {
		return event.Bar{}, false
	}
	return ring.at(ring.len() - 1), true
}

// Bars returns the n most recent bars for a symbol, oldest first.
func (c *Context) Bars(symbol string, n int) ([]event.Bar, error) {
	ring, ok := c.history[symbol]
	have := 0
	if ok {
		have = ring.len()
	}
	if n > have {
		return nil, &InsufficientHistoryError{Symbol: symbol, Need: n, Have: have}
	}
	return ring.last(n), nil
}

// Closes returns the n most recent close prices, most recent last.
func (c *Context) Closes(symbol string, n int) ([]decimal.Decimal, error) {
	return c.prices(symbol, n, func(b event.Bar) decimal.Decimal { return b.Close })
}

// Highs returns the n most recent high prices, most recent last.
func (c *Context) Highs(symbol string, n int) ([]decimal.Decimal, error) {
	return c.prices(symbol, n, func(b event.Bar) decimal.Decimal { return b.High })
}

// Lows returns the n most recent low prices, most recent last.
func (c *Context) Lows(symbol string, n int) ([]decimal.Decimal, error) {
	return c.prices(symbol, n, func(b event.Bar) decimal.Decimal { return b.Low })
}

func (c *Context) prices(symbol string, n int, pick func(event.Bar) decimal.Decimal) ([]decimal.Decimal, error) {
	bars, err := c.Bars(symbol, n)
	if err != nil {
		return nil, err
	}
	out := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		out[i] = pick(b)
	}
	return out, nil
}

// Cash returns the portfolio's current cash.
func (c *Context) Cash() decimal.Decimal {
	return c.view.Cash()
}

// Equity returns the portfolio's total value at the last mark.
func (c *Context) Equity() decimal.Decimal {
	return c.view.Equity()
}

// HasPosition reports whether the portfolio holds shares of symbol.
func (c *Context) HasPosition(symbol string) bool {
	return c.view.HasPosition(symbol)
}

// PositionQuantity returns the held share count for symbol, zero when flat.
func (c *Context) PositionQuantity(symbol string) int64 {
	return c.view.PositionQuantity(symbol)
}

// SignalOption customizes a signal built by Buy or Sell.
type SignalOption func(*event.Signal)

// WithRisk switches the signal to risk-budget sizing with the given dollar
// risk per share.
func WithRisk(riskPerShare decimal.Decimal) SignalOption {
	return func(s *event.Signal) { s.RiskPerShare = riskPerShare }
}

// WithLimit makes the resulting order a limit order at price.
func WithLimit(price decimal.Decimal) SignalOption {
	return func(s *event.Signal) { s.LimitPrice = price }
}

// WithReason attaches a decision reason for the journal.
func WithReason(reason string) SignalOption {
	return func(s *event.Signal) { s.Reason = reason }
}

// WithState tags the signal with the strategy's current regime or state.
func WithState(state string) SignalOption {
	return func(s *event.Signal) { s.State = state }
}

// WithIndicators attaches an indicator snapshot for the journal export.
func WithIndicators(values map[string]decimal.Decimal) SignalOption {
	return func(s *event.Signal) { s.Indicators = values }
}

// WithThresholds attaches a threshold snapshot for the journal export.
func WithThresholds(values map[string]decimal.Decimal) SignalOption {
	return func(s *event.Signal) { s.Thresholds = values }
}

// Buy builds a BUY signal targeting portfolioPercent of total equity.
func (c *Context) Buy(symbol string, portfolioPercent decimal.Decimal, opts ...SignalOption) (event.Signal, error) {
	return c.signal(symbol, event.SideBuy, portfolioPercent, opts)
}

// Sell builds a SELL signal targeting portfolioPercent of total equity;
// percent zero means fully exit.
func (c *Context) Sell(symbol string, portfolioPercent decimal.Decimal, opts ...SignalOption) (event.Signal, error) {
	return c.signal(symbol, event.SideSell, portfolioPercent, opts)
}

func (c *Context) signal(symbol string, side event.Side, portfolioPercent decimal.Decimal, opts []SignalOption) (event.Signal, error) {
	sig, err := event.NewSignal(symbol, c.now, side, portfolioPercent)
	if err != nil {
		return event.Signal{}, err
	}
	sig.Strategy = c.strategyName
	for _, opt := range opts {
		opt(&sig)
	}
	if err := sig.Validate(); err != nil {
		return event.Signal{}, err
	}
	return sig, nil
}
