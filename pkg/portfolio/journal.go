package portfolio

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridopark/JonBuhReplay/pkg/event"
)

// CashSymbol is the pseudo-symbol under which free cash appears in
// allocation snapshots.
const CashSymbol = "CASH"

// EntryKind classifies a journal entry.
type EntryKind string

const (
	// EntryFill records an executed order.
	EntryFill EntryKind = "FILL"
	// EntryCashInsufficient records a buy skipped because not even one share
	// fit the available cash.
	EntryCashInsufficient EntryKind = "CASH_INSUFFICIENT"
	// EntryLimitNotFilled records a limit order whose price was never touched
	// within the reference bar.
	EntryLimitNotFilled EntryKind = "LIMIT_NOT_FILLED"
)

// JournalEntry is one row of the decision journal: an executed fill or a
// recorded skip, with the portfolio state around it.
type JournalEntry struct {
	TradeID   int64
	BarIndex  int
	Timestamp time.Time
	Symbol    string
	Kind      EntryKind

	// Fill is meaningful only when Kind is EntryFill.
	Fill event.Fill

	Decision  string // BUY / SELL: the executed side on fills, the signal's side on skips
	OrderType event.OrderType
	Reason    string
	Strategy  string
	StateTag  string

	Indicators map[string]decimal.Decimal
	Thresholds map[string]decimal.Decimal

	CashBefore  decimal.Decimal
	CashAfter   decimal.Decimal
	ValueBefore decimal.Decimal
	ValueAfter  decimal.Decimal

	AllocationBefore string
	AllocationAfter  string
}

// allocationString renders the current value split as a human-readable
// snapshot, e.g. "TQQQ: 47.6%, CASH: 52.4%". Symbols sort lexicographically
// with CASH always last.
func (p *Portfolio) allocationString() string {
	equity := p.Equity()
	if !equity.IsPositive() {
		return CashSymbol + ": 100.0%"
	}

	symbols := p.Symbols()
	sort.Strings(symbols)

	hundred := decimal.NewFromInt(100)
	parts := make([]string, 0, len(symbols)+1)
	for _, symbol := range symbols {
		pos := p.positions[symbol]
		close, ok := p.lastClose[symbol]
		if !ok {
			close = pos.AvgEntryPrice
		}
		value := close.Mul(decimal.NewFromInt(pos.Quantity))
		pct := value.Div(equity).Mul(hundred).StringFixed(1)
		parts = append(parts, symbol+": "+pct+"%")
	}
	parts = append(parts, CashSymbol+": "+p.cash.Div(equity).Mul(hundred).StringFixed(1)+"%")
	return strings.Join(parts, ", ")
}
