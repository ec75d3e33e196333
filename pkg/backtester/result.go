package backtester

import (
	"fmt"
	"strings"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/metrics"
	"github.com/ridopark/JonBuhReplay/pkg/portfolio"
	"github.com/shopspring/decimal"
)

// Metadata describes the run that produced a Result.
type Metadata struct {
	StrategyName      string                 `json:"strategy_name"`
	Parameters        map[string]interface{} `json:"parameters"`
	Symbols           []string               `json:"symbols"`
	SignalSymbol      string                 `json:"signal_symbol"`
	Timeframe         string                 `json:"timeframe"`
	StartDate         time.Time              `json:"start_date"`
	EndDate           time.Time              `json:"end_date"`
	InitialCapital    decimal.Decimal        `json:"initial_capital"`
	BarsProcessed     int                    `json:"bars_processed"`
	LogicalStartIndex int                    `json:"logical_start_index"`
	FillPolicy        FillPolicy             `json:"fill_policy"`
	Stopped           bool                   `json:"stopped"`
}

// Result is the complete outcome of one backtest run.
type Result struct {
	Journal           []portfolio.JournalEntry    `json:"journal"`
	Fills             []event.Fill                `json:"fills"`
	EquityHistory     []portfolio.EquityPoint     `json:"equity_history"`
	AllocationHistory []portfolio.AllocationPoint `json:"allocation_history"`

	// SignalCloses is the signal symbol's close per equity point, used by
	// the journal export's buy-and-hold benchmark column.
	SignalCloses []decimal.Decimal `json:"-"`

	FinalValue decimal.Decimal `json:"final_value"`
	Metadata   Metadata        `json:"metadata"`
	Metrics    *metrics.Report `json:"metrics"`
}

// TotalReturnPct returns the percentage return over the whole run.
func (r *Result) TotalReturnPct() decimal.Decimal {
	if !r.Metadata.InitialCapital.IsPositive() {
		return decimal.Zero
	}
	return r.FinalValue.Sub(r.Metadata.InitialCapital).
		Div(r.Metadata.InitialCapital).
		Mul(decimal.NewFromInt(100))
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "\nBacktest Results for %s\n", r.Metadata.StrategyName)
	fmt.Fprintf(&b, "=======================\n")
	fmt.Fprintf(&b, "Period: %s to %s\n", r.Metadata.StartDate.Format("2006-01-02"), r.Metadata.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Symbols: %s (signal: %s)\n", strings.Join(r.Metadata.Symbols, ", "), r.Metadata.SignalSymbol)
	fmt.Fprintf(&b, "Initial Capital: $%s\n", r.Metadata.InitialCapital.StringFixed(2))
	fmt.Fprintf(&b, "Final Value: $%s\n", r.FinalValue.StringFixed(2))
	fmt.Fprintf(&b, "Total Return: %s%%\n", r.TotalReturnPct().StringFixed(2))
	if r.Metadata.Stopped {
		fmt.Fprintf(&b, "NOTE: run stopped early, partial results\n")
	}

	if m := r.Metrics; m != nil && !m.Insufficient {
		fmt.Fprintf(&b, "\nTrade Statistics:\n")
		fmt.Fprintf(&b, "- Total Trades: %d\n", m.TotalTrades)
		fmt.Fprintf(&b, "- Winning Trades: %d (%.1f%%)\n", m.WinningTrades, m.WinRate)
		fmt.Fprintf(&b, "- Losing Trades: %d\n", m.LosingTrades)
		fmt.Fprintf(&b, "- Average Win: $%.2f\n", m.AvgWin)
		fmt.Fprintf(&b, "- Average Loss: $%.2f\n", m.AvgLoss)
		fmt.Fprintf(&b, "- Largest Win: $%.2f\n", m.LargestWin)
		fmt.Fprintf(&b, "- Largest Loss: $%.2f\n", m.LargestLoss)
		fmt.Fprintf(&b, "- Profit Factor: %.2f\n", m.ProfitFactor)
		fmt.Fprintf(&b, "- Avg Holding Period: %.1f days\n", m.AvgHoldingDays)

		fmt.Fprintf(&b, "\nRisk Metrics:\n")
		fmt.Fprintf(&b, "- CAGR: %.2f%%\n", m.CAGR*100)
		fmt.Fprintf(&b, "- Annualized Volatility: %.2f%%\n", m.AnnualizedVolatility*100)
		fmt.Fprintf(&b, "- Sharpe Ratio: %.2f\n", m.SharpeRatio)
		fmt.Fprintf(&b, "- Sortino Ratio: %.2f\n", m.SortinoRatio)
		fmt.Fprintf(&b, "- Calmar Ratio: %.2f\n", m.CalmarRatio)
		fmt.Fprintf(&b, "- Max Drawdown: $%s (%.2f%%)\n", m.MaxDrawdown.StringFixed(2), m.MaxDrawdownPct*100)
	}

	if len(r.Fills) > 0 {
		fmt.Fprintf(&b, "\nFills:\n")
		fmt.Fprintf(&b, "%-4s %-16s %-8s %-6s %-8s %-12s %-10s %-20s\n",
			"#", "Time", "Symbol", "Side", "Shares", "Price", "Commission", "Reason")
		for _, fill := range r.Fills {
			reason := fill.Reason
			if fill.StopTriggered {
				reason = "stop_loss"
			}
			fmt.Fprintf(&b, "%-4d %-16s %-8s %-6s %8d %12s %10s %-20s\n",
				fill.ID,
				fill.Timestamp.Format("2006-01-02 15:04"),
				fill.Symbol,
				string(fill.Side),
				fill.Quantity,
				fill.Price.StringFixed(2),
				fill.Commission.StringFixed(2),
				reason,
			)
		}
	} else {
		fmt.Fprintf(&b, "\nNo trades executed.\n")
	}

	return b.String()
}
