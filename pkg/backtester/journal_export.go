package backtester

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/portfolio"
	"github.com/shopspring/decimal"
)

// WriteJournalCSV serializes the decision journal to CSV: one row per
// journal entry, with dynamic indicator/threshold columns (the union of keys
// seen across the run, blanks where absent) and a buy-and-hold benchmark
// column for the signal symbol. Timestamps are ISO-8601, UTF-8, comma
// delimited.
func WriteJournalCSV(w io.Writer, r *Result) error {
	indicatorKeys, thresholdKeys := dynamicKeys(r.Journal)

	header := []string{
		"trade_id", "timestamp", "bar_index", "strategy", "state",
		"symbol", "decision", "reason", "order_type", "shares",
		"fill_price", "position_value", "slippage", "commission",
		"portfolio_value_before", "portfolio_value_after",
		"cash_before", "cash_after",
		"allocation_before", "allocation_after",
		"cumulative_return_pct",
		fmt.Sprintf("BuyHold_%s_Value", r.Metadata.SignalSymbol),
	}
	for _, key := range indicatorKeys {
		header = append(header, "ind_"+key)
	}
	for _, key := range thresholdKeys {
		header = append(header, "thr_"+key)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing journal header: %w", err)
	}

	baseline := buyHoldBaseline(r)
	hundred := decimal.NewFromInt(100)

	for _, entry := range r.Journal {
		record := make([]string, 0, len(header))

		tradeID := ""
		shares := ""
		fillPrice := ""
		positionValue := ""
		slippage := ""
		commission := ""
		if entry.Kind == portfolio.EntryFill {
			tradeID = strconv.FormatInt(entry.TradeID, 10)
			shares = strconv.FormatInt(entry.Fill.Quantity, 10)
			fillPrice = entry.Fill.Price.String()
			positionValue = entry.Fill.Price.Mul(decimal.NewFromInt(entry.Fill.Quantity)).String()
			slippage = entry.Fill.Slippage.String()
			commission = entry.Fill.Commission.String()
		}

		decision := entry.Decision
		if entry.Kind != portfolio.EntryFill {
			decision = decision + ":" + string(entry.Kind)
		}

		cumulative := ""
		if r.Metadata.InitialCapital.IsPositive() {
			cumulative = entry.ValueAfter.Sub(r.Metadata.InitialCapital).
				Div(r.Metadata.InitialCapital).Mul(hundred).StringFixed(4)
		}

		record = append(record,
			tradeID,
			entry.Timestamp.UTC().Format(time.RFC3339),
			strconv.Itoa(entry.BarIndex),
			entry.Strategy,
			entry.StateTag,
			entry.Symbol,
			decision,
			entry.Reason,
			string(entry.OrderType),
			shares,
			fillPrice,
			positionValue,
			slippage,
			commission,
			entry.ValueBefore.String(),
			entry.ValueAfter.String(),
			entry.CashBefore.String(),
			entry.CashAfter.String(),
			entry.AllocationBefore,
			entry.AllocationAfter,
			cumulative,
			buyHoldValue(r, entry.BarIndex, baseline),
		)

		for _, key := range indicatorKeys {
			record = append(record, snapshotValue(entry.Indicators, key))
		}
		for _, key := range thresholdKeys {
			record = append(record, snapshotValue(entry.Thresholds, key))
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing journal row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// dynamicKeys collects the sorted union of indicator and threshold keys
// across all journal entries.
func dynamicKeys(journal []portfolio.JournalEntry) (indicators, thresholds []string) {
	indicatorSet := make(map[string]bool)
	thresholdSet := make(map[string]bool)
	for _, entry := range journal {
		for key := range entry.Indicators {
			indicatorSet[key] = true
		}
		for key := range entry.Thresholds {
			thresholdSet[key] = true
		}
	}
	for key := range indicatorSet {
		indicators = append(indicators, key)
	}
	for key := range thresholdSet {
		thresholds = append(thresholds, key)
	}
	sort.Strings(indicators)
	sort.Strings(thresholds)
	return indicators, thresholds
}

func snapshotValue(values map[string]decimal.Decimal, key string) string {
	if value, ok := values[key]; ok {
		return value.String()
	}
	return ""
}

// buyHoldBaseline returns the signal symbol's close at the logical start,
// zero when unavailable.
func buyHoldBaseline(r *Result) decimal.Decimal {
	idx := r.Metadata.LogicalStartIndex
	if idx >= 0 && idx < len(r.SignalCloses) {
		return r.SignalCloses[idx]
	}
	return decimal.Zero
}

// buyHoldValue is the hypothetical equity had the initial capital been held
// in the signal symbol from the logical start.
func buyHoldValue(r *Result, barIndex int, baseline decimal.Decimal) string {
	idx := barIndex - 1
	if !baseline.IsPositive() || idx < 0 || idx >= len(r.SignalCloses) {
		return ""
	}
	close := r.SignalCloses[idx]
	if !close.IsPositive() {
		return ""
	}
	return r.Metadata.InitialCapital.Mul(close).Div(baseline).StringFixed(2)
}
