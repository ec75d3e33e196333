package portfolio

import (
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/shopspring/decimal"
)

var bpsDivisor = decimal.NewFromInt(10_000)

// CheckStops sweeps open positions for breached protective stops before the
// bar's signals are processed. A long whose bar low trades through the stop
// exits fully at the stop price, flagged in the journal.
func (p *Portfolio) CheckStops(bars []event.Bar, ts time.Time) {
	for _, bar := range bars {
		pos, ok := p.positions[bar.Symbol]
		if !ok || !pos.StopPrice.IsPositive() || pos.Quantity <= 0 {
			continue
		}
		if bar.Low.GreaterThan(pos.StopPrice) {
			continue
		}

		p.logger.Info().
			Str("symbol", bar.Symbol).
			Str("stop_price", pos.StopPrice.String()).
			Str("bar_low", bar.Low.String()).
			Msg("Stop loss triggered")

		p.nextOrderID++
		order := event.Order{
			ID:        p.nextOrderID,
			Symbol:    bar.Symbol,
			Side:      event.SideSell,
			Type:      event.OrderTypeMarket,
			Quantity:  pos.Quantity,
			Timestamp: ts,
			Reason:    "stop_loss",
		}
		p.fill(order, pos.StopPrice, pos.StopPrice, ts, fillFlags{stopTriggered: true}, event.Signal{
			Symbol: bar.Symbol,
			Side:   event.SideSell,
			Reason: "stop_loss",
		})
	}
}

// ExecuteSignals resolves a bar's signal batch into integer-share orders and
// executes them. Sells run before buys so exits free cash for entries;
// within each side, strategy emission order is preserved. bars carries the
// reference bar per symbol; useOpen selects the next-bar-open fill policy's
// reference price.
func (p *Portfolio) ExecuteSignals(signals []event.Signal, bars map[string]event.Bar, useOpen bool, ts time.Time) {
	ordered := make([]event.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Side == event.SideSell {
			ordered = append(ordered, s)
		}
	}
	for _, s := range signals {
		if s.Side == event.SideBuy {
			ordered = append(ordered, s)
		}
	}

	for _, signal := range ordered {
		bar, ok := bars[signal.Symbol]
		if !ok {
			// Lenient completeness can leave a signal without a reference bar
			// at this timestamp; nothing can be priced, so nothing executes.
			p.logger.Warn().
				Str("symbol", signal.Symbol).
				Time("timestamp", ts).
				Msg("No reference bar for signal, skipping")
			continue
		}

		refPrice := bar.Close
		if useOpen {
			refPrice = bar.Open
		}
		p.executeSignal(signal, bar, refPrice, ts)
	}
}

// executeSignal sizes one signal and runs it through fill pricing.
func (p *Portfolio) executeSignal(signal event.Signal, bar event.Bar, refPrice decimal.Decimal, ts time.Time) {
	side := signal.Side
	var quantity int64
	var stopAfterFill bool

	if signal.RiskSized() {
		// Risk-budget sizing: floor(equity * percent / risk per share).
		riskBudget := p.Equity().Mul(signal.PortfolioPercent)
		quantity = riskBudget.Div(signal.RiskPerShare).IntPart()
		stopAfterFill = side == event.SideBuy
	} else {
		// Percent-of-portfolio sizing on the delta to the target value.
		target := p.Equity().Mul(signal.PortfolioPercent)
		current := refPrice.Mul(decimal.NewFromInt(p.PositionQuantity(signal.Symbol)))
		delta := target.Sub(current)
		quantity = delta.Abs().Div(refPrice).IntPart()
		// The delta sign decides the direction; a BUY signal against an
		// overweight position resolves to a trim, and vice versa.
		if delta.IsNegative() {
			side = event.SideSell
		} else if delta.IsPositive() {
			side = event.SideBuy
		}
	}

	if side == event.SideSell {
		held := p.PositionQuantity(signal.Symbol)
		if quantity > held {
			quantity = held
		}
	}
	if quantity <= 0 {
		return
	}

	p.nextOrderID++
	order := event.Order{
		ID:           p.nextOrderID,
		Symbol:       signal.Symbol,
		Side:         side,
		Type:         event.OrderTypeMarket,
		Quantity:     quantity,
		Timestamp:    ts,
		RiskPerShare: signal.RiskPerShare,
		Strategy:     signal.Strategy,
		Reason:       signal.Reason,
	}

	var fillPrice decimal.Decimal
	if signal.LimitPrice.IsPositive() {
		order.Type = event.OrderTypeLimit
		order.LimitPrice = signal.LimitPrice
		filled := false
		if side == event.SideBuy {
			filled = bar.Low.LessThanOrEqual(signal.LimitPrice)
		} else {
			filled = bar.High.GreaterThanOrEqual(signal.LimitPrice)
		}
		if !filled {
			p.journalSkip(EntryLimitNotFilled, signal, ts)
			return
		}
		fillPrice = signal.LimitPrice
	} else {
		fillPrice = p.slippedPrice(refPrice, side)
	}

	flags := fillFlags{}

	if side == event.SideBuy {
		// A buy must fit within cash including commission; shrink to the
		// largest whole quantity that does.
		perShare := fillPrice.Add(p.config.CommissionPerShare)
		maxAffordable := p.cash.Div(perShare).IntPart()
		if maxAffordable < quantity {
			if maxAffordable <= 0 {
				p.journalSkip(EntryCashInsufficient, signal, ts)
				return
			}
			p.logger.Debug().
				Str("symbol", signal.Symbol).
				Int64("requested", quantity).
				Int64("affordable", maxAffordable).
				Msg("Shrinking buy order to available cash")
			quantity = maxAffordable
			order.Quantity = quantity
			flags.cashShrunk = true
		}
	}

	if stopAfterFill {
		flags.stopPrice = fillPrice.Sub(signal.RiskPerShare)
	}
	p.fill(order, fillPrice, refPrice, ts, flags, signal)
}

// slippedPrice applies deterministic bps slippage; buys worsen upward,
// sells downward.
func (p *Portfolio) slippedPrice(refPrice decimal.Decimal, side event.Side) decimal.Decimal {
	if p.config.SlippageBps == 0 {
		return refPrice
	}
	adjust := decimal.NewFromInt(p.config.SlippageBps).Div(bpsDivisor)
	if side == event.SideBuy {
		return refPrice.Mul(decimal.NewFromInt(1).Add(adjust))
	}
	return refPrice.Mul(decimal.NewFromInt(1).Sub(adjust))
}

type fillFlags struct {
	stopTriggered bool
	cashShrunk    bool
	stopPrice     decimal.Decimal
}

// fill executes the order against the books and journals the result.
func (p *Portfolio) fill(order event.Order, fillPrice, refPrice decimal.Decimal, ts time.Time, flags fillFlags, signal event.Signal) {
	quantityDec := decimal.NewFromInt(order.Quantity)
	commission := p.config.CommissionPerShare.Mul(quantityDec)
	slippageCost := fillPrice.Sub(refPrice).Abs().Mul(quantityDec)

	cashBefore := p.cash
	valueBefore := p.Equity()
	allocBefore := p.allocationString()

	realized := decimal.Zero
	if order.Side == event.SideBuy {
		cost := fillPrice.Mul(quantityDec).Add(commission)
		p.cash = p.cash.Sub(cost)

		pos, ok := p.positions[order.Symbol]
		if !ok {
			pos = &Position{Symbol: order.Symbol, OpenedAt: ts}
			p.positions[order.Symbol] = pos
		}
		newQuantity := pos.Quantity + order.Quantity
		held := decimal.NewFromInt(pos.Quantity)
		pos.AvgEntryPrice = pos.AvgEntryPrice.Mul(held).
			Add(fillPrice.Mul(quantityDec)).
			Div(decimal.NewFromInt(newQuantity))
		pos.Quantity = newQuantity
		if flags.stopPrice.IsPositive() {
			pos.StopPrice = flags.stopPrice
		}
	} else {
		proceeds := fillPrice.Mul(quantityDec).Sub(commission)
		p.cash = p.cash.Add(proceeds)

		pos := p.positions[order.Symbol]
		realized = fillPrice.Sub(pos.AvgEntryPrice).Mul(quantityDec)
		pos.Quantity -= order.Quantity
		if pos.Quantity == 0 {
			delete(p.positions, order.Symbol)
		}
	}

	p.nextTradeID++
	fill := event.Fill{
		ID:            p.nextTradeID,
		OrderID:       order.ID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Quantity:      order.Quantity,
		Price:         fillPrice,
		Timestamp:     ts,
		Commission:    commission,
		Slippage:      slippageCost,
		RealizedPL:    realized,
		StopTriggered: flags.stopTriggered,
		CashShrunk:    flags.cashShrunk,
		Strategy:      order.Strategy,
		Reason:        order.Reason,
	}
	p.fills = append(p.fills, fill)

	p.journal = append(p.journal, JournalEntry{
		TradeID:          fill.ID,
		BarIndex:         p.barIndex,
		Timestamp:        ts,
		Symbol:           order.Symbol,
		Kind:             EntryFill,
		Fill:             fill,
		Decision:         string(order.Side),
		OrderType:        order.Type,
		Reason:           order.Reason,
		Strategy:         order.Strategy,
		StateTag:         signal.State,
		Indicators:       signal.Indicators,
		Thresholds:       signal.Thresholds,
		CashBefore:       cashBefore,
		CashAfter:        p.cash,
		ValueBefore:      valueBefore,
		ValueAfter:       p.Equity(),
		AllocationBefore: allocBefore,
		AllocationAfter:  p.allocationString(),
	})

	p.logger.Info().
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Int64("quantity", order.Quantity).
		Str("price", fillPrice.String()).
		Str("commission", commission.String()).
		Str("cash", p.cash.String()).
		Msg("Order filled")
}

func skipOrderType(signal event.Signal) event.OrderType {
	if signal.LimitPrice.IsPositive() {
		return event.OrderTypeLimit
	}
	return event.OrderTypeMarket
}

// journalSkip records an order that could not execute.
func (p *Portfolio) journalSkip(kind EntryKind, signal event.Signal, ts time.Time) {
	p.journal = append(p.journal, JournalEntry{
		BarIndex:         p.barIndex,
		Timestamp:        ts,
		Symbol:           signal.Symbol,
		Kind:             kind,
		Decision:         string(signal.Side),
		OrderType:        skipOrderType(signal),
		Reason:           signal.Reason,
		Strategy:         signal.Strategy,
		StateTag:         signal.State,
		Indicators:       signal.Indicators,
		Thresholds:       signal.Thresholds,
		CashBefore:       p.cash,
		CashAfter:        p.cash,
		ValueBefore:      p.Equity(),
		ValueAfter:       p.Equity(),
		AllocationBefore: p.allocationString(),
		AllocationAfter:  p.allocationString(),
	})

	p.logger.Warn().
		Str("symbol", signal.Symbol).
		Str("kind", string(kind)).
		Time("timestamp", ts).
		Msg("Order skipped")
}
