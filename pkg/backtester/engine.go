package backtester

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/feed"
	"github.com/ridopark/JonBuhReplay/pkg/logging"
	"github.com/ridopark/JonBuhReplay/pkg/metrics"
	"github.com/ridopark/JonBuhReplay/pkg/portfolio"
	"github.com/ridopark/JonBuhReplay/pkg/strategy"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Engine drives one backtest: it owns the data handler iterator and the
// portfolio, and is strictly single-threaded. Two runs with identical
// inputs produce bit-identical journals and equity histories.
type Engine struct {
	config    Config
	strategy  strategy.Strategy
	feed      feed.DataHandler
	portfolio *portfolio.Portfolio
	ctx       *strategy.Context
	logger    zerolog.Logger

	universe      map[string]bool
	stopRequested atomic.Bool
}

// NewEngine wires a backtest from a resolved configuration, a strategy and
// a prepared data handler.
func NewEngine(config Config, s strategy.Strategy, f feed.DataHandler) *Engine {
	p := portfolio.NewPortfolio(portfolio.Config{
		InitialCapital:     config.InitialCapital,
		CommissionPerShare: config.CommissionPerShare,
		SlippageBps:        config.SlippageBps,
	})

	universe := make(map[string]bool, len(config.Symbols))
	for _, symbol := range config.Symbols {
		universe[symbol] = true
	}

	engine := &Engine{
		config:    config,
		strategy:  s,
		feed:      f,
		portfolio: p,
		logger:    logging.GetLogger("engine"),
		universe:  universe,
	}
	engine.ctx = strategy.NewContext(strategy.DefaultHistoryBars, p, logging.GetLogger("strategy"))
	engine.ctx.BindStrategy(s.Name())
	return engine
}

// RequestStop asks the loop to terminate at the next bar boundary. The run
// returns the partial result. Safe to call from another goroutine.
func (e *Engine) RequestStop() {
	e.stopRequested.Store(true)
}

// Run executes the replay loop: for each timestamp group, stop sweep, bars
// to strategy in symbol order, signal batch to portfolio (sells first), then
// an equity snapshot. See the package tests for the exact ordering
// guarantees.
func (e *Engine) Run() (*Result, error) {
	e.logger.Info().
		Str("strategy", e.strategy.Name()).
		Strs("symbols", e.config.Symbols).
		Msg("Starting backtest execution")

	if err := e.strategy.Initialize(e.ctx); err != nil {
		return nil, &AbortError{Kind: AbortContractViolation, Msg: fmt.Sprintf("strategy initialize: %v", err), Err: err}
	}
	if err := e.feed.Initialize(); err != nil {
		return nil, &AbortError{Kind: AbortDataError, Msg: fmt.Sprintf("feed initialize: %v", err), Err: err}
	}
	defer e.feed.Close()

	var (
		pending       []event.Signal
		lastTimestamp time.Time
		barCount      int
		logicalStart  = -1
		signalCloses  []decimal.Decimal
		lastSigClose  decimal.Decimal
		stopped       bool
	)
	signalSymbol := e.config.SignalSymbol()

	for {
		if e.stopRequested.Load() {
			e.logger.Warn().Msg("Stop requested, terminating early")
			stopped = true
			break
		}

		dp, err := e.feed.Next()
		if err != nil {
			return nil, &AbortError{Kind: AbortDataError, Timestamp: lastTimestamp, Msg: fmt.Sprintf("reading market data: %v", err), Err: err}
		}
		if dp == nil {
			break
		}
		if !lastTimestamp.IsZero() && !dp.Timestamp.After(lastTimestamp) {
			return nil, &AbortError{
				Kind:      AbortDataError,
				Timestamp: dp.Timestamp,
				Msg:       "data handler emitted non-increasing timestamp",
			}
		}
		lastTimestamp = dp.Timestamp

		barsBySymbol := make(map[string]event.Bar, len(dp.Bars))
		for _, bar := range dp.Bars {
			barsBySymbol[bar.Symbol] = bar
		}
		e.portfolio.ObserveBars(dp.Bars)

		// A next-bar-open batch deferred from the previous timestamp
		// executes against this group's opens before anything else happens.
		if len(pending) > 0 {
			e.portfolio.ExecuteSignals(pending, barsBySymbol, true, dp.Timestamp)
			pending = nil
		}

		e.portfolio.CheckStops(dp.Bars, dp.Timestamp)

		var signals []event.Signal
		for _, bar := range dp.Bars {
			e.ctx.Append(bar)

			emitted, err := e.strategy.OnBar(e.ctx, bar)
			if err != nil {
				var insufficient *strategy.InsufficientHistoryError
				if errors.As(err, &insufficient) {
					// The strategy's own warm-up problem; no signal this bar.
					e.logger.Debug().Err(err).Str("symbol", bar.Symbol).Msg("Strategy short on history")
					continue
				}
				return nil, &AbortError{
					Kind:      AbortContractViolation,
					Timestamp: dp.Timestamp,
					Msg:       fmt.Sprintf("strategy OnBar: %v", err),
					Err:       err,
				}
			}

			for _, sig := range emitted {
				if err := sig.Validate(); err != nil {
					return nil, &AbortError{
						Kind:      AbortInvalidInput,
						Timestamp: dp.Timestamp,
						Msg:       err.Error(),
						Err:       err,
					}
				}
				if !e.universe[sig.Symbol] {
					return nil, &AbortError{
						Kind:      AbortInvalidInput,
						Timestamp: dp.Timestamp,
						Msg:       fmt.Sprintf("signal for unknown symbol %q", sig.Symbol),
					}
				}
				signals = append(signals, sig)
			}
		}

		if len(signals) > 0 {
			if e.config.FillPolicy == FillNextBarOpen {
				pending = signals
			} else {
				e.portfolio.ExecuteSignals(signals, barsBySymbol, false, dp.Timestamp)
			}
		}

		e.portfolio.MarkToMarket(dp.Timestamp, dp.Warmup)
		if !dp.Warmup && logicalStart < 0 {
			logicalStart = len(e.portfolio.EquityHistory()) - 1
		}

		// Track the signal symbol's close series for the buy-and-hold
		// benchmark column; carry the last close forward on lenient gaps.
		if bar, ok := barsBySymbol[signalSymbol]; ok {
			lastSigClose = bar.Close
		}
		signalCloses = append(signalCloses, lastSigClose)

		barCount++
	}

	e.logger.Info().Int("bars_processed", barCount).Msg("Backtest completed")

	if logicalStart < 0 {
		logicalStart = 0
	}

	equity := e.portfolio.EquityHistory()
	finalValue := e.config.InitialCapital
	var startDate, endDate time.Time
	if len(equity) > 0 {
		finalValue = equity[len(equity)-1].Value
		startDate = equity[0].Timestamp
		endDate = equity[len(equity)-1].Timestamp
	}

	result := &Result{
		Journal:           e.portfolio.Journal(),
		Fills:             e.portfolio.Fills(),
		EquityHistory:     equity,
		AllocationHistory: e.portfolio.AllocationHistory(),
		SignalCloses:      signalCloses,
		FinalValue:        finalValue,
		Metadata: Metadata{
			StrategyName:      e.strategy.Name(),
			Parameters:        e.strategy.Parameters(),
			Symbols:           e.config.Symbols,
			SignalSymbol:      signalSymbol,
			Timeframe:         e.config.Timeframe,
			StartDate:         startDate,
			EndDate:           endDate,
			InitialCapital:    e.config.InitialCapital,
			BarsProcessed:     barCount,
			LogicalStartIndex: logicalStart,
			FillPolicy:        e.config.FillPolicy,
			Stopped:           stopped,
		},
	}
	result.Metrics = metrics.Compute(metrics.Input{
		Fills:             result.Fills,
		Equity:            equity,
		InitialCapital:    e.config.InitialCapital,
		PeriodsPerYear:    metrics.PeriodsPerYear(e.config.Timeframe),
		LogicalStartIndex: logicalStart,
	})
	return result, nil
}

// Portfolio exposes the engine's portfolio for inspection in tests and
// tooling. Mutating it outside the run loop is a contract violation.
func (e *Engine) Portfolio() *portfolio.Portfolio {
	return e.portfolio
}
