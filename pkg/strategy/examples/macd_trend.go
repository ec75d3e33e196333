package examples

import (
	"errors"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/indicator"
	"github.com/ridopark/JonBuhReplay/pkg/strategy"
	"github.com/shopspring/decimal"
)

// Regime is one of the five market states the MACDTrend strategy
// distinguishes.
type Regime string

const (
	RegimeUnknown    Regime = "UNKNOWN"
	RegimeStrongBull Regime = "STRONG_BULL"
	RegimeRecovery   Regime = "RECOVERY"
	RegimeWeakening  Regime = "WEAKENING"
	RegimeStrongBear Regime = "STRONG_BEAR"
	RegimeNeutral    Regime = "NEUTRAL"
)

// MACDTrendConfig parameterizes the regime strategy. Indicators are
// computed on the signal symbol; trades go to the bull, defense and bear
// vehicles. RegimeSymbol is an optional volatility index acting as a master
// switch.
type MACDTrendConfig struct {
	SignalSymbol  string
	BullSymbol    string // leveraged long vehicle, ATR-risk sized
	DefenseSymbol string // unleveraged vehicle, flat percent, no stop
	BearSymbol    string // inverse vehicle, ATR-risk sized
	RegimeSymbol  string // optional, e.g. a volatility index

	TrendEMAPeriod int
	FastPeriod     int
	SlowPeriod     int
	SignalPeriod   int
	ATRPeriod      int

	ATRStopMultiplier decimal.Decimal // e.g. 3.0
	RiskPercent       decimal.Decimal // e.g. 0.025 of equity at risk
	DefensePercent    decimal.Decimal // e.g. 0.60 flat allocation
	VolatilityCeiling decimal.Decimal // regime-symbol level forcing NEUTRAL (cash)
}

// DefaultMACDTrendConfig returns the production parameter set: EMA(50)
// trend filter, MACD(12/26/9), ATR(14) with a 3x stop at 2.5% risk, 60%
// defensive allocation.
func DefaultMACDTrendConfig(signal, bull, defense, bear string) MACDTrendConfig {
	return MACDTrendConfig{
		SignalSymbol:      signal,
		BullSymbol:        bull,
		DefenseSymbol:     defense,
		BearSymbol:        bear,
		TrendEMAPeriod:    50,
		FastPeriod:        12,
		SlowPeriod:        26,
		SignalPeriod:      9,
		ATRPeriod:         14,
		ATRStopMultiplier: decimal.NewFromFloat(3.0),
		RiskPercent:       decimal.NewFromFloat(0.025),
		DefensePercent:    decimal.NewFromFloat(0.60),
		VolatilityCeiling: decimal.NewFromInt(30),
	}
}

// MACDTrend is the five-regime signal-asset strategy: trend (price vs EMA)
// and momentum (MACD vs signal line, MACD vs zero) on the signal symbol
// classify the regime; the portfolio rebalances into the matching vehicle
// only on regime transitions.
type MACDTrend struct {
	*strategy.BaseStrategy
	cfg    MACDTrendConfig
	regime Regime
}

// NewMACDTrend creates the regime strategy.
func NewMACDTrend(cfg MACDTrendConfig) *MACDTrend {
	base := strategy.NewBaseStrategy("MACDTrend", map[string]interface{}{
		"signal_symbol":  cfg.SignalSymbol,
		"bull_symbol":    cfg.BullSymbol,
		"defense_symbol": cfg.DefenseSymbol,
		"bear_symbol":    cfg.BearSymbol,
		"trend_ema":      cfg.TrendEMAPeriod,
		"macd":           []int{cfg.FastPeriod, cfg.SlowPeriod, cfg.SignalPeriod},
		"atr_period":     cfg.ATRPeriod,
		"atr_stop_mult":  cfg.ATRStopMultiplier.String(),
		"risk_percent":   cfg.RiskPercent.String(),
		"defense_pct":    cfg.DefensePercent.String(),
	})

	warmup := cfg.TrendEMAPeriod
	if macdBars := cfg.SlowPeriod + cfg.SignalPeriod; macdBars > warmup {
		warmup = macdBars
	}
	base.SetWarmupBars(warmup + 10)

	return &MACDTrend{
		BaseStrategy: base,
		cfg:          cfg,
		regime:       RegimeUnknown,
	}
}

// vehicles returns every symbol this strategy may hold.
func (s *MACDTrend) vehicles() []string {
	return []string{s.cfg.BullSymbol, s.cfg.DefenseSymbol, s.cfg.BearSymbol}
}

// OnBar classifies the regime on signal-symbol bars and rebalances on
// transitions. Bars of the traded vehicles only feed history.
func (s *MACDTrend) OnBar(ctx *strategy.Context, bar event.Bar) ([]event.Signal, error) {
	if bar.Symbol != s.cfg.SignalSymbol {
		return nil, nil
	}

	need := s.WarmupBars()
	closes, err := ctx.Closes(s.cfg.SignalSymbol, need)
	if err != nil {
		var insufficient *strategy.InsufficientHistoryError
		if errors.As(err, &insufficient) {
			return nil, nil
		}
		return nil, err
	}

	ema, err := indicator.EMA(closes, s.cfg.TrendEMAPeriod)
	if err != nil {
		return nil, err
	}
	macdLine, macdSignal, _, err := indicator.MACD(closes, s.cfg.FastPeriod, s.cfg.SlowPeriod, s.cfg.SignalPeriod)
	if err != nil {
		return nil, err
	}

	last := len(closes) - 1
	if !ema[last].Valid || !macdLine[last].Valid || !macdSignal[last].Valid {
		return nil, nil
	}

	price := closes[last]
	trendUp := price.GreaterThan(ema[last].Decimal)
	momentumUp := macdLine[last].Decimal.GreaterThan(macdSignal[last].Decimal)
	macdPositive := macdLine[last].Decimal.IsPositive()

	regime := classifyRegime(trendUp, momentumUp, macdPositive)

	snapshot := map[string]decimal.Decimal{
		"ema":         ema[last].Decimal,
		"macd":        macdLine[last].Decimal,
		"macd_signal": macdSignal[last].Decimal,
		"close":       price,
	}

	// Volatility master switch: an elevated regime index replaces every
	// regime except STRONG_BEAR with NEUTRAL, which holds cash.
	if s.cfg.RegimeSymbol != "" {
		if vix, ok := ctx.LastBar(s.cfg.RegimeSymbol); ok {
			snapshot["regime_index"] = vix.Close
			if vix.Close.GreaterThan(s.cfg.VolatilityCeiling) && regime != RegimeStrongBear {
				regime = RegimeNeutral
			}
		}
	}

	thresholds := map[string]decimal.Decimal{
		"atr_stop_mult": s.cfg.ATRStopMultiplier,
		"vol_ceiling":   s.cfg.VolatilityCeiling,
	}

	if regime == s.regime {
		return nil, nil
	}
	previous := s.regime
	s.regime = regime

	logger := ctx.Logger()
	logger.Info().
		Str("from", string(previous)).
		Str("to", string(regime)).
		Str("close", price.String()).
		Msg("Regime transition")

	return s.rebalance(ctx, regime, snapshot, thresholds)
}

func classifyRegime(trendUp, momentumUp, macdPositive bool) Regime {
	switch {
	case trendUp && momentumUp && macdPositive:
		return RegimeStrongBull
	case trendUp && momentumUp:
		return RegimeRecovery
	case trendUp:
		return RegimeWeakening
	case !momentumUp && !macdPositive:
		return RegimeStrongBear
	default:
		return RegimeNeutral
	}
}

// rebalance exits every vehicle that doesn't match the new regime and
// enters the matching one. The engine executes sells before buys, so the
// exits fund the entry within the same batch.
func (s *MACDTrend) rebalance(ctx *strategy.Context, regime Regime, snapshot, thresholds map[string]decimal.Decimal) ([]event.Signal, error) {
	var target string
	switch regime {
	case RegimeStrongBull:
		target = s.cfg.BullSymbol
	case RegimeRecovery, RegimeWeakening:
		target = s.cfg.DefenseSymbol
	case RegimeStrongBear:
		target = s.cfg.BearSymbol
	default:
		target = "" // cash
	}

	var signals []event.Signal
	for _, vehicle := range s.vehicles() {
		if vehicle == target || !ctx.HasPosition(vehicle) {
			continue
		}
		sig, err := ctx.Sell(vehicle, decimal.Zero,
			strategy.WithReason("regime_exit"),
			strategy.WithState(string(regime)),
			strategy.WithIndicators(snapshot),
			strategy.WithThresholds(thresholds),
		)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}

	if target == "" || ctx.HasPosition(target) {
		return signals, nil
	}

	entry, err := s.enter(ctx, target, regime, snapshot, thresholds)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		signals = append(signals, *entry)
	}
	return signals, nil
}

// enter builds the entry signal for the target vehicle: ATR-risk sizing
// with a protective stop for the leveraged vehicles, flat percent with a
// regime-managed exit for the defensive one.
func (s *MACDTrend) enter(ctx *strategy.Context, target string, regime Regime, snapshot, thresholds map[string]decimal.Decimal) (*event.Signal, error) {
	if target == s.cfg.DefenseSymbol {
		sig, err := ctx.Buy(target, s.cfg.DefensePercent,
			strategy.WithReason("regime_entry"),
			strategy.WithState(string(regime)),
			strategy.WithIndicators(snapshot),
			strategy.WithThresholds(thresholds),
		)
		if err != nil {
			return nil, err
		}
		return &sig, nil
	}

	atrNeed := s.cfg.ATRPeriod + 1
	highs, err := ctx.Highs(target, atrNeed)
	if err != nil {
		return s.skipOnShortHistory(err)
	}
	lows, err := ctx.Lows(target, atrNeed)
	if err != nil {
		return s.skipOnShortHistory(err)
	}
	closes, err := ctx.Closes(target, atrNeed)
	if err != nil {
		return s.skipOnShortHistory(err)
	}

	atr, err := indicator.ATR(highs, lows, closes, s.cfg.ATRPeriod)
	if err != nil {
		return nil, err
	}
	lastATR := atr[len(atr)-1]
	if !lastATR.Valid || !lastATR.Decimal.IsPositive() {
		return nil, nil
	}

	riskPerShare := lastATR.Decimal.Mul(s.cfg.ATRStopMultiplier)
	snapshot["atr"] = lastATR.Decimal

	sig, err := ctx.Buy(target, s.cfg.RiskPercent,
		strategy.WithRisk(riskPerShare),
		strategy.WithReason("regime_entry"),
		strategy.WithState(string(regime)),
		strategy.WithIndicators(snapshot),
		strategy.WithThresholds(thresholds),
	)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

func (s *MACDTrend) skipOnShortHistory(err error) (*event.Signal, error) {
	var insufficient *strategy.InsufficientHistoryError
	if errors.As(err, &insufficient) {
		return nil, nil
	}
	return nil, err
}
