package examples

import (
	"testing"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/strategy"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubView struct {
	positions map[string]int64
}

func (v *stubView) Cash() decimal.Decimal   { return decimal.NewFromInt(10_000) }
func (v *stubView) Equity() decimal.Decimal { return decimal.NewFromInt(10_000) }
func (v *stubView) PositionQuantity(symbol string) int64 {
	return v.positions[symbol]
}
func (v *stubView) HasPosition(symbol string) bool {
	return v.positions[symbol] != 0
}

func newTestContext(positions map[string]int64) *strategy.Context {
	if positions == nil {
		positions = map[string]int64{}
	}
	ctx := strategy.NewContext(0, &stubView{positions: positions}, zerolog.Nop())
	ctx.BindStrategy("test")
	return ctx
}

func mkBar(t *testing.T, symbol string, day int, close float64) event.Bar {
	t.Helper()
	c := decimal.NewFromFloat(close)
	bar, err := event.NewBar(symbol,
		time.Date(2024, 1, day, 21, 0, 0, 0, time.UTC),
		c, c.Add(decimal.NewFromInt(1)), c.Sub(decimal.NewFromInt(1)), c,
		1000, "1D")
	require.NoError(t, err)
	return bar
}

func TestBuyAndHoldEmitsOnce(t *testing.T) {
	s := NewBuyAndHold("SPY", decimal.NewFromInt(1))
	ctx := newTestContext(nil)

	first := mkBar(t, "SPY", 1, 470)
	ctx.Append(first)
	signals, err := s.OnBar(ctx, first)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, event.SideBuy, signals[0].Side)
	assert.True(t, signals[0].PortfolioPercent.Equal(decimal.NewFromInt(1)))

	second := mkBar(t, "SPY", 2, 471)
	ctx.Append(second)
	signals, err = s.OnBar(ctx, second)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestBuyAndHoldIgnoresOtherSymbols(t *testing.T) {
	s := NewBuyAndHold("SPY", decimal.NewFromInt(1))
	ctx := newTestContext(nil)

	other := mkBar(t, "QQQ", 1, 400)
	ctx.Append(other)
	signals, err := s.OnBar(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestSMACrossoverQuietDuringWarmup(t *testing.T) {
	s, err := NewSMACrossover("SPY", 3, 5, decimal.NewFromFloat(0.95))
	require.NoError(t, err)
	ctx := newTestContext(nil)

	for day := 1; day <= 4; day++ {
		bar := mkBar(t, "SPY", day, float64(100+day))
		ctx.Append(bar)
		signals, err := s.OnBar(ctx, bar)
		require.NoError(t, err)
		assert.Empty(t, signals, "day %d is inside the warm-up", day)
	}
}

func TestSMACrossoverEntersOnCross(t *testing.T) {
	s, err := NewSMACrossover("SPY", 3, 5, decimal.NewFromFloat(0.95))
	require.NoError(t, err)
	ctx := newTestContext(nil)

	var last []event.Signal
	for day, close := range []float64{10, 11, 12, 13, 14} {
		bar := mkBar(t, "SPY", day+1, close)
		ctx.Append(bar)
		last, err = s.OnBar(ctx, bar)
		require.NoError(t, err)
	}

	require.Len(t, last, 1)
	assert.Equal(t, event.SideBuy, last[0].Side)
	assert.Equal(t, "bullish_crossover", last[0].Reason)
	assert.Contains(t, last[0].Indicators, "sma_3")
	assert.Contains(t, last[0].Indicators, "sma_5")
}

func TestClassifyRegime(t *testing.T) {
	cases := []struct {
		name          string
		trendUp       bool
		momentumUp    bool
		macdAboveZero bool
		want          Regime
	}{
		{"full alignment", true, true, true, RegimeStrongBull},
		{"trend and momentum, macd below zero", true, true, false, RegimeRecovery},
		{"trend only", true, false, false, RegimeWeakening},
		{"trend up but macd positive momentum down", true, false, true, RegimeWeakening},
		{"downtrend with negative momentum", false, false, false, RegimeStrongBear},
		{"downtrend mixed", false, true, true, RegimeNeutral},
		{"downtrend momentum up macd negative", false, true, false, RegimeNeutral},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyRegime(tc.trendUp, tc.momentumUp, tc.macdAboveZero))
		})
	}
}

func TestMACDTrendEmitsOnlyOnSignalSymbol(t *testing.T) {
	cfg := DefaultMACDTrendConfig("QQQ", "TQQQ", "SPLG", "SQQQ")
	s := NewMACDTrend(cfg)
	ctx := newTestContext(nil)

	bar := mkBar(t, "TQQQ", 1, 50)
	ctx.Append(bar)
	signals, err := s.OnBar(ctx, bar)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestMACDTrendRebalancesOnTransition(t *testing.T) {
	cfg := DefaultMACDTrendConfig("QQQ", "TQQQ", "SPLG", "SQQQ")
	s := NewMACDTrend(cfg)
	ctx := newTestContext(map[string]int64{"SPLG": 100})

	// A long accelerating uptrend: price above EMA, MACD above its signal
	// and above zero on the last bar. The slope has to keep growing: on a
	// straight-line trend the MACD line settles onto its signal line.
	warmup := s.WarmupBars()
	var signals []event.Signal
	var err error
	for day := 0; day < warmup+5; day++ {
		price := 100*(1+0.01*float64(day)) + 0.01*float64(day*day)
		for i, symbol := range []string{"QQQ", "SPLG", "SQQQ", "TQQQ"} {
			bar := mkBar(t, symbol, 1, price+float64(i))
			bar.Timestamp = time.Date(2023, 1, 1, 21, 0, 0, 0, time.UTC).AddDate(0, 0, day)
			ctx.Append(bar)
			if symbol == "QQQ" {
				signals, err = s.OnBar(ctx, bar)
				require.NoError(t, err)
			}
		}
		if len(signals) > 0 {
			break
		}
	}

	require.NotEmpty(t, signals, "an uptrend must eventually enter the bull regime")

	// The defensive holding exits first, then the bull vehicle enters with
	// ATR-risk sizing.
	require.Len(t, signals, 2)
	assert.Equal(t, event.SideSell, signals[0].Side)
	assert.Equal(t, "SPLG", signals[0].Symbol)
	assert.Equal(t, event.SideBuy, signals[1].Side)
	assert.Equal(t, "TQQQ", signals[1].Symbol)
	assert.True(t, signals[1].RiskSized())
	assert.Equal(t, string(RegimeStrongBull), signals[1].State)
}
