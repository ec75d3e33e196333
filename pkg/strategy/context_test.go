package strategy

import (
	"testing"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubView struct {
	cash      decimal.Decimal
	equity    decimal.Decimal
	positions map[string]int64
}

func (v *stubView) Cash() decimal.Decimal   { return v.cash }
func (v *stubView) Equity() decimal.Decimal { return v.equity }
func (v *stubView) PositionQuantity(symbol string) int64 {
	return v.positions[symbol]
}
func (v *stubView) HasPosition(symbol string) bool {
	return v.positions[symbol] != 0
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

func testContext() *Context {
	view := &stubView{
		cash:      decimal.NewFromInt(10_000),
		equity:    decimal.NewFromInt(10_000),
		positions: map[string]int64{"TQQQ": 50},
	}
	return NewContext(0, view, zerolog.Nop())
}

func TestContextHistoryAccessors(t *testing.T) {
	ctx := testContext()
	for day := 1; day <= 5; day++ {
		ctx.Append(mkBar(t, "QQQ", day, float64(100+day)))
	}

	closes, err := ctx.Closes("QQQ", 3)
	require.NoError(t, err)
	require.Len(t, closes, 3)
	// Most recent last.
	assert.True(t, closes[2].Equal(decimal.NewFromInt(105)))
	assert.True(t, closes[0].Equal(decimal.NewFromInt(103)))

	highs, err := ctx.Highs("QQQ", 2)
	require.NoError(t, err)
	assert.True(t, highs[1].Equal(decimal.NewFromInt(106)))

	lows, err := ctx.Lows("QQQ", 2)
	require.NoError(t, err)
	assert.True(t, lows[1].Equal(decimal.NewFromInt(104)))

	assert.Equal(t, 5, ctx.BarCount("QQQ"))

	last, ok := ctx.LastBar("QQQ")
	require.True(t, ok)
	assert.True(t, last.Close.Equal(decimal.NewFromInt(105)))
}

func TestContextInsufficientHistory(t *testing.T) {
	ctx := testContext()
	ctx.Append(mkBar(t, "QQQ", 1, 100))

	_, err := ctx.Closes("QQQ", 5)
	require.Error(t, err)

	var insufficient *InsufficientHistoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5, insufficient.Need)
	assert.Equal(t, 1, insufficient.Have)

	_, err = ctx.Closes("UNKNOWN", 1)
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Have)
}

func TestContextRingBufferBounds(t *testing.T) {
	view := &stubView{cash: decimal.Zero, equity: decimal.Zero, positions: map[string]int64{}}
	ctx := NewContext(3, view, zerolog.Nop())

	for day := 1; day <= 10; day++ {
		ctx.Append(mkBar(t, "SPY", day, float64(day)))
	}

	assert.Equal(t, 3, ctx.BarCount("SPY"))

	closes, err := ctx.Closes("SPY", 3)
	require.NoError(t, err)
	assert.True(t, closes[0].Equal(decimal.NewFromInt(8)))
	assert.True(t, closes[2].Equal(decimal.NewFromInt(10)))

	_, err = ctx.Closes("SPY", 4)
	require.Error(t, err)
}

func TestContextPortfolioView(t *testing.T) {
	ctx := testContext()

	assert.True(t, ctx.HasPosition("TQQQ"))
	assert.False(t, ctx.HasPosition("SQQQ"))
	assert.Equal(t, int64(50), ctx.PositionQuantity("TQQQ"))
	assert.True(t, ctx.Cash().Equal(decimal.NewFromInt(10_000)))
	assert.True(t, ctx.Equity().Equal(decimal.NewFromInt(10_000)))
}

func TestContextSignalConstructors(t *testing.T) {
	ctx := testContext()
	ctx.BindStrategy("TestStrat")
	ctx.Append(mkBar(t, "QQQ", 5, 100))

	risk := decimal.NewFromFloat(4.5)
	sig, err := ctx.Buy("TQQQ", decimal.NewFromFloat(0.025),
		WithRisk(risk),
		WithReason("entry"),
		WithState("STRONG_BULL"),
	)
	require.NoError(t, err)

	assert.Equal(t, event.SideBuy, sig.Side)
	assert.Equal(t, "TestStrat", sig.Strategy)
	assert.Equal(t, "entry", sig.Reason)
	assert.Equal(t, "STRONG_BULL", sig.State)
	assert.True(t, sig.RiskPerShare.Equal(risk))
	assert.True(t, sig.Timestamp.Equal(ctx.Now()))

	sell, err := ctx.Sell("TQQQ", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, event.SideSell, sell.Side)
	assert.True(t, sell.PortfolioPercent.IsZero())

	_, err = ctx.Buy("TQQQ", decimal.NewFromInt(2))
	require.Error(t, err)
}
