package metrics

import (
	"testing"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/portfolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func ts(day int) time.Time {
	return time.Date(2024, 1, day, 21, 0, 0, 0, time.UTC)
}

func equitySeries(values ...string) []portfolio.EquityPoint {
	out := make([]portfolio.EquityPoint, len(values))
	for i, v := range values {
		out[i] = portfolio.EquityPoint{Timestamp: ts(i + 1), Value: d(v)}
	}
	return out
}

func fill(id int64, symbol string, day int, side event.Side, quantity int64, price string) event.Fill {
	return event.Fill{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     d(price),
		Timestamp: ts(day),
	}
}

func TestEmptyInputsYieldZerosWithFlag(t *testing.T) {
	report := Compute(Input{InitialCapital: d("10000")})

	assert.True(t, report.Insufficient)
	assert.Zero(t, report.TotalReturnPct)
	assert.Zero(t, report.TotalTrades)
	assert.Zero(t, report.SharpeRatio)
}

func TestTotalReturnAndDrawdown(t *testing.T) {
	report := Compute(Input{
		Equity:         equitySeries("10000", "11000", "9900", "10450", "12100"),
		InitialCapital: d("10000"),
		PeriodsPerYear: 252,
	})

	require.False(t, report.Insufficient)
	assert.InDelta(t, 21.0, report.TotalReturnPct, 1e-9)

	// Peak 11000 -> trough 9900.
	assert.True(t, report.MaxDrawdown.Equal(d("1100")), "dd %s", report.MaxDrawdown)
	assert.InDelta(t, 0.1, report.MaxDrawdownPct, 1e-9)
	require.NotNil(t, report.RecoveryDate)
	assert.True(t, report.RecoveryDate.Equal(ts(5)))

	assert.Positive(t, report.CAGR)
	assert.Positive(t, report.AnnualizedVolatility)
	assert.Positive(t, report.UlcerIndex)
}

func TestNoRecoveryDate(t *testing.T) {
	report := Compute(Input{
		Equity:         equitySeries("10000", "9000", "8500"),
		InitialCapital: d("10000"),
	})

	assert.Nil(t, report.RecoveryDate)
	assert.True(t, report.MaxDrawdown.Equal(d("1500")))
	assert.Positive(t, report.DrawdownDurationDays)
}

func TestTradeStatsFIFORoundTrips(t *testing.T) {
	fills := []event.Fill{
		fill(1, "X", 1, event.SideBuy, 100, "100"),
		fill(2, "X", 5, event.SideSell, 100, "110"), // +1000, 4 days
		fill(3, "X", 6, event.SideBuy, 50, "110"),
		fill(4, "X", 8, event.SideSell, 50, "100"), // -500, 2 days
		fill(5, "Y", 2, event.SideBuy, 10, "50"),
		fill(6, "Y", 4, event.SideSell, 10, "55"), // +50, 2 days
	}

	report := Compute(Input{
		Fills:          fills,
		Equity:         equitySeries("10000", "10100", "10200", "10300", "10400", "10500", "10600", "10700"),
		InitialCapital: d("10000"),
	})

	assert.Equal(t, 3, report.TotalTrades)
	assert.Equal(t, 2, report.WinningTrades)
	assert.Equal(t, 1, report.LosingTrades)
	assert.InDelta(t, 66.666, report.WinRate, 0.01)
	assert.InDelta(t, 1000.0, report.LargestWin, 1e-9)
	assert.InDelta(t, -500.0, report.LargestLoss, 1e-9)
	assert.InDelta(t, 525.0, report.AvgWin, 1e-9)
	assert.InDelta(t, -500.0, report.AvgLoss, 1e-9)
	assert.InDelta(t, 2.1, report.ProfitFactor, 1e-9) // 1050 / 500
	assert.InDelta(t, (4.0+2.0+2.0)/3.0, report.AvgHoldingDays, 1e-9)
}

func TestPartialLotMatching(t *testing.T) {
	fills := []event.Fill{
		fill(1, "X", 1, event.SideBuy, 100, "100"),
		fill(2, "X", 2, event.SideBuy, 100, "110"),
		fill(3, "X", 3, event.SideSell, 150, "120"),
	}

	report := Compute(Input{
		Fills:          fills,
		Equity:         equitySeries("20000", "21000", "22000"),
		InitialCapital: d("20000"),
	})

	// FIFO: 100 @ 100 -> +2000, then 50 @ 110 -> +500.
	assert.Equal(t, 2, report.TotalTrades)
	assert.Equal(t, 2, report.WinningTrades)
	assert.InDelta(t, 2000.0, report.LargestWin, 1e-9)
}

func TestWarmupExcludedFromHorizon(t *testing.T) {
	equity := equitySeries("10000", "10000", "10000", "12000")
	for i := 0; i < 2; i++ {
		equity[i].Warmup = true
	}

	report := Compute(Input{
		Equity:            equity,
		InitialCapital:    d("10000"),
		LogicalStartIndex: 2,
	})

	// The horizon starts at index 2, so only one return period exists.
	assert.InDelta(t, 20.0, report.TotalReturnPct, 1e-9)
	assert.Len(t, report.YearlyReturns, 1)
}

func TestMonthlyAndYearlyReturns(t *testing.T) {
	equity := []portfolio.EquityPoint{
		{Timestamp: time.Date(2024, 1, 15, 21, 0, 0, 0, time.UTC), Value: d("10000")},
		{Timestamp: time.Date(2024, 1, 31, 21, 0, 0, 0, time.UTC), Value: d("10500")},
		{Timestamp: time.Date(2024, 2, 15, 21, 0, 0, 0, time.UTC), Value: d("10200")},
		{Timestamp: time.Date(2024, 2, 29, 21, 0, 0, 0, time.UTC), Value: d("11550")},
	}

	report := Compute(Input{
		Equity:         equity,
		InitialCapital: d("10000"),
	})

	require.Contains(t, report.MonthlyReturns, 2024)
	january := report.MonthlyReturns[2024][time.January]
	february := report.MonthlyReturns[2024][time.February]
	assert.InDelta(t, 0.05, january, 1e-9)
	assert.InDelta(t, 0.10, february, 1e-9)
	assert.InDelta(t, 0.155, report.YearlyReturns[2024], 1e-9)
}

func TestVaRAndOmega(t *testing.T) {
	// A long alternating series gives well-defined tails.
	values := []string{"10000"}
	current := decimal.NewFromInt(10000)
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			current = current.Mul(d("1.01"))
		} else {
			current = current.Mul(d("0.995"))
		}
		values = append(values, current.String())
	}

	report := Compute(Input{
		Equity:         equitySeries(values...),
		InitialCapital: d("10000"),
	})

	assert.InDelta(t, 0.005, report.VaR95, 1e-6)
	assert.Positive(t, report.CVaR95)
	assert.Greater(t, report.OmegaRatio, 1.0)
}

func TestPeriodsPerYear(t *testing.T) {
	assert.Equal(t, 252, PeriodsPerYear("1D"))
	assert.Equal(t, 52, PeriodsPerYear("1W"))
	assert.Equal(t, 252, PeriodsPerYear("unknown"))
}
