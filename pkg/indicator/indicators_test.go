package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestSMABoundaries(t *testing.T) {
	prices := series(1, 2, 3, 4, 5)

	t.Run("period equals length", func(t *testing.T) {
		out, err := SMA(prices, len(prices))
		require.NoError(t, err)
		require.Len(t, out, len(prices))

		for i := 0; i < len(prices)-1; i++ {
			assert.False(t, out[i].Valid, "index %d should be undefined", i)
		}
		require.True(t, out[len(prices)-1].Valid)
		assert.True(t, out[len(prices)-1].Decimal.Equal(decimal.NewFromInt(3)))
	})

	t.Run("shorter input stays undefined", func(t *testing.T) {
		out, err := SMA(series(1, 2), 5)
		require.NoError(t, err)
		for _, v := range out {
			assert.False(t, v.Valid)
		}
	})

	t.Run("rolling window", func(t *testing.T) {
		out, err := SMA(prices, 3)
		require.NoError(t, err)
		require.True(t, out[4].Valid)
		assert.True(t, out[4].Decimal.Equal(decimal.NewFromInt(4))) // (3+4+5)/3
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := SMA(prices, 0)
		require.Error(t, err)
		_, err = SMA(nil, 3)
		require.Error(t, err)
	})
}

func TestEMASeededWithSMA(t *testing.T) {
	out, err := EMA(series(1, 2, 3, 4), 3)
	require.NoError(t, err)

	assert.False(t, out[1].Valid)
	require.True(t, out[2].Valid)
	assert.True(t, out[2].Decimal.Equal(decimal.NewFromInt(2))) // SMA seed

	// multiplier = 2/(3+1) = 0.5; 4*0.5 + 2*0.5 = 3
	require.True(t, out[3].Valid)
	assert.True(t, out[3].Decimal.Equal(decimal.NewFromInt(3)))
}

func TestWMAWeightsRecent(t *testing.T) {
	out, err := WMA(series(1, 2, 3), 3)
	require.NoError(t, err)

	require.True(t, out[2].Valid)
	// (1*1 + 2*2 + 3*3) / 6
	expected := decimal.NewFromInt(14).Div(decimal.NewFromInt(6))
	assert.True(t, out[2].Decimal.Equal(expected))
}

func TestRSIExtremesAndRange(t *testing.T) {
	t.Run("all gains is 100", func(t *testing.T) {
		prices := make([]decimal.Decimal, 20)
		for i := range prices {
			prices[i] = decimal.NewFromInt(int64(i + 1))
		}
		out, err := RSI(prices, 14)
		require.NoError(t, err)

		require.True(t, out[19].Valid)
		assert.True(t, out[19].Decimal.Equal(decimal.NewFromInt(100)))
	})

	t.Run("all losses is 0", func(t *testing.T) {
		prices := make([]decimal.Decimal, 20)
		for i := range prices {
			prices[i] = decimal.NewFromInt(int64(100 - i))
		}
		out, err := RSI(prices, 14)
		require.NoError(t, err)

		require.True(t, out[19].Valid)
		assert.True(t, out[19].Decimal.IsZero())
	})

	t.Run("always within 0..100", func(t *testing.T) {
		prices := series(44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.1, 45.42,
			45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.0, 46.03, 46.41, 46.22, 45.64)
		out, err := RSI(prices, 14)
		require.NoError(t, err)

		for i, v := range out {
			if !v.Valid {
				continue
			}
			assert.False(t, v.Decimal.IsNegative(), "index %d", i)
			assert.False(t, v.Decimal.GreaterThan(decimal.NewFromInt(100)), "index %d", i)
		}
	})
}

func TestMACDFlatSeries(t *testing.T) {
	prices := make([]decimal.Decimal, 40)
	for i := range prices {
		prices[i] = decimal.NewFromInt(50)
	}

	line, signal, histogram, err := MACD(prices, 12, 26, 9)
	require.NoError(t, err)

	require.True(t, line[39].Valid)
	require.True(t, signal[39].Valid)
	require.True(t, histogram[39].Valid)
	assert.True(t, line[39].Decimal.IsZero())
	assert.True(t, signal[39].Decimal.IsZero())
	assert.True(t, histogram[39].Decimal.IsZero())

	// The signal line needs signalPeriod valid MACD values beyond the slow
	// warm-up.
	assert.False(t, signal[30].Valid)
	assert.True(t, signal[33].Valid)
}

func TestMACDRejectsBadPeriods(t *testing.T) {
	prices := series(1, 2, 3)
	_, _, _, err := MACD(prices, 26, 12, 9)
	require.Error(t, err)
}

func TestBollingerFlatSeriesCollapses(t *testing.T) {
	prices := make([]decimal.Decimal, 25)
	for i := range prices {
		prices[i] = decimal.NewFromInt(10)
	}

	upper, middle, lower, err := Bollinger(prices, 20, decimal.NewFromInt(2))
	require.NoError(t, err)

	require.True(t, middle[24].Valid)
	assert.True(t, upper[24].Decimal.Equal(middle[24].Decimal))
	assert.True(t, lower[24].Decimal.Equal(middle[24].Decimal))
	assert.True(t, middle[24].Decimal.Equal(decimal.NewFromInt(10)))
}

func TestATRPositiveWithRange(t *testing.T) {
	n := 20
	highs := make([]decimal.Decimal, n)
	lows := make([]decimal.Decimal, n)
	closes := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		highs[i] = decimal.NewFromInt(101)
		lows[i] = decimal.NewFromInt(99)
		closes[i] = decimal.NewFromInt(100)
	}

	out, err := ATR(highs, lows, closes, 14)
	require.NoError(t, err)

	assert.False(t, out[12].Valid)
	require.True(t, out[13].Valid)
	assert.True(t, out[19].Decimal.Equal(decimal.NewFromInt(2)))
	assert.True(t, out[19].Decimal.IsPositive())
}

func TestStochastic(t *testing.T) {
	t.Run("close at high is 100", func(t *testing.T) {
		highs := series(10, 11, 12, 13, 14)
		lows := series(9, 10, 11, 12, 13)
		closes := series(10, 11, 12, 13, 14)

		k, _, err := Stochastic(highs, lows, closes, 5, 3)
		require.NoError(t, err)

		require.True(t, k[4].Valid)
		assert.True(t, k[4].Decimal.Equal(decimal.NewFromInt(100)))
	})

	t.Run("zero range yields 50", func(t *testing.T) {
		flat := series(10, 10, 10, 10, 10)
		k, _, err := Stochastic(flat, flat, flat, 3, 2)
		require.NoError(t, err)

		require.True(t, k[4].Valid)
		assert.True(t, k[4].Decimal.Equal(decimal.NewFromInt(50)))
	})
}

func TestOBVAccumulates(t *testing.T) {
	closes := series(10, 11, 10)
	volumes := []int64{100, 200, 300}

	out, err := OBV(closes, volumes)
	require.NoError(t, err)

	assert.True(t, out[0].Decimal.IsZero())
	assert.True(t, out[1].Decimal.Equal(decimal.NewFromInt(200)))
	assert.True(t, out[2].Decimal.Equal(decimal.NewFromInt(-100)))
}

func TestADXBoundsAndWarmup(t *testing.T) {
	n := 40
	highs := make([]decimal.Decimal, n)
	lows := make([]decimal.Decimal, n)
	closes := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		base := decimal.NewFromInt(int64(100 + i))
		highs[i] = base.Add(decimal.NewFromInt(2))
		lows[i] = base.Sub(decimal.NewFromInt(2))
		closes[i] = base
	}

	adx, plusDI, minusDI, err := ADX(highs, lows, closes, 14)
	require.NoError(t, err)

	// DI values appear after one period, ADX after two.
	assert.False(t, plusDI[13].Valid)
	require.True(t, plusDI[14].Valid)
	assert.False(t, adx[26].Valid)
	require.True(t, adx[27].Valid)

	for i := range adx {
		if !adx[i].Valid {
			continue
		}
		assert.False(t, adx[i].Decimal.IsNegative())
		assert.False(t, adx[i].Decimal.GreaterThan(decimal.NewFromInt(100)))
	}

	// A steady uptrend keeps +DI above -DI.
	assert.True(t, plusDI[39].Decimal.GreaterThan(minusDI[39].Decimal))
}
