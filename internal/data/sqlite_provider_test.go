package data

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
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

func mkBar(t *testing.T, symbol string, day int, close string) event.Bar {
	t.Helper()
	c := d(close)
	bar, err := event.NewBar(symbol, ts(day), c, c.Add(d("1")), c.Sub(d("1")), c, 1000, "1D")
	require.NoError(t, err)
	return bar
}

func openStore(t *testing.T) *SQLiteProvider {
	t.Helper()
	provider, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestSQLiteIngestAndQuery(t *testing.T) {
	provider := openStore(t)

	bars := []event.Bar{
		mkBar(t, "QQQ", 1, "400.25"),
		mkBar(t, "QQQ", 2, "402.5"),
		mkBar(t, "QQQ", 3, "401"),
		mkBar(t, "TQQQ", 2, "50"),
	}
	require.NoError(t, provider.IngestBars(bars))

	got, err := provider.GetBars("QQQ", "1D", ts(1), ts(3))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "QQQ", got[0].Symbol)
	assert.True(t, got[0].Timestamp.Equal(ts(1)))
	assert.True(t, got[1].Close.Equal(d("402.5")), "close %s", got[1].Close)
	assert.Equal(t, int64(1000), got[2].Volume)

	// Range filter excludes day 3.
	got, err = provider.GetBars("QQQ", "1D", ts(1), ts(2))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLiteUpsertReplacesBar(t *testing.T) {
	provider := openStore(t)

	require.NoError(t, provider.IngestBars([]event.Bar{mkBar(t, "QQQ", 1, "400")}))
	require.NoError(t, provider.IngestBars([]event.Bar{mkBar(t, "QQQ", 1, "401")}))

	got, err := provider.GetBars("QQQ", "1D", ts(1), ts(1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Close.Equal(d("401")))
}

func TestSQLiteBarsBefore(t *testing.T) {
	provider := openStore(t)

	var bars []event.Bar
	for day := 1; day <= 5; day++ {
		bars = append(bars, mkBar(t, "QQQ", day, "400"))
	}
	require.NoError(t, provider.IngestBars(bars))

	got, err := provider.GetBarsBefore("QQQ", "1D", ts(4), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Oldest first, strictly before the cutoff.
	assert.True(t, got[0].Timestamp.Equal(ts(2)))
	assert.True(t, got[1].Timestamp.Equal(ts(3)))
}
