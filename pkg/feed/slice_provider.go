package feed

import (
	"sort"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
)

// SliceProvider serves bars from in-memory slices. It backs library use and
// tests where no database is available.
type SliceProvider struct {
	bars map[string][]event.Bar
}

// NewSliceProvider creates a provider over the given bars. Bars are indexed
// by symbol and sorted by timestamp.
func NewSliceProvider(bars []event.Bar) *SliceProvider {
	bySymbol := make(map[string][]event.Bar)
	for _, bar := range bars {
		bySymbol[bar.Symbol] = append(bySymbol[bar.Symbol], bar)
	}
	for symbol := range bySymbol {
		series := bySymbol[symbol]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Timestamp.Before(series[j].Timestamp)
		})
		bySymbol[symbol] = series
	}
	return &SliceProvider{bars: bySymbol}
}

// GetBars returns the bars for symbol within [start, end], oldest first.
func (sp *SliceProvider) GetBars(symbol string, timeframe string, start, end time.Time) ([]event.Bar, error) {
	var out []event.Bar
	for _, bar := range sp.bars[symbol] {
		if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

// GetBarsBefore returns up to limit bars strictly before the given instant,
// oldest first.
func (sp *SliceProvider) GetBarsBefore(symbol string, timeframe string, before time.Time, limit int) ([]event.Bar, error) {
	var out []event.Bar
	for _, bar := range sp.bars[symbol] {
		if !bar.Timestamp.Before(before) {
			break
		}
		out = append(out, bar)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

var _ BarProvider = (*SliceProvider)(nil)
