package feed

import (
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
)

// DataPoint is the set of bars sharing one timestamp, sorted
// lexicographically by symbol. Warmup marks points emitted before the
// logical start date to prime strategy indicators.
type DataPoint struct {
	Timestamp time.Time
	Bars      []event.Bar
	Warmup    bool
}

// Bar returns the bar for symbol within the group, if present.
func (dp *DataPoint) Bar(symbol string) (event.Bar, bool) {
	for _, bar := range dp.Bars {
		if bar.Symbol == symbol {
			return bar, true
		}
	}
	return event.Bar{}, false
}

// CompletenessPolicy decides which timestamps a multi-symbol feed emits.
type CompletenessPolicy string

const (
	// PolicyStrict emits only timestamps at which every universe symbol has
	// a bar.
	PolicyStrict CompletenessPolicy = "strict"
	// PolicyLenient emits timestamps at which the signal symbol (first of
	// the universe) has a bar; other symbols may be absent from the group.
	PolicyLenient CompletenessPolicy = "lenient"
)

// DataHandler is an ordered, finite iterator over timestamp-grouped bars.
// Timestamps are strictly increasing; within a group there is at most one
// bar per symbol.
type DataHandler interface {
	// Initialize loads or prepares the underlying data
	Initialize() error

	// Next returns the next chronological datapoint, or nil at EOF
	Next() (*DataPoint, error)

	// Close releases the underlying resources
	Close() error

	// Symbols returns the declared universe
	Symbols() []string

	// Timeframe returns the bar timeframe of the data
	Timeframe() string
}

// BarProvider is a source of persisted bars by symbol, timeframe and range.
type BarProvider interface {
	// GetBars retrieves validated bars within [start, end], oldest first
	GetBars(symbol string, timeframe string, start, end time.Time) ([]event.Bar, error)

	// GetBarsBefore retrieves up to limit bars strictly before the given
	// instant, oldest first; used to satisfy warm-up requests
	GetBarsBefore(symbol string, timeframe string, before time.Time, limit int) ([]event.Bar, error)
}
