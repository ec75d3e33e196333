package metrics

import (
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
)

// openLot is an open entry awaiting its exit.
type openLot struct {
	Quantity   int64
	EntryPrice float64
	EntryTime  time.Time
	Commission float64
}

// roundTrip is a completed entry/exit pair.
type roundTrip struct {
	PL          float64
	HoldingDays float64
}

// positionTracker matches buys against sells per symbol using FIFO lots to
// recover round-trip P&L from the flat fill journal.
type positionTracker struct {
	lots []openLot
}

// processFill consumes one fill and returns the round trips it closed.
func (pt *positionTracker) processFill(fill event.Fill) []roundTrip {
	price := fill.Price.InexactFloat64()
	commission := fill.Commission.InexactFloat64()

	if fill.Side == event.SideBuy {
		pt.lots = append(pt.lots, openLot{
			Quantity:   fill.Quantity,
			EntryPrice: price,
			EntryTime:  fill.Timestamp,
			Commission: commission,
		})
		return nil
	}

	var trips []roundTrip
	remaining := fill.Quantity
	for len(pt.lots) > 0 && remaining > 0 {
		lot := &pt.lots[0]

		closed := lot.Quantity
		if closed > remaining {
			closed = remaining
		}

		grossPL := (price - lot.EntryPrice) * float64(closed)
		entryCommission := lot.Commission * float64(closed) / float64(lot.Quantity)
		exitCommission := commission * float64(closed) / float64(fill.Quantity)
		netPL := grossPL - entryCommission - exitCommission

		trips = append(trips, roundTrip{
			PL:          netPL,
			HoldingDays: fill.Timestamp.Sub(lot.EntryTime).Hours() / 24,
		})

		lot.Commission -= entryCommission
		lot.Quantity -= closed
		remaining -= closed
		if lot.Quantity == 0 {
			pt.lots = pt.lots[1:]
		}
	}
	return trips
}
