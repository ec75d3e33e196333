package strategy

import (
	"github.com/ridopark/JonBuhReplay/pkg/event"
)

// barRing is a fixed-capacity ring buffer of bars with O(1) push and indexed
// reads from the tail. Storage is contiguous; once full, the oldest bar is
// overwritten.
type barRing struct {
	buf  []event.Bar
	head int // index of the oldest element
	size int
}

func newBarRing(capacity int) *barRing {
	return &barRing{buf: make([]event.Bar, capacity)}
}

func (r *barRing) push(bar event.Bar) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = bar
		r.size++
		return
	}
	r.buf[r.head] = bar
	r.head = (r.head + 1) % len(r.buf)
}

func (r *barRing) len() int {
	return r.size
}

// at returns the i-th oldest buffered bar (0 = oldest).
func (r *barRing) at(i int) event.Bar {
	return r.buf[(r.head+i)%len(r.buf)]
}

// last returns the n most recent bars, oldest first.
func (r *barRing) last(n int) []event.Bar {
	out := make([]event.Bar, n)
	for i := 0; i < n; i++ {
		out[i] = r.at(r.size - n + i)
	}
	return out
}
