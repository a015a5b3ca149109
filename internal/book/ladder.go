// Package book holds the in-memory per-symbol order book ladder.
// A Ladder is owned by exactly one symbol worker and is not thread-safe.
package book

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Level is one aggregated price level.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Delta is one incremental depth update from the external venue.
// A change with Qty == 0 removes the level.
type Delta struct {
	BidChanges []Level
	AskChanges []Level
}

// Ladder keeps bids sorted by price descending and asks ascending.
type Ladder struct {
	bids []Level
	asks []Level
}

// NewLadder creates an empty ladder.
func NewLadder() *Ladder {
	return &Ladder{}
}

// ApplyDelta upserts or removes the changed price levels on each side.
func (l *Ladder) ApplyDelta(d Delta) {
	for _, c := range d.BidChanges {
		l.bids = upsert(l.bids, c, bidBefore)
	}
	for _, c := range d.AskChanges {
		l.asks = upsert(l.asks, c, askBefore)
	}
}

// BestBid returns the highest bid level, if any.
func (l *Ladder) BestBid() (Level, bool) {
	if len(l.bids) == 0 {
		return Level{}, false
	}
	return l.bids[0], true
}

// BestAsk returns the lowest ask level, if any.
func (l *Ladder) BestAsk() (Level, bool) {
	if len(l.asks) == 0 {
		return Level{}, false
	}
	return l.asks[0], true
}

// BidCount returns the number of bid levels.
func (l *Ladder) BidCount() int { return len(l.bids) }

// AskCount returns the number of ask levels.
func (l *Ladder) AskCount() int { return len(l.asks) }

// Bids returns a copy of the bid side, best first.
func (l *Ladder) Bids() []Level {
	out := make([]Level, len(l.bids))
	copy(out, l.bids)
	return out
}

// Asks returns a copy of the ask side, best first.
func (l *Ladder) Asks() []Level {
	out := make([]Level, len(l.asks))
	copy(out, l.asks)
	return out
}

func bidBefore(a, b decimal.Decimal) bool { return a.GreaterThan(b) }
func askBefore(a, b decimal.Decimal) bool { return a.LessThan(b) }

// upsert inserts, replaces or removes one level while keeping the slice
// sorted. before reports whether price a sorts strictly ahead of price b.
func upsert(levels []Level, c Level, before func(a, b decimal.Decimal) bool) []Level {
	i := sort.Search(len(levels), func(i int) bool {
		return !before(levels[i].Price, c.Price)
	})

	if i < len(levels) && levels[i].Price.Equal(c.Price) {
		if c.Qty.IsZero() {
			return append(levels[:i], levels[i+1:]...)
		}
		levels[i].Qty = c.Qty
		return levels
	}

	// Removing a level that was never present is a no-op.
	if c.Qty.IsZero() {
		return levels
	}

	levels = append(levels, Level{})
	copy(levels[i+1:], levels[i:])
	levels[i] = c
	return levels
}
