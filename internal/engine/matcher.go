package engine

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"papertrade/internal/book"
	"papertrade/internal/domain"
	"papertrade/internal/storage"
)

// fillExecutor applies one fill atomically. The concrete implementation is
// Executor.
type fillExecutor interface {
	ExecuteFill(ctx context.Context, o *domain.Order, fillPrice decimal.Decimal) (FillOutcome, error)
}

// Matcher runs matching passes over a symbol's pending orders against the
// current in-memory ladder.
type Matcher struct {
	store *storage.Store
	exec  fillExecutor

	// onPassComplete fires after every pass, filled or not. The manager
	// hooks worker-retirement checks here.
	onPassComplete func(ctx context.Context, symbol string)
}

// NewMatcher creates a matcher. onPassComplete may be nil.
func NewMatcher(store *storage.Store, exec fillExecutor, onPassComplete func(ctx context.Context, symbol string)) *Matcher {
	return &Matcher{store: store, exec: exec, onPassComplete: onPassComplete}
}

// MatchSymbol runs one matching pass: pending orders oldest-first, each tried
// against the current top of book. Per-order failures are logged and skipped
// so one bad order cannot starve the rest of the queue.
func (m *Matcher) MatchSymbol(ctx context.Context, symbol string, lad *book.Ladder) {
	orders, err := m.store.FindPendingOrders(ctx, symbol)
	if err != nil {
		slog.Error("Failed to load pending orders", "symbol", symbol, "err", err)
		return
	}

	bestBid, hasBid := lad.BestBid()
	bestAsk, hasAsk := lad.BestAsk()

	for _, o := range orders {
		price, ok := matchPrice(o, bestBid, hasBid, bestAsk, hasAsk)
		if !ok {
			continue
		}
		if _, err := m.exec.ExecuteFill(ctx, o, price); err != nil {
			slog.Error("Execution failed, order stays pending",
				"order", o.ID, "symbol", symbol, "err", err)
		}
	}

	if err := m.refreshBestPrices(ctx, symbol); err != nil {
		slog.Error("Failed to refresh best-price cache", "symbol", symbol, "err", err)
	}

	if m.onPassComplete != nil {
		m.onPassComplete(ctx, symbol)
	}
}

// matchPrice decides whether an order can fill against the top of book and at
// what price. Market orders take the opposing top level; limit orders fill at
// the opposing top level only when it satisfies the limit. No partial fills.
func matchPrice(o *domain.Order, bestBid book.Level, hasBid bool, bestAsk book.Level, hasAsk bool) (decimal.Decimal, bool) {
	switch o.Side {
	case domain.SideBuy:
		if !hasAsk {
			return decimal.Decimal{}, false
		}
		if o.Kind == domain.KindLimit && bestAsk.Price.GreaterThan(*o.LimitPrice) {
			return decimal.Decimal{}, false
		}
		return bestAsk.Price, true

	case domain.SideSell:
		if !hasBid {
			return decimal.Decimal{}, false
		}
		if o.Kind == domain.KindLimit && bestBid.Price.LessThan(*o.LimitPrice) {
			return decimal.Decimal{}, false
		}
		return bestBid.Price, true
	}
	return decimal.Decimal{}, false
}
