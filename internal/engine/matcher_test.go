package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/book"
	"papertrade/internal/domain"
)

func ladderWith(t *testing.T, bids, asks [][2]string) *book.Ladder {
	t.Helper()
	lad := book.NewLadder()
	var d book.Delta
	for _, b := range bids {
		d.BidChanges = append(d.BidChanges, book.Level{Price: dec(b[0]), Qty: dec(b[1])})
	}
	for _, a := range asks {
		d.AskChanges = append(d.AskChanges, book.Level{Price: dec(a[0]), Qty: dec(a[1])})
	}
	lad.ApplyDelta(d)
	return lad
}

func TestMatchPrice_Rules(t *testing.T) {
	limit := func(s string) *domain.Order {
		lp := dec(s)
		return &domain.Order{Kind: domain.KindLimit, LimitPrice: &lp}
	}

	bid, ask := book.Level{Price: dec("90")}, book.Level{Price: dec("100")}

	cases := []struct {
		name      string
		order     *domain.Order
		wantPrice string
		wantOK    bool
	}{
		{"buy market takes ask", &domain.Order{Side: domain.SideBuy, Kind: domain.KindMarket}, "100", true},
		{"sell market takes bid", &domain.Order{Side: domain.SideSell, Kind: domain.KindMarket}, "90", true},
		{"buy limit above ask fills at ask", withSide(limit("110"), domain.SideBuy), "100", true},
		{"buy limit at ask fills", withSide(limit("100"), domain.SideBuy), "100", true},
		{"buy limit below ask waits", withSide(limit("88"), domain.SideBuy), "", false},
		{"sell limit below bid fills at bid", withSide(limit("80"), domain.SideSell), "90", true},
		{"sell limit at bid fills", withSide(limit("90"), domain.SideSell), "90", true},
		{"sell limit above bid waits", withSide(limit("95"), domain.SideSell), "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			price, ok := matchPrice(tc.order, bid, true, ask, true)
			if ok != tc.wantOK {
				t.Fatalf("ok=%v, want %v", ok, tc.wantOK)
			}
			if ok && !price.Equal(dec(tc.wantPrice)) {
				t.Errorf("price=%s, want %s", price, tc.wantPrice)
			}
		})
	}
}

func withSide(o *domain.Order, side domain.Side) *domain.Order {
	o.Side = side
	return o
}

func TestMatchPrice_EmptySides(t *testing.T) {
	buy := &domain.Order{Side: domain.SideBuy, Kind: domain.KindMarket}
	sell := &domain.Order{Side: domain.SideSell, Kind: domain.KindMarket}

	if _, ok := matchPrice(buy, book.Level{}, false, book.Level{}, false); ok {
		t.Error("buy matched against an empty ask side")
	}
	if _, ok := matchPrice(sell, book.Level{}, false, book.Level{}, false); ok {
		t.Error("sell matched against an empty bid side")
	}
}

func TestMatchSymbol_FIFO(t *testing.T) {
	store := newTestStore(t)
	acct := createTestAccount(t, store, "500")

	base := time.Now().Add(-time.Minute)
	first := insertTestOrder(t, store, &domain.Order{
		AccountID: acct.ID, Symbol: "BTC", Side: domain.SideBuy,
		Kind: domain.KindMarket, Amount: dec("1"), CreatedAt: base,
	})
	second := insertTestOrder(t, store, &domain.Order{
		AccountID: acct.ID, Symbol: "BTC", Side: domain.SideBuy,
		Kind: domain.KindMarket, Amount: dec("1"), CreatedAt: base.Add(time.Second),
	})

	m := NewMatcher(store, NewExecutor(store), nil)
	m.MatchSymbol(context.Background(), "BTC", ladderWith(t, nil, [][2]string{{"500", "10"}}))

	// The older order drains the cash; the younger one cancels.
	got1, _ := store.GetOrder(context.Background(), first.ID)
	got2, _ := store.GetOrder(context.Background(), second.ID)
	if got1.Status != domain.StatusExecuted {
		t.Errorf("first order: expected EXECUTED, got %s", got1.Status)
	}
	if got2.Status != domain.StatusCancelled {
		t.Errorf("second order: expected CANCELLED, got %s", got2.Status)
	}
}

// faultyExec fails fills for one order id and delegates the rest, standing in
// for a store that errors mid-transaction.
type faultyExec struct {
	inner  *Executor
	failID string
}

func (f *faultyExec) ExecuteFill(ctx context.Context, o *domain.Order, price decimal.Decimal) (FillOutcome, error) {
	if o.ID == f.failID {
		return FillSkipped, errors.New("store offline")
	}
	return f.inner.ExecuteFill(ctx, o, price)
}

func TestMatchSymbol_FailedOrderDoesNotAbortPass(t *testing.T) {
	store := newTestStore(t)
	acct := createTestAccount(t, store, "1000")

	base := time.Now().Add(-time.Minute)
	failing := insertTestOrder(t, store, &domain.Order{
		AccountID: acct.ID, Symbol: "BTC", Side: domain.SideBuy,
		Kind: domain.KindMarket, Amount: dec("1"), CreatedAt: base,
	})
	healthy := insertTestOrder(t, store, &domain.Order{
		AccountID: acct.ID, Symbol: "BTC", Side: domain.SideBuy,
		Kind: domain.KindMarket, Amount: dec("1"), CreatedAt: base.Add(time.Second),
	})

	m := NewMatcher(store, &faultyExec{inner: NewExecutor(store), failID: failing.ID}, nil)
	m.MatchSymbol(context.Background(), "BTC", ladderWith(t, nil, [][2]string{{"500", "10"}}))

	// The later order in the same pass still fills.
	got, _ := store.GetOrder(context.Background(), healthy.ID)
	if got.Status != domain.StatusExecuted {
		t.Errorf("healthy order: expected EXECUTED, got %s", got.Status)
	}

	// The failed order stays PENDING and is retried on a later pass.
	got, _ = store.GetOrder(context.Background(), failing.ID)
	if got.Status != domain.StatusPending {
		t.Errorf("failing order: expected PENDING, got %s", got.Status)
	}
}

func TestMatchSymbol_LimitBuyWaitsForPrice(t *testing.T) {
	store := newTestStore(t)
	acct := createTestAccount(t, store, "1000")
	lp := dec("88")
	o := insertTestOrder(t, store, &domain.Order{
		AccountID: acct.ID, Symbol: "ETH", Side: domain.SideBuy,
		Kind: domain.KindLimit, Amount: dec("1"), LimitPrice: &lp,
	})

	m := NewMatcher(store, NewExecutor(store), nil)

	m.MatchSymbol(context.Background(), "ETH", ladderWith(t, nil, [][2]string{{"90", "5"}}))
	got, _ := store.GetOrder(context.Background(), o.ID)
	if got.Status != domain.StatusPending {
		t.Fatalf("order filled above its limit: %s", got.Status)
	}

	m.MatchSymbol(context.Background(), "ETH", ladderWith(t, nil, [][2]string{{"87.5", "5"}}))
	got, _ = store.GetOrder(context.Background(), o.ID)
	if got.Status != domain.StatusExecuted {
		t.Fatalf("expected EXECUTED at 87.5, got %s", got.Status)
	}

	trades, _ := store.TradesByAccount(context.Background(), acct.ID)
	if len(trades) != 1 || !trades[0].FillPrice.Equal(dec("87.5")) {
		t.Errorf("expected one fill at 87.5, got %+v", trades)
	}
}

func TestMatchSymbol_FiresPassCallback(t *testing.T) {
	store := newTestStore(t)

	var gotSymbol string
	m := NewMatcher(store, NewExecutor(store), func(ctx context.Context, symbol string) {
		gotSymbol = symbol
	})

	m.MatchSymbol(context.Background(), "BTC", book.NewLadder())
	if gotSymbol != "BTC" {
		t.Errorf("pass callback not fired, got %q", gotSymbol)
	}
}

func TestRefreshBestPrices(t *testing.T) {
	store := newTestStore(t)
	acct := createTestAccount(t, store, "10000")

	mk := func(side domain.Side, limit string) *domain.Order {
		lp := dec(limit)
		return insertTestOrder(t, store, &domain.Order{
			AccountID: acct.ID, Symbol: "BTC", Side: side,
			Kind: domain.KindLimit, Amount: dec("1"), LimitPrice: &lp,
		})
	}
	mk(domain.SideBuy, "90")
	highBuy := mk(domain.SideBuy, "95")
	lowSell := mk(domain.SideSell, "110")
	mk(domain.SideSell, "120")

	// Market orders carry no price and must never win.
	insertTestOrder(t, store, &domain.Order{
		AccountID: acct.ID, Symbol: "BTC", Side: domain.SideBuy,
		Kind: domain.KindMarket, Amount: dec("1"),
	})

	m := NewMatcher(store, NewExecutor(store), nil)
	if err := m.refreshBestPrices(context.Background(), "BTC"); err != nil {
		t.Fatalf("refreshBestPrices failed: %v", err)
	}

	buyID, sellID, err := store.BestPrices(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("BestPrices failed: %v", err)
	}
	if buyID == nil || *buyID != highBuy.ID {
		t.Errorf("expected best buy %s, got %v", highBuy.ID, buyID)
	}
	if sellID == nil || *sellID != lowSell.ID {
		t.Errorf("expected best sell %s, got %v", lowSell.ID, sellID)
	}
}
