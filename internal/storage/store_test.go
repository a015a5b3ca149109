package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createTestAccount(t *testing.T, store *Store, cash string) *domain.Account {
	t.Helper()
	a := &domain.Account{CashBalance: dec(cash), RealizedProfit: dec("0")}
	if err := store.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	return a
}

func TestStore_PendingOrdersFIFO(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	acct := createTestAccount(t, store, "1000")

	base := time.Now().Add(-time.Minute)
	for i, id := range []string{"o-oldest", "o-middle", "o-newest"} {
		o := &domain.Order{
			ID:        id,
			AccountID: acct.ID,
			Symbol:    "BTC",
			Side:      domain.SideBuy,
			Kind:      domain.KindMarket,
			Amount:    dec("1"),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.InsertOrder(ctx, o); err != nil {
			t.Fatalf("failed to insert order: %v", err)
		}
	}

	orders, err := store.FindPendingOrders(ctx, "BTC")
	if err != nil {
		t.Fatalf("FindPendingOrders failed: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}
	if orders[0].ID != "o-oldest" || orders[2].ID != "o-newest" {
		t.Errorf("orders not in createdAt order: %s, %s, %s",
			orders[0].ID, orders[1].ID, orders[2].ID)
	}
}

func TestStore_DistinctSymbolsAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	acct := createTestAccount(t, store, "1000")

	for _, sym := range []string{"BTC", "BTC", "ETH"} {
		o := &domain.Order{
			AccountID: acct.ID, Symbol: sym,
			Side: domain.SideSell, Kind: domain.KindMarket, Amount: dec("1"),
		}
		if err := store.InsertOrder(ctx, o); err != nil {
			t.Fatalf("failed to insert order: %v", err)
		}
	}

	symbols, err := store.FindDistinctSymbolsWithPendingOrders(ctx)
	if err != nil {
		t.Fatalf("FindDistinctSymbols failed: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %v", symbols)
	}

	n, err := store.CountPendingOrders(ctx, "BTC")
	if err != nil {
		t.Fatalf("CountPendingOrders failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pending BTC orders, got %d", n)
	}

	// Executed orders no longer count.
	orders, _ := store.FindPendingOrders(ctx, "BTC")
	err = store.RunTransaction(ctx, func(tx *sql.Tx) error {
		return store.MarkOrderExecutedTx(ctx, tx, orders[0].ID, time.Now())
	})
	if err != nil {
		t.Fatalf("failed to execute order: %v", err)
	}
	if n, _ = store.CountPendingOrders(ctx, "BTC"); n != 1 {
		t.Errorf("expected 1 pending BTC order after execution, got %d", n)
	}
}

func TestStore_OrderRoundtripWithLimitPrice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	acct := createTestAccount(t, store, "1000")

	lp := dec("99.5")
	o := &domain.Order{
		AccountID:  acct.ID,
		Symbol:     "ETH",
		Side:       domain.SideBuy,
		Kind:       domain.KindLimit,
		Amount:     dec("0.25"),
		LimitPrice: &lp,
	}
	if err := store.InsertOrder(ctx, o); err != nil {
		t.Fatalf("failed to insert order: %v", err)
	}

	got, err := store.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if got.LimitPrice == nil || !got.LimitPrice.Equal(lp) {
		t.Errorf("limit price mismatch: %v", got.LimitPrice)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("expected PENDING, got %s", got.Status)
	}
	if got.ExecutedAt != nil {
		t.Error("executedAt must be unset for pending orders")
	}
}

func TestStore_TerminalTransitionsGuardPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	acct := createTestAccount(t, store, "1000")

	o := &domain.Order{
		AccountID: acct.ID, Symbol: "BTC",
		Side: domain.SideBuy, Kind: domain.KindMarket, Amount: dec("1"),
	}
	if err := store.InsertOrder(ctx, o); err != nil {
		t.Fatalf("failed to insert order: %v", err)
	}

	err := store.RunTransaction(ctx, func(tx *sql.Tx) error {
		return store.MarkOrderCancelledTx(ctx, tx, o.ID)
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// A cancelled order never becomes executed.
	err = store.RunTransaction(ctx, func(tx *sql.Tx) error {
		return store.MarkOrderExecutedTx(ctx, tx, o.ID, time.Now())
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := store.GetOrder(ctx, o.ID)
	if got.Status != domain.StatusCancelled {
		t.Errorf("expected CANCELLED to stick, got %s", got.Status)
	}
}

func TestStore_RunTransactionRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	acct := createTestAccount(t, store, "500")

	boom := errors.New("boom")
	err := store.RunTransaction(ctx, func(tx *sql.Tx) error {
		a, err := store.AccountTx(ctx, tx, acct.ID)
		if err != nil {
			return err
		}
		a.CashBalance = dec("0")
		if err := store.UpdateAccountTx(ctx, tx, a); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := store.GetAccount(ctx, acct.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !got.CashBalance.Equal(dec("500")) {
		t.Errorf("rollback lost: cash is %s", got.CashBalance)
	}
}

func TestStore_HoldingLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	acct := createTestAccount(t, store, "1000")

	err := store.RunTransaction(ctx, func(tx *sql.Tx) error {
		h, err := store.HoldingTx(ctx, tx, acct.ID, "BTC")
		if err != nil {
			return err
		}
		if h != nil {
			t.Error("expected no holding before first buy")
		}
		return store.UpsertHoldingTx(ctx, tx, &domain.Holding{
			AccountID: acct.ID, Symbol: "BTC",
			AmountOwned: dec("2"), AvgEntryPrice: dec("100"),
		})
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	h, err := store.GetHolding(ctx, acct.ID, "BTC")
	if err != nil {
		t.Fatalf("GetHolding failed: %v", err)
	}
	if h == nil || !h.AmountOwned.Equal(dec("2")) {
		t.Fatalf("holding mismatch: %+v", h)
	}

	err = store.RunTransaction(ctx, func(tx *sql.Tx) error {
		return store.DeleteHoldingTx(ctx, tx, acct.ID, "BTC")
	})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if h, _ = store.GetHolding(ctx, acct.ID, "BTC"); h != nil {
		t.Error("expected holding row to be gone")
	}
}

func TestStore_BestPricesUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	buy, sell := "order-buy", "order-sell"
	if err := store.UpsertBestPrices(ctx, "BTC", &buy, &sell); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	gotBuy, gotSell, err := store.BestPrices(ctx, "BTC")
	if err != nil {
		t.Fatalf("BestPrices failed: %v", err)
	}
	if gotBuy == nil || *gotBuy != buy || gotSell == nil || *gotSell != sell {
		t.Errorf("best prices mismatch: %v / %v", gotBuy, gotSell)
	}

	// Clearing one side stores null, not a stale id.
	if err := store.UpsertBestPrices(ctx, "BTC", nil, &sell); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	gotBuy, gotSell, _ = store.BestPrices(ctx, "BTC")
	if gotBuy != nil {
		t.Errorf("expected nil buy side, got %v", *gotBuy)
	}
	if gotSell == nil {
		t.Error("sell side dropped unexpectedly")
	}

	// Unknown symbols report no ids and no error.
	gotBuy, gotSell, err = store.BestPrices(ctx, "DOGE")
	if err != nil || gotBuy != nil || gotSell != nil {
		t.Errorf("expected empty result for unknown symbol, got %v/%v err=%v", gotBuy, gotSell, err)
	}
}
