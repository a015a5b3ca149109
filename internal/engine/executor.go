// Package engine contains the order matching and execution core: the
// per-symbol workers, the worker manager, the matching algorithm and the
// atomic execution transaction.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/storage"
)

// FillOutcome reports how an execution attempt resolved.
type FillOutcome int

const (
	// FillExecuted means the order filled and is now EXECUTED.
	FillExecuted FillOutcome = iota
	// FillCancelled means a business rule (insufficient cash or coins)
	// cancelled the order. This is a normal outcome, not a system error.
	FillCancelled
	// FillSkipped means the order was no longer PENDING when re-checked;
	// a concurrent pass already consumed it.
	FillSkipped
)

const (
	cancelReasonInsufficientCash  = "insufficient cash"
	cancelReasonInsufficientCoins = "insufficient coins"
)

// Executor applies fills atomically against the persistent store.
type Executor struct {
	store *storage.Store
	now   func() time.Time
}

// NewExecutor creates an executor backed by store.
func NewExecutor(store *storage.Store) *Executor {
	return &Executor{store: store, now: time.Now}
}

// ExecuteFill runs one execution transaction: debit/credit cash, update the
// weighted-average-cost holding, append the trade-history row and move the
// order to its terminal state. Every write commits or rolls back together;
// on error the order is observed afterward as still PENDING.
func (e *Executor) ExecuteFill(ctx context.Context, o *domain.Order, fillPrice decimal.Decimal) (FillOutcome, error) {
	outcome := FillSkipped
	reason := ""

	err := e.store.RunTransaction(ctx, func(tx *sql.Tx) error {
		// Guard against a concurrent pass having consumed the order.
		status, err := e.store.OrderStatusTx(ctx, tx, o.ID)
		if err != nil {
			return fmt.Errorf("re-check order %s: %w", o.ID, err)
		}
		if status != domain.StatusPending {
			outcome = FillSkipped
			return nil
		}

		acct, err := e.store.AccountTx(ctx, tx, o.AccountID)
		if err != nil {
			return fmt.Errorf("load account %s: %w", o.AccountID, err)
		}

		total := o.Amount.Mul(fillPrice)

		switch o.Side {
		case domain.SideBuy:
			if acct.CashBalance.LessThan(total) {
				if err := e.store.MarkOrderCancelledTx(ctx, tx, o.ID); err != nil {
					return err
				}
				outcome, reason = FillCancelled, cancelReasonInsufficientCash
				return nil
			}
			acct.CashBalance = acct.CashBalance.Sub(total)
			if err := e.applyBuyTx(ctx, tx, o, fillPrice); err != nil {
				return err
			}

		case domain.SideSell:
			holding, err := e.store.HoldingTx(ctx, tx, o.AccountID, o.Symbol)
			if err != nil {
				return fmt.Errorf("load holding: %w", err)
			}
			if holding == nil || holding.AmountOwned.LessThan(o.Amount) {
				if err := e.store.MarkOrderCancelledTx(ctx, tx, o.ID); err != nil {
					return err
				}
				outcome, reason = FillCancelled, cancelReasonInsufficientCoins
				return nil
			}

			acct.CashBalance = acct.CashBalance.Add(total)
			acct.RealizedProfit = acct.RealizedProfit.Add(holding.RealizedProfit(o.Amount, fillPrice))

			remaining := holding.AmountOwned.Sub(o.Amount)
			if remaining.IsPositive() {
				holding.AmountOwned = remaining
				if err := e.store.UpsertHoldingTx(ctx, tx, holding); err != nil {
					return err
				}
			} else {
				// Fully closed: no zero-quantity rows persist.
				if err := e.store.DeleteHoldingTx(ctx, tx, o.AccountID, o.Symbol); err != nil {
					return err
				}
			}

		default:
			return fmt.Errorf("unknown order side %q", o.Side)
		}

		if err := e.store.UpdateAccountTx(ctx, tx, acct); err != nil {
			return err
		}

		now := e.now()
		trade := &domain.Trade{
			AccountID:  o.AccountID,
			Symbol:     o.Symbol,
			Side:       o.Side,
			Amount:     o.Amount,
			FillPrice:  fillPrice,
			Total:      total,
			ExecutedAt: now,
		}
		if err := e.store.InsertTradeTx(ctx, tx, trade); err != nil {
			return err
		}
		if err := e.store.MarkOrderExecutedTx(ctx, tx, o.ID, now); err != nil {
			return err
		}

		outcome = FillExecuted
		return nil
	})
	if err != nil {
		return FillSkipped, err
	}

	switch outcome {
	case FillExecuted:
		slog.Info("Order filled",
			"order", o.ID, "symbol", o.Symbol, "side", o.Side,
			"amount", o.Amount.String(), "price", fillPrice.String())
	case FillCancelled:
		slog.Warn("Order cancelled",
			"order", o.ID, "symbol", o.Symbol, "side", o.Side, "reason", reason)
	}
	return outcome, nil
}

// applyBuyTx creates or grows the holding for a buy fill.
func (e *Executor) applyBuyTx(ctx context.Context, tx *sql.Tx, o *domain.Order, fillPrice decimal.Decimal) error {
	holding, err := e.store.HoldingTx(ctx, tx, o.AccountID, o.Symbol)
	if err != nil {
		return fmt.Errorf("load holding: %w", err)
	}
	if holding == nil {
		holding = &domain.Holding{
			AccountID:     o.AccountID,
			Symbol:        o.Symbol,
			AmountOwned:   o.Amount,
			AvgEntryPrice: fillPrice,
		}
	} else {
		holding.ApplyBuy(o.Amount, fillPrice)
	}
	return e.store.UpsertHoldingTx(ctx, tx, holding)
}
