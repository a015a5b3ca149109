package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UpsertBestPrices records the derived best local buy/sell order ids for a
// symbol. Nil ids mean no pending limit order exists on that side. The cache
// is informational only; matching never reads it.
func (s *Store) UpsertBestPrices(ctx context.Context, symbol string, bestBuyOrderID, bestSellOrderID *string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO best_prices(symbol, best_buy_order_id, best_sell_order_id, updated_at)
VALUES(?,?,?,?)
ON CONFLICT(symbol) DO UPDATE SET
	best_buy_order_id=excluded.best_buy_order_id,
	best_sell_order_id=excluded.best_sell_order_id,
	updated_at=excluded.updated_at`,
		symbol, nullable(bestBuyOrderID), nullable(bestSellOrderID), time.Now().UnixMicro())
	return err
}

// BestPrices reads the cached best-price order ids for a symbol.
// Both ids are nil when the symbol was never cached.
func (s *Store) BestPrices(ctx context.Context, symbol string) (bestBuyOrderID, bestSellOrderID *string, err error) {
	var buy, sell sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT best_buy_order_id, best_sell_order_id FROM best_prices WHERE symbol=?`, symbol).
		Scan(&buy, &sell)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if buy.Valid {
		bestBuyOrderID = &buy.String
	}
	if sell.Valid {
		bestSellOrderID = &sell.String
	}
	return bestBuyOrderID, bestSellOrderID, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
