package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"papertrade/internal/domain"
)

// InsertTradeTx appends one trade-history row inside an execution transaction.
func (s *Store) InsertTradeTx(ctx context.Context, tx *sql.Tx, t *domain.Trade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO trades(id, account_id, symbol, side, amount, fill_price, total, executed_at)
VALUES(?,?,?,?,?,?,?,?)`,
		t.ID, t.AccountID, t.Symbol, t.Side,
		t.Amount.String(), t.FillPrice.String(), t.Total.String(), t.ExecutedAt.UnixMicro())
	return err
}

// TradesByAccount returns an account's trade history, newest first.
func (s *Store) TradesByAccount(ctx context.Context, accountID string) ([]*domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, account_id, symbol, side, amount, fill_price, total, executed_at
FROM trades WHERE account_id=? ORDER BY executed_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func scanTrade(row rowScanner) (*domain.Trade, error) {
	var (
		t                    domain.Trade
		amount, price, total string
		executedAt           int64
	)
	if err := row.Scan(&t.ID, &t.AccountID, &t.Symbol, &t.Side,
		&amount, &price, &total, &executedAt); err != nil {
		return nil, err
	}

	var err error
	if t.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if t.FillPrice, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if t.Total, err = parseDecimal(total); err != nil {
		return nil, err
	}
	t.ExecutedAt = time.UnixMicro(executedAt)
	return &t, nil
}
