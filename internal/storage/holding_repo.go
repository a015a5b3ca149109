package storage

import (
	"context"
	"database/sql"
	"errors"

	"papertrade/internal/domain"
)

// HoldingTx reads the holding for (accountID, symbol) inside a transaction.
// Returns (nil, nil) when no position exists.
func (s *Store) HoldingTx(ctx context.Context, tx *sql.Tx, accountID, symbol string) (*domain.Holding, error) {
	row := tx.QueryRowContext(ctx, `
SELECT account_id, symbol, amount_owned, avg_entry_price
FROM holdings WHERE account_id=? AND symbol=?`, accountID, symbol)
	return scanHolding(row)
}

// UpsertHoldingTx writes a holding row inside a transaction.
func (s *Store) UpsertHoldingTx(ctx context.Context, tx *sql.Tx, h *domain.Holding) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO holdings(account_id, symbol, amount_owned, avg_entry_price)
VALUES(?,?,?,?)
ON CONFLICT(account_id, symbol) DO UPDATE SET
	amount_owned=excluded.amount_owned,
	avg_entry_price=excluded.avg_entry_price`,
		h.AccountID, h.Symbol, h.AmountOwned.String(), h.AvgEntryPrice.String())
	return err
}

// DeleteHoldingTx removes a holding row entirely. Positions that reach zero
// must not persist as zero-quantity rows.
func (s *Store) DeleteHoldingTx(ctx context.Context, tx *sql.Tx, accountID, symbol string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM holdings WHERE account_id=? AND symbol=?`, accountID, symbol)
	return err
}

// GetHolding reads a holding outside a transaction. Returns (nil, nil) when
// no position exists.
func (s *Store) GetHolding(ctx context.Context, accountID, symbol string) (*domain.Holding, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT account_id, symbol, amount_owned, avg_entry_price
FROM holdings WHERE account_id=? AND symbol=?`, accountID, symbol)
	return scanHolding(row)
}

func scanHolding(row rowScanner) (*domain.Holding, error) {
	var (
		h           domain.Holding
		amount, avg string
	)
	if err := row.Scan(&h.AccountID, &h.Symbol, &amount, &avg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var err error
	if h.AmountOwned, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if h.AvgEntryPrice, err = parseDecimal(avg); err != nil {
		return nil, err
	}
	return &h, nil
}
