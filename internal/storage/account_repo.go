package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"papertrade/internal/domain"
)

// CreateAccount persists a new account. Part of the submission boundary's
// contract; the engine itself never creates accounts.
func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts(id, cash_balance, realized_profit) VALUES(?,?,?)`,
		a.ID, a.CashBalance.String(), a.RealizedProfit.String())
	return err
}

// AccountTx re-reads an account inside an execution transaction.
func (s *Store) AccountTx(ctx context.Context, tx *sql.Tx, id string) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, cash_balance, realized_profit FROM accounts WHERE id=?`, id)
	return scanAccount(row)
}

// UpdateAccountTx writes back an account's balances inside a transaction.
func (s *Store) UpdateAccountTx(ctx context.Context, tx *sql.Tx, a *domain.Account) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE accounts SET cash_balance=?, realized_profit=? WHERE id=?`,
		a.CashBalance.String(), a.RealizedProfit.String(), a.ID)
	return err
}

// GetAccount loads one account outside a transaction.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, cash_balance, realized_profit FROM accounts WHERE id=?`, id)
	return scanAccount(row)
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a              domain.Account
		cash, realized string
	)
	if err := row.Scan(&a.ID, &cash, &realized); err != nil {
		return nil, err
	}

	var err error
	if a.CashBalance, err = parseDecimal(cash); err != nil {
		return nil, err
	}
	if a.RealizedProfit, err = parseDecimal(realized); err != nil {
		return nil, err
	}
	return &a, nil
}
