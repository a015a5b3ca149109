package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"papertrade/internal/domain"
)

// InsertOrder persists a new order. The order-submission boundary calls this
// before handing the symbol to the worker manager. A missing id, status or
// creation time is filled in.
func (s *Store) InsertOrder(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	var limitPrice sql.NullString
	if o.LimitPrice != nil {
		limitPrice = sql.NullString{String: o.LimitPrice.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders(id, account_id, symbol, side, kind, amount, limit_price, status, created_at)
VALUES(?,?,?,?,?,?,?,?,?)`,
		o.ID, o.AccountID, o.Symbol, o.Side, o.Kind,
		o.Amount.String(), limitPrice, o.Status, o.CreatedAt.UnixMicro(),
	)
	return err
}

// FindPendingOrders returns all PENDING orders for symbol, oldest first.
// This ordering is the matching algorithm's FIFO priority.
func (s *Store) FindPendingOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, account_id, symbol, side, kind, amount, limit_price, status, created_at, executed_at
FROM orders
WHERE symbol=? AND status=?
ORDER BY created_at ASC`, symbol, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// FindDistinctSymbolsWithPendingOrders returns every symbol that still has
// at least one PENDING order. Drives worker reconciliation.
func (s *Store) FindDistinctSymbolsWithPendingOrders(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM orders WHERE status=? ORDER BY symbol`, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// CountPendingOrders returns the number of PENDING orders for symbol.
func (s *Store) CountPendingOrders(ctx context.Context, symbol string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE symbol=? AND status=?`, symbol, domain.StatusPending).Scan(&n)
	return n, err
}

// GetOrder loads one order by id.
func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, account_id, symbol, side, kind, amount, limit_price, status, created_at, executed_at
FROM orders WHERE id=?`, id)
	return scanOrder(row)
}

// OrderStatusTx re-reads an order's status inside a transaction. This is the
// guard against a concurrent matching pass having already consumed the order.
func (s *Store) OrderStatusTx(ctx context.Context, tx *sql.Tx, id string) (domain.Status, error) {
	var status domain.Status
	err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id=?`, id).Scan(&status)
	return status, err
}

// MarkOrderExecutedTx transitions a PENDING order to its EXECUTED terminal state.
func (s *Store) MarkOrderExecutedTx(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status=?, executed_at=? WHERE id=? AND status=?`,
		domain.StatusExecuted, at.UnixMicro(), id, domain.StatusPending)
	return err
}

// MarkOrderCancelledTx transitions a PENDING order to its CANCELLED terminal state.
func (s *Store) MarkOrderCancelledTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status=? WHERE id=? AND status=?`,
		domain.StatusCancelled, id, domain.StatusPending)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o          domain.Order
		amount     string
		limitPrice sql.NullString
		createdAt  int64
		executedAt sql.NullInt64
	)
	if err := row.Scan(&o.ID, &o.AccountID, &o.Symbol, &o.Side, &o.Kind,
		&amount, &limitPrice, &o.Status, &createdAt, &executedAt); err != nil {
		return nil, err
	}

	var err error
	if o.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if limitPrice.Valid {
		lp, err := parseDecimal(limitPrice.String)
		if err != nil {
			return nil, err
		}
		o.LimitPrice = &lp
	}
	o.CreatedAt = time.UnixMicro(createdAt)
	if executedAt.Valid {
		t := time.UnixMicro(executedAt.Int64)
		o.ExecutedAt = &t
	}
	return &o, nil
}
