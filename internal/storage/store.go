// Package storage implements the persistent store behind the engine:
// accounts, orders, holdings, trade history and the derived best-price
// cache, all in a single SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	_ "github.com/glebarez/go-sqlite"
)

// Store wraps the SQLite database. All engine mutations go through
// RunTransaction; read helpers outside a transaction are non-locking.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath with WAL mode enabled
// and ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Concurrent symbol workers share this one connection pool; WAL plus a
	// busy timeout keeps writers from failing under contention.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id              TEXT PRIMARY KEY,
	cash_balance    TEXT NOT NULL,
	realized_profit TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS orders (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	amount      TEXT NOT NULL,
	limit_price TEXT,
	status      TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	executed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_orders_pending ON orders(symbol, status, created_at);

CREATE TABLE IF NOT EXISTS holdings (
	account_id      TEXT NOT NULL REFERENCES accounts(id),
	symbol          TEXT NOT NULL,
	amount_owned    TEXT NOT NULL,
	avg_entry_price TEXT NOT NULL,
	PRIMARY KEY (account_id, symbol)
);

CREATE TABLE IF NOT EXISTS trades (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	amount      TEXT NOT NULL,
	fill_price  TEXT NOT NULL,
	total       TEXT NOT NULL,
	executed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS best_prices (
	symbol             TEXT PRIMARY KEY,
	best_buy_order_id  TEXT,
	best_sell_order_id TEXT,
	updated_at         INTEGER NOT NULL
);
`

// RunTransaction runs fn inside one atomic read-modify-write transaction.
// Any error from fn rolls back every write.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("corrupt decimal %q: %w", s, err)
	}
	return d, nil
}
