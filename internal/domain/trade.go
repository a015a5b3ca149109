package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable audit record of one completed fill. Append-only.
type Trade struct {
	ID         string
	AccountID  string
	Symbol     string
	Side       Side
	Amount     decimal.Decimal
	FillPrice  decimal.Decimal
	Total      decimal.Decimal // Amount * FillPrice
	ExecutedAt time.Time
}
