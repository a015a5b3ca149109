package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Kind distinguishes market orders from limit orders.
type Kind string

const (
	KindMarket Kind = "MARKET"
	KindLimit  Kind = "LIMIT"
)

// Status is the lifecycle state of an order.
// PENDING is the only non-terminal state; EXECUTED and CANCELLED are final.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuted  Status = "EXECUTED"
	StatusCancelled Status = "CANCELLED"
)

// Order represents a user's trade intent against the paper portfolio.
// All monetary values are decimal.Decimal, never float.
type Order struct {
	ID         string
	AccountID  string
	Symbol     string
	Side       Side
	Kind       Kind
	Amount     decimal.Decimal
	LimitPrice *decimal.Decimal // set iff Kind == KindLimit
	Status     Status
	CreatedAt  time.Time
	ExecutedAt *time.Time // set only on EXECUTED
}

// IsPending checks if the order is still eligible for matching.
func (o *Order) IsPending() bool {
	return o.Status == StatusPending
}
