package domain

import "github.com/shopspring/decimal"

// Account is one user's simulated brokerage.
// Mutated exclusively inside execution transactions.
type Account struct {
	ID             string
	CashBalance    decimal.Decimal // never negative after a committed transaction
	RealizedProfit decimal.Decimal // cumulative, signed
}
