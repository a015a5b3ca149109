package domain

import "github.com/shopspring/decimal"

// Holding is one account's position in one symbol.
// AvgEntryPrice is the quantity-weighted mean of all BUY fills since the
// position was last fully closed; SELL fills never change it.
// A holding with AmountOwned == 0 must not persist.
type Holding struct {
	AccountID     string
	Symbol        string
	AmountOwned   decimal.Decimal
	AvgEntryPrice decimal.Decimal
}

// ApplyBuy folds a buy fill into the position, recomputing the
// quantity-weighted average entry price.
func (h *Holding) ApplyBuy(amount, price decimal.Decimal) {
	oldCost := h.AmountOwned.Mul(h.AvgEntryPrice)
	newAmount := h.AmountOwned.Add(amount)
	h.AvgEntryPrice = oldCost.Add(amount.Mul(price)).Div(newAmount)
	h.AmountOwned = newAmount
}

// RealizedProfit returns the profit realized by selling amount units at price.
func (h *Holding) RealizedProfit(amount, price decimal.Decimal) decimal.Decimal {
	return price.Sub(h.AvgEntryPrice).Mul(amount)
}
