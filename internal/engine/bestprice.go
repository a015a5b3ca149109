package engine

import (
	"context"

	"papertrade/internal/domain"
)

// refreshBestPrices rederives the best local limit-order ids for a symbol
// from its remaining pending orders and upserts them into the cache table.
// The best buy is the highest-limit pending buy, the best sell the
// lowest-limit pending sell. Market orders carry no price and never qualify.
func (m *Matcher) refreshBestPrices(ctx context.Context, symbol string) error {
	orders, err := m.store.FindPendingOrders(ctx, symbol)
	if err != nil {
		return err
	}

	var bestBuy, bestSell *domain.Order
	for _, o := range orders {
		if o.Kind != domain.KindLimit || o.LimitPrice == nil {
			continue
		}
		switch o.Side {
		case domain.SideBuy:
			if bestBuy == nil || o.LimitPrice.GreaterThan(*bestBuy.LimitPrice) {
				bestBuy = o
			}
		case domain.SideSell:
			if bestSell == nil || o.LimitPrice.LessThan(*bestSell.LimitPrice) {
				bestSell = o
			}
		}
	}

	var buyID, sellID *string
	if bestBuy != nil {
		buyID = &bestBuy.ID
	}
	if bestSell != nil {
		sellID = &bestSell.ID
	}
	return m.store.UpsertBestPrices(ctx, symbol, buyID, sellID)
}
