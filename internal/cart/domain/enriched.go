package domain

import (
	"context"

	"github.com/cartwright-labs/purchaseflow/internal/pricing"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// EnrichedCartItem pairs a persisted cart line with freshly resolved price
// and availability, so callers can show "price when added" next to "price
// now".
type EnrichedCartItem struct {
	ProductID       string      `json:"product_id"`
	Quantity        int         `json:"quantity"`
	PriceAtAddition money.Money `json:"price_at_addition"`
	CurrentPrice    money.Money `json:"current_price"`
	Available       bool        `json:"available"`
	AvailableStock  int         `json:"available_stock"`
}

// PriceChanged reports whether the current price differs from the snapshot.
func (i EnrichedCartItem) PriceChanged() bool {
	return !i.PriceAtAddition.Equal(i.CurrentPrice)
}

// EnrichedCart is the cart read model carrying both the snapshot total and
// the total at current prices. It is never persisted; it is rebuilt from the
// resolver on every read.
type EnrichedCart struct {
	CartID        string             `json:"cart_id"`
	CustomerID    string             `json:"customer_id"`
	Status        string             `json:"status"`
	Items         []EnrichedCartItem `json:"items"`
	SnapshotTotal money.Money        `json:"snapshot_total"`
	CurrentTotal  money.Money        `json:"current_total"`
}

// Enrich builds the read model for a cart by resolving current price and
// availability for every line in one batch.
func Enrich(ctx context.Context, cart *ShoppingCart, resolver pricing.Resolver) (*EnrichedCart, error) {
	ids := make([]string, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}

	resolutions, err := resolver.ResolveMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]EnrichedCartItem, len(cart.Items))
	currentTotal := money.Zero(cart.Currency)
	for i, item := range cart.Items {
		res, ok := resolutions[item.ProductID]
		if !ok {
			res = pricing.Unresolvable(item.ProductID, cart.Currency)
		}

		items[i] = EnrichedCartItem{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtAddition: item.PriceAtAddition,
			CurrentPrice:    res.Price,
			Available:       res.Available,
			AvailableStock:  res.Stock,
		}

		currentTotal, err = currentTotal.Add(res.Price.MulQty(item.Quantity))
		if err != nil {
			return nil, err
		}
	}

	return &EnrichedCart{
		CartID:        cart.ID,
		CustomerID:    cart.CustomerID,
		Status:        cart.Status,
		Items:         items,
		SnapshotTotal: cart.Total(),
		CurrentTotal:  currentTotal,
	}, nil
}
