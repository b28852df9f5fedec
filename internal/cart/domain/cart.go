package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cartwright-labs/purchaseflow/internal/pricing"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// Cart status constants.
const (
	StatusActive     = "active"
	StatusCheckedOut = "checked_out"
	StatusCompleted  = "completed"
	StatusAbandoned  = "abandoned"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single line item.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct products allowed in a cart.
	MaxItemsPerCart = 50
)

// Item is a single cart line. Identity within a cart is the product id:
// quantity for a product is never split across two lines. PriceAtAddition is
// the price snapshot taken when the product first entered the cart and is
// never overwritten by a later add.
type Item struct {
	ProductID       string      `json:"product_id"`
	Quantity        int         `json:"quantity"`
	PriceAtAddition money.Money `json:"price_at_addition"`
}

// Subtotal returns the line total based on the price snapshot.
func (i Item) Subtotal() money.Money {
	return i.PriceAtAddition.MulQty(i.Quantity)
}

// ShoppingCart is the aggregate root owning cart line items and their
// invariants: at most one line per product, strictly positive quantities,
// and mutation only while the cart is active.
type ShoppingCart struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customer_id"`
	Items          []Item    `json:"items"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	MarketingOptIn bool      `json:"marketing_opt_in"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	events []Event
}

// NewShoppingCart creates an empty active cart for the given customer.
func NewShoppingCart(customerID, currency string) *ShoppingCart {
	if currency == "" {
		currency = money.DefaultCurrency
	}
	now := time.Now().UTC()
	return &ShoppingCart{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Items:      []Item{},
		Currency:   currency,
		Status:     StatusActive,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsActive reports whether the cart accepts mutations.
func (c *ShoppingCart) IsActive() bool {
	return c.Status == StatusActive
}

// IsEmpty reports whether the cart holds no line items.
func (c *ShoppingCart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount returns the number of distinct products in the cart.
func (c *ShoppingCart) ItemCount() int {
	return len(c.Items)
}

// TotalQuantity returns the sum of all line quantities.
func (c *ShoppingCart) TotalQuantity() int {
	var total int
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// findItemIndex returns the index of the line holding the given product,
// or -1 if the product is not in the cart.
func (c *ShoppingCart) findItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Item returns the line for the given product, if present.
func (c *ShoppingCart) Item(productID string) (Item, bool) {
	if i := c.findItemIndex(productID); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

// AddItem puts quantity of a product into the cart at the given price. If the
// product is already present, quantities are combined and the existing price
// snapshot is kept; the new price is ignored. All invariant checks happen
// before any state is written.
func (c *ShoppingCart) AddItem(productID string, quantity int, price money.Money) error {
	if !c.IsActive() {
		return apperrors.InvalidState(fmt.Sprintf("cart %s is %s, only active carts can be modified", c.ID, c.Status))
	}
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if quantity <= 0 {
		return apperrors.InvalidInput("quantity must be greater than 0")
	}
	if price.IsNegative() {
		return apperrors.InvalidInput("price must not be negative")
	}
	if price.Currency != "" && price.Currency != c.Currency {
		return apperrors.InvalidInput(fmt.Sprintf("price currency %s does not match cart currency %s", price.Currency, c.Currency))
	}

	if i := c.findItemIndex(productID); i >= 0 {
		newQty := c.Items[i].Quantity + quantity
		if newQty > MaxQuantityPerItem {
			return apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
		}
		c.Items[i].Quantity = newQty
	} else {
		if quantity > MaxQuantityPerItem {
			return apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
		}
		if len(c.Items) >= MaxItemsPerCart {
			return apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}
		c.Items = append(c.Items, Item{
			ProductID:       productID,
			Quantity:        quantity,
			PriceAtAddition: price,
		})
	}

	c.touch()
	c.record(ItemAdded{
		CartID:     c.ID,
		CustomerID: c.CustomerID,
		ProductID:  productID,
		Quantity:   quantity,
	})
	return nil
}

// RemoveItem deletes the line for the given product.
func (c *ShoppingCart) RemoveItem(productID string) error {
	if !c.IsActive() {
		return apperrors.InvalidState(fmt.Sprintf("cart %s is %s, only active carts can be modified", c.ID, c.Status))
	}

	i := c.findItemIndex(productID)
	if i < 0 {
		return apperrors.NotFound("cart item", productID)
	}

	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.touch()
	c.record(ProductRemoved{
		CartID:     c.ID,
		CustomerID: c.CustomerID,
		ProductID:  productID,
	})
	return nil
}

// ChangeQuantity sets a line's quantity to a new value. A quantity of 0
// removes the line.
func (c *ShoppingCart) ChangeQuantity(productID string, quantity int) error {
	if !c.IsActive() {
		return apperrors.InvalidState(fmt.Sprintf("cart %s is %s, only active carts can be modified", c.ID, c.Status))
	}
	if quantity < 0 {
		return apperrors.InvalidInput("quantity must not be negative")
	}
	if quantity > MaxQuantityPerItem {
		return apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	if quantity == 0 {
		return c.RemoveItem(productID)
	}

	i := c.findItemIndex(productID)
	if i < 0 {
		return apperrors.NotFound("cart item", productID)
	}

	c.Items[i].Quantity = quantity
	c.touch()
	c.record(QuantityChanged{
		CartID:     c.ID,
		CustomerID: c.CustomerID,
		ProductID:  productID,
		Quantity:   quantity,
	})
	return nil
}

// Checkout transitions the cart to checked-out and records a checked-out
// event carrying the snapshot total and distinct item count.
func (c *ShoppingCart) Checkout() error {
	if !c.IsActive() {
		return apperrors.InvalidState(fmt.Sprintf("cart %s is %s, only active carts can be checked out", c.ID, c.Status))
	}
	if c.IsEmpty() {
		return apperrors.InvalidState("cannot check out an empty cart")
	}

	c.Status = StatusCheckedOut
	c.touch()
	c.record(CheckedOut{
		CartID:     c.ID,
		CustomerID: c.CustomerID,
		Total:      c.Total(),
		ItemCount:  c.ItemCount(),
	})
	return nil
}

// Merge folds the source cart's items into this cart. For products already
// present, quantities are combined and this cart's price snapshot is kept;
// products not yet present are copied with the source's snapshot. The source
// is never mutated. A source whose snapshots carry a different currency, or
// whose lines would break the quantity or item limits, is rejected before
// any line is touched. Returns the number of distinct products touched; one
// domain event is recorded per touched product in the source's item order.
func (c *ShoppingCart) Merge(source *ShoppingCart) (int, error) {
	if !c.IsActive() {
		return 0, apperrors.InvalidState(fmt.Sprintf("cart %s is %s, only active carts can be merged into", c.ID, c.Status))
	}
	if source == nil || source.IsEmpty() {
		return 0, nil
	}

	distinct := len(c.Items)
	for _, item := range source.Items {
		if item.PriceAtAddition.Currency != "" && item.PriceAtAddition.Currency != c.Currency {
			return 0, apperrors.InvalidInput(fmt.Sprintf("source cart uses currency %s, this cart uses %s", item.PriceAtAddition.Currency, c.Currency))
		}
		if i := c.findItemIndex(item.ProductID); i >= 0 {
			if c.Items[i].Quantity+item.Quantity > MaxQuantityPerItem {
				return 0, apperrors.InvalidInput(fmt.Sprintf("combined quantity for %s must not exceed %d", item.ProductID, MaxQuantityPerItem))
			}
		} else {
			if item.Quantity > MaxQuantityPerItem {
				return 0, apperrors.InvalidInput(fmt.Sprintf("quantity for %s must not exceed %d", item.ProductID, MaxQuantityPerItem))
			}
			distinct++
		}
	}
	if distinct > MaxItemsPerCart {
		return 0, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
	}

	merged := 0
	for _, item := range source.Items {
		if i := c.findItemIndex(item.ProductID); i >= 0 {
			c.Items[i].Quantity += item.Quantity
			c.record(QuantityChanged{
				CartID:     c.ID,
				CustomerID: c.CustomerID,
				ProductID:  item.ProductID,
				Quantity:   c.Items[i].Quantity,
			})
		} else {
			c.Items = append(c.Items, Item{
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				PriceAtAddition: item.PriceAtAddition,
			})
			c.record(ItemAdded{
				CartID:     c.ID,
				CustomerID: c.CustomerID,
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
			})
		}
		merged++
	}

	c.touch()
	return merged, nil
}

// Total sums the line subtotals using the stored price snapshots. Call sites
// that need current prices use CurrentTotal instead; both exist because some
// paths intentionally want the point-in-time historical total.
func (c *ShoppingCart) Total() money.Money {
	total := money.Zero(c.Currency)
	for _, item := range c.Items {
		// Snapshots share the cart currency, so this cannot fail.
		total, _ = total.Add(item.Subtotal())
	}
	return total
}

// CurrentTotal sums resolver prices times quantities over all lines, ignoring
// the stored snapshots.
func (c *ShoppingCart) CurrentTotal(ctx context.Context, resolver pricing.Resolver) (money.Money, error) {
	return pricing.CurrentTotal(ctx, resolver, c.Currency, c.LineItems())
}

// ValidateForCheckout checks every line against current availability and
// stock via the resolver. The cart is not mutated.
func (c *ShoppingCart) ValidateForCheckout(ctx context.Context, resolver pricing.Resolver) (pricing.ValidationResult, error) {
	return pricing.Validate(ctx, resolver, c.Currency, c.LineItems())
}

// LineItems returns the cart's lines in the shape the resolver protocol uses.
func (c *ShoppingCart) LineItems() []pricing.LineItem {
	items := make([]pricing.LineItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = pricing.LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return items
}

// CollectEvents drains and returns the buffered domain events. The caller
// publishes them only after the persistence write has succeeded.
func (c *ShoppingCart) CollectEvents() []Event {
	events := c.events
	c.events = nil
	return events
}

func (c *ShoppingCart) record(event Event) {
	c.events = append(c.events, event)
}

func (c *ShoppingCart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
