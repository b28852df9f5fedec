package domain

import "github.com/cartwright-labs/purchaseflow/pkg/money"

// Domain event names for cart mutations.
const (
	EventItemAdded       = "cart.item_added"
	EventQuantityChanged = "cart.quantity_changed"
	EventProductRemoved  = "cart.product_removed"
	EventCheckedOut      = "cart.checked_out"
)

// Event is a domain event buffered on the cart aggregate. Events are only
// handed to the publisher after the surrounding unit of work has committed,
// so a consumer never reacts to a mutation that was later discarded.
type Event interface {
	EventName() string
}

// ItemAdded records a new product entering the cart, or additional quantity
// merged onto an existing line from another cart. Quantity is the delta.
type ItemAdded struct {
	CartID     string
	CustomerID string
	ProductID  string
	Quantity   int
}

func (ItemAdded) EventName() string { return EventItemAdded }

// QuantityChanged records a line item's quantity being set to a new value.
type QuantityChanged struct {
	CartID     string
	CustomerID string
	ProductID  string
	Quantity   int
}

func (QuantityChanged) EventName() string { return EventQuantityChanged }

// ProductRemoved records a line item leaving the cart.
type ProductRemoved struct {
	CartID     string
	CustomerID string
	ProductID  string
}

func (ProductRemoved) EventName() string { return EventProductRemoved }

// CheckedOut records the cart transitioning to checked-out. Total is the
// snapshot total at checkout time; ItemCount counts distinct line items.
type CheckedOut struct {
	CartID     string
	CustomerID string
	Total      money.Money
	ItemCount  int
}

func (CheckedOut) EventName() string { return EventCheckedOut }
