package domain

// Event names for checkout domain events.
const (
	EventCheckoutStarted   = "checkout.started"
	EventCheckoutConfirmed = "checkout.confirmed"
)

// Event is a domain event buffered on the checkout session. Events are only
// handed to the publisher after the session's persistence write succeeds.
type Event interface {
	EventName() string
}

// Started records a new checkout session being opened from a cart snapshot.
type Started struct {
	SessionID  string
	CartID     string
	CustomerID string
}

func (Started) EventName() string { return EventCheckoutStarted }

// ConfirmedItem is one confirmed (product, quantity) pair.
type ConfirmedItem struct {
	ProductID string
	Quantity  int
}

// Confirmed is the integration event emitted exactly once when a session is
// confirmed. It is the sole signal other contexts use to react to a
// completed purchase.
type Confirmed struct {
	SessionID      string
	CartID         string
	CustomerID     string
	OrderReference string
	Items          []ConfirmedItem
}

func (Confirmed) EventName() string { return EventCheckoutConfirmed }
