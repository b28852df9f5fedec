package repository

import (
	"context"

	"github.com/cartwright-labs/purchaseflow/internal/cart/domain"
)

// Page selects a window of a specification query's result set.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip for this page.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Limit returns the page size, defaulting when unset.
func (p Page) Limit() int {
	if p.Size <= 0 {
		return 20
	}
	return p.Size
}

// CartRepository is the write-side store for the cart aggregate.
type CartRepository interface {
	// FindByID retrieves a cart by its id.
	FindByID(ctx context.Context, cartID string) (*domain.ShoppingCart, error)

	// FindActiveByCustomer retrieves the customer's active cart.
	FindActiveByCustomer(ctx context.Context, customerID string) (*domain.ShoppingCart, error)

	// Save persists a cart unconditionally, bumping its version.
	Save(ctx context.Context, cart *domain.ShoppingCart) error

	// SaveIfVersion persists a cart only if the stored version still equals
	// expectedVersion. Returns false when another writer got there first.
	SaveIfVersion(ctx context.Context, cart *domain.ShoppingCart, expectedVersion int) (bool, error)

	// Delete removes a cart from the store.
	Delete(ctx context.Context, cartID string) error
}

// CartQueryStore answers specification queries against the denormalized cart
// projection, where externally-owned predicates (availability, marketing
// consent, store-clock recency) are evaluated precisely.
type CartQueryStore interface {
	// FindBySpecification returns the carts matching the specification,
	// windowed by page.
	FindBySpecification(ctx context.Context, spec domain.Specification, page Page) ([]*domain.ShoppingCart, error)

	// Upsert writes a cart's current state into the projection.
	Upsert(ctx context.Context, cart *domain.ShoppingCart, hasAvailableItem, marketingOptIn bool) error

	// Remove deletes a cart from the projection.
	Remove(ctx context.Context, cartID string) error
}
