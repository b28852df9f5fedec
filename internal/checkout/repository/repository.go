// Package repository defines the persistence ports for checkout sessions.
package repository

import (
	"context"
	"time"

	"github.com/cartwright-labs/purchaseflow/internal/checkout/domain"
)

// CheckoutRepository persists checkout sessions. Mutations go through
// SaveIfVersion, which only writes when the stored version matches the
// expected one, so concurrent modifications surface as conflicts instead
// of lost updates.
type CheckoutRepository interface {
	// Create inserts a new session. The stored version starts at 1.
	Create(ctx context.Context, session *domain.CheckoutSession) error

	// FindByID returns the session or apperrors.ErrNotFound.
	FindByID(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)

	// FindActiveByCart returns the in-progress session opened from the
	// given cart, or apperrors.ErrNotFound when none exists.
	FindActiveByCart(ctx context.Context, cartID string) (*domain.CheckoutSession, error)

	// SaveIfVersion writes the session if the stored version equals
	// expectedVersion and returns whether the write happened. A false
	// return with nil error means a concurrent writer won.
	SaveIfVersion(ctx context.Context, session *domain.CheckoutSession, expectedVersion int) (bool, error)

	// ListExpired returns in-progress sessions whose expiry passed before
	// the given time, oldest first, capped at limit.
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.CheckoutSession, error)
}
