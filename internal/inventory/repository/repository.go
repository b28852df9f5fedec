// Package repository defines the persistence ports for the inventory
// context.
package repository

import (
	"context"

	"github.com/cartwright-labs/purchaseflow/internal/inventory/domain"
)

// StockRepository persists stock levels and their movement history.
type StockRepository interface {
	// FindByProduct returns the stock level or apperrors.ErrNotFound.
	FindByProduct(ctx context.Context, productID string) (*domain.StockLevel, error)

	// Upsert creates or replaces the product's stock level.
	Upsert(ctx context.Context, stock *domain.StockLevel) error

	// Reduce atomically removes quantity units from the product's stock and
	// records a purchase movement. It fails with apperrors.ErrNotFound when
	// the product has no stock row and apperrors.ErrInvalidState when fewer
	// than quantity units are on hand; neither failure writes anything.
	Reduce(ctx context.Context, productID string, quantity int, reference string) error

	// Movements returns the product's most recent stock movements, newest
	// first, capped at limit.
	Movements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error)
}
