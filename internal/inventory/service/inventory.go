// Package service implements the business logic for the inventory context.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cartwright-labs/purchaseflow/internal/inventory/domain"
	"github.com/cartwright-labs/purchaseflow/internal/inventory/repository"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
)

// InventoryService owns stock levels: purchase-driven reductions, restocks,
// and movement history.
type InventoryService struct {
	repo   repository.StockRepository
	logger *slog.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(repo repository.StockRepository, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		repo:   repo,
		logger: logger,
	}
}

// GetStock retrieves the stock level for a product.
func (s *InventoryService) GetStock(ctx context.Context, productID string) (*domain.StockLevel, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	stock, err := s.repo.FindByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return stock, nil
}

// SetStock creates or replaces the product's stock level at the given
// quantity, clearing any reservation.
func (s *InventoryService) SetStock(ctx context.Context, productID string, quantity int) (*domain.StockLevel, error) {
	stock, err := s.repo.FindByProduct(ctx, productID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("find stock: %w", err)
		}
		stock, err = domain.NewStockLevel(productID, quantity)
		if err != nil {
			return nil, err
		}
	} else {
		if quantity < 0 {
			return nil, apperrors.InvalidInput("quantity cannot be negative")
		}
		stock.Quantity = quantity
		stock.Reserved = 0
		stock.UpdatedAt = time.Now().UTC()
	}

	if err := s.repo.Upsert(ctx, stock); err != nil {
		return nil, fmt.Errorf("set stock: %w", err)
	}

	s.logger.InfoContext(ctx, "stock level set",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return stock, nil
}

// ReduceStock removes quantity units of a product for a confirmed purchase,
// recording the movement under the given order reference.
func (s *InventoryService) ReduceStock(ctx context.Context, productID string, quantity int, reference string) error {
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}

	if err := s.repo.Reduce(ctx, productID, quantity, reference); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "stock reduced",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
		slog.String("reference", reference),
	)

	return nil
}

// Movements returns the product's most recent stock movements.
func (s *InventoryService) Movements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}

	movements, err := s.repo.Movements(ctx, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	return movements, nil
}
