// Package domain holds the inventory context's stock model.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
)

// DefaultLowStockThreshold is used when a stock level is created without an
// explicit threshold.
const DefaultLowStockThreshold = 10

// StockLevel is the inventory record for a product. Reserved never exceeds
// Quantity; Available is what purchases may still claim.
type StockLevel struct {
	ID                string    `json:"id"`
	ProductID         string    `json:"product_id"`
	Quantity          int       `json:"quantity"`
	Reserved          int       `json:"reserved"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewStockLevel creates a stock record for a product.
func NewStockLevel(productID string, quantity int) (*StockLevel, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if quantity < 0 {
		return nil, apperrors.InvalidInput("quantity cannot be negative")
	}

	return &StockLevel{
		ID:                uuid.New().String(),
		ProductID:         productID,
		Quantity:          quantity,
		Reserved:          0,
		LowStockThreshold: DefaultLowStockThreshold,
		UpdatedAt:         time.Now().UTC(),
	}, nil
}

// Available returns the quantity still open for purchase.
func (s *StockLevel) Available() int {
	return s.Quantity - s.Reserved
}

// IsLow reports whether available stock has fallen to the threshold.
func (s *StockLevel) IsLow() bool {
	return s.Available() <= s.LowStockThreshold
}

// Reduce removes quantity units from stock, releasing any reservation held
// for them first. Reducing more than is on hand is an error and leaves the
// record untouched.
func (s *StockLevel) Reduce(quantity int) error {
	if quantity <= 0 {
		return apperrors.InvalidInput("reduce quantity must be positive")
	}
	if quantity > s.Quantity {
		return apperrors.InvalidState(fmt.Sprintf(
			"cannot reduce stock for %s by %d, only %d on hand", s.ProductID, quantity, s.Quantity))
	}

	s.Quantity -= quantity
	if s.Reserved > quantity {
		s.Reserved -= quantity
	} else {
		s.Reserved = 0
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Reserve holds quantity units against the available stock.
func (s *StockLevel) Reserve(quantity int) error {
	if quantity <= 0 {
		return apperrors.InvalidInput("reserve quantity must be positive")
	}
	if quantity > s.Available() {
		return apperrors.InvalidState(fmt.Sprintf(
			"cannot reserve %d units of %s, only %d available", quantity, s.ProductID, s.Available()))
	}

	s.Reserved += quantity
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Release frees a previously held reservation. Releasing more than is
// reserved clamps to zero.
func (s *StockLevel) Release(quantity int) error {
	if quantity <= 0 {
		return apperrors.InvalidInput("release quantity must be positive")
	}

	if s.Reserved > quantity {
		s.Reserved -= quantity
	} else {
		s.Reserved = 0
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// StockMovement records a change applied to a product's stock.
type StockMovement struct {
	ID             int64     `json:"id"`
	ProductID      string    `json:"product_id"`
	QuantityChange int       `json:"quantity_change"`
	Reason         string    `json:"reason"`
	ReferenceID    *string   `json:"reference_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Stock movement reasons.
const (
	MovementReasonPurchase   = "purchase"
	MovementReasonRestock    = "restock"
	MovementReasonAdjustment = "adjustment"
)
