// Package postgres implements the inventory stock store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cartwright-labs/purchaseflow/internal/inventory/domain"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
)

// StockRepository is a PostgreSQL-backed stock store.
type StockRepository struct {
	db database.DBTX
}

// NewStockRepository creates a stock repository on the given querier.
func NewStockRepository(db database.DBTX) *StockRepository {
	return &StockRepository{db: db}
}

// FindByProduct retrieves the stock level for a product.
func (r *StockRepository) FindByProduct(ctx context.Context, productID string) (*domain.StockLevel, error) {
	query := `
		SELECT id, product_id, quantity, reserved, low_stock_threshold, updated_at
		FROM stock_levels
		WHERE product_id = $1`

	var s domain.StockLevel
	err := r.db.QueryRow(ctx, query, productID).Scan(
		&s.ID,
		&s.ProductID,
		&s.Quantity,
		&s.Reserved,
		&s.LowStockThreshold,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("stock_level", productID)
		}
		return nil, fmt.Errorf("get stock level: %w", err)
	}

	return &s, nil
}

// Upsert creates or replaces the product's stock level.
func (r *StockRepository) Upsert(ctx context.Context, stock *domain.StockLevel) error {
	query := `
		INSERT INTO stock_levels (id, product_id, quantity, reserved, low_stock_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			reserved = EXCLUDED.reserved,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		stock.ID,
		stock.ProductID,
		stock.Quantity,
		stock.Reserved,
		stock.LowStockThreshold,
		stock.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert stock level: %w", err)
	}

	return nil
}

// Reduce atomically removes quantity units from the product's stock and
// records the purchase movement in the same transaction. The conditional
// update enforces the on-hand check at the database, so concurrent
// reductions cannot oversell.
func (r *StockRepository) Reduce(ctx context.Context, productID string, quantity int, reference string) error {
	if quantity <= 0 {
		return apperrors.InvalidInput("reduce quantity must be positive")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	reduceQuery := `
		UPDATE stock_levels
		SET quantity = quantity - $1,
			reserved = GREATEST(reserved - $1, 0),
			updated_at = NOW()
		WHERE product_id = $2 AND quantity >= $1
		RETURNING id`

	var stockID string
	err = tx.QueryRow(ctx, reduceQuery, quantity, productID).Scan(&stockID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.classifyReduceFailure(ctx, productID, quantity)
		}
		return fmt.Errorf("reduce stock: %w", err)
	}

	movementQuery := `
		INSERT INTO stock_movements (product_id, quantity_change, reason, reference_id)
		VALUES ($1, $2, $3, $4)`

	if _, err := tx.Exec(ctx, movementQuery, productID, -quantity, domain.MovementReasonPurchase, nullableString(reference)); err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stock reduction: %w", err)
	}

	return nil
}

// classifyReduceFailure distinguishes a missing stock row from insufficient
// stock after the conditional update matched nothing.
func (r *StockRepository) classifyReduceFailure(ctx context.Context, productID string, quantity int) error {
	stock, err := r.FindByProduct(ctx, productID)
	if err != nil {
		return err
	}
	return apperrors.InvalidState(fmt.Sprintf(
		"cannot reduce stock for %s by %d, only %d on hand", productID, quantity, stock.Quantity))
}

// Movements returns the product's most recent stock movements, newest first.
func (r *StockRepository) Movements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	query := `
		SELECT id, product_id, quantity_change, reason, reference_id, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	var movements []domain.StockMovement
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.QuantityChange, &m.Reason, &m.ReferenceID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock movement rows: %w", err)
	}

	return movements, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
