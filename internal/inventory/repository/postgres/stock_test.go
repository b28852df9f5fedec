package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartwright-labs/purchaseflow/internal/inventory/domain"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
)

func setupRepo(t *testing.T) (*StockRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewStockRepository(mock)
	return repo, mock
}

var stockColumns = []string{
	"id", "product_id", "quantity", "reserved", "low_stock_threshold", "updated_at",
}

func sampleStock() domain.StockLevel {
	return domain.StockLevel{
		ID:                "stock-1",
		ProductID:         "prod-1",
		Quantity:          100,
		Reserved:          10,
		LowStockThreshold: 5,
		UpdatedAt:         time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

// ---------------------------------------------------------------------------
// FindByProduct
// ---------------------------------------------------------------------------

func TestFindByProduct(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	s := sampleStock()
	mock.ExpectQuery("SELECT .+ FROM stock_levels").
		WithArgs(s.ProductID).
		WillReturnRows(pgxmock.NewRows(stockColumns).
			AddRow(s.ID, s.ProductID, s.Quantity, s.Reserved, s.LowStockThreshold, s.UpdatedAt))

	result, err := repo.FindByProduct(context.Background(), s.ProductID)
	require.NoError(t, err)
	assert.Equal(t, s.ProductID, result.ProductID)
	assert.Equal(t, 90, result.Available())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByProduct_NotFound(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM stock_levels").
		WithArgs("prod-x").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.FindByProduct(context.Background(), "prod-x")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Upsert
// ---------------------------------------------------------------------------

func TestUpsert(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	s := sampleStock()
	mock.ExpectExec("INSERT INTO stock_levels").
		WithArgs(s.ID, s.ProductID, s.Quantity, s.Reserved, s.LowStockThreshold, s.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Upsert(context.Background(), &s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Reduce
// ---------------------------------------------------------------------------

func TestReduce(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE stock_levels").
		WithArgs(3, "prod-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("stock-1"))
	mock.ExpectExec("INSERT INTO stock_movements").
		WithArgs("prod-1", -3, domain.MovementReasonPurchase, strPtr("ORD-1")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Reduce(context.Background(), "prod-1", 3, "ORD-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReduce_InsufficientStock(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	s := sampleStock()
	s.Quantity = 2

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE stock_levels").
		WithArgs(3, "prod-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT .+ FROM stock_levels").
		WithArgs("prod-1").
		WillReturnRows(pgxmock.NewRows(stockColumns).
			AddRow(s.ID, s.ProductID, s.Quantity, 0, s.LowStockThreshold, s.UpdatedAt))
	mock.ExpectRollback()

	err := repo.Reduce(context.Background(), "prod-1", 3, "ORD-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReduce_UnknownProduct(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE stock_levels").
		WithArgs(3, "prod-x").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT .+ FROM stock_levels").
		WithArgs("prod-x").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Reduce(context.Background(), "prod-x", 3, "ORD-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReduce_NonPositiveQuantity(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	err := repo.Reduce(context.Background(), "prod-1", 0, "ORD-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Movements
// ---------------------------------------------------------------------------

func TestMovements(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .+ FROM stock_movements").
		WithArgs("prod-1", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "quantity_change", "reason", "reference_id", "created_at"}).
			AddRow(int64(2), "prod-1", -3, domain.MovementReasonPurchase, strPtr("ORD-1"), now).
			AddRow(int64(1), "prod-1", 100, domain.MovementReasonRestock, (*string)(nil), now.Add(-time.Hour)))

	movements, err := repo.Movements(context.Background(), "prod-1", 10)
	require.NoError(t, err)

	require.Len(t, movements, 2)
	assert.Equal(t, -3, movements[0].QuantityChange)
	require.NotNil(t, movements[0].ReferenceID)
	assert.Equal(t, "ORD-1", *movements[0].ReferenceID)
	assert.Nil(t, movements[1].ReferenceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string {
	return &s
}
