package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
)

func stock(t *testing.T, quantity, reserved int) *StockLevel {
	t.Helper()
	s, err := NewStockLevel("prod-1", quantity)
	require.NoError(t, err)
	s.Reserved = reserved
	return s
}

// ============================================================
// Creation / Available
// ============================================================

func TestNewStockLevel(t *testing.T) {
	s, err := NewStockLevel("prod-1", 10)
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 10, s.Quantity)
	assert.Equal(t, 0, s.Reserved)
	assert.Equal(t, 10, s.Available())
}

func TestNewStockLevel_Invalid(t *testing.T) {
	_, err := NewStockLevel("", 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = NewStockLevel("prod-1", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAvailable(t *testing.T) {
	s := stock(t, 10, 3)
	assert.Equal(t, 7, s.Available())
}

func TestIsLow(t *testing.T) {
	s := stock(t, 100, 0)
	assert.False(t, s.IsLow())

	s.Quantity = DefaultLowStockThreshold
	assert.True(t, s.IsLow())
}

// ============================================================
// Reduce
// ============================================================

func TestReduce(t *testing.T) {
	s := stock(t, 10, 0)

	require.NoError(t, s.Reduce(4))
	assert.Equal(t, 6, s.Quantity)
}

func TestReduce_ReleasesReservation(t *testing.T) {
	s := stock(t, 10, 3)

	require.NoError(t, s.Reduce(2))
	assert.Equal(t, 8, s.Quantity)
	assert.Equal(t, 1, s.Reserved)

	require.NoError(t, s.Reduce(5))
	assert.Equal(t, 3, s.Quantity)
	assert.Equal(t, 0, s.Reserved)
}

func TestReduce_ExactQuantity(t *testing.T) {
	s := stock(t, 5, 0)

	require.NoError(t, s.Reduce(5))
	assert.Equal(t, 0, s.Quantity)
}

func TestReduce_MoreThanOnHand(t *testing.T) {
	s := stock(t, 5, 0)

	err := s.Reduce(6)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Equal(t, 5, s.Quantity)
}

func TestReduce_NonPositive(t *testing.T) {
	s := stock(t, 5, 0)

	assert.ErrorIs(t, s.Reduce(0), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, s.Reduce(-1), apperrors.ErrInvalidInput)
}

// ============================================================
// Reserve / Release
// ============================================================

func TestReserve(t *testing.T) {
	s := stock(t, 10, 0)

	require.NoError(t, s.Reserve(4))
	assert.Equal(t, 4, s.Reserved)
	assert.Equal(t, 6, s.Available())
}

func TestReserve_MoreThanAvailable(t *testing.T) {
	s := stock(t, 10, 8)

	err := s.Reserve(3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Equal(t, 8, s.Reserved)
}

func TestRelease(t *testing.T) {
	s := stock(t, 10, 4)

	require.NoError(t, s.Release(3))
	assert.Equal(t, 1, s.Reserved)

	// Releasing past zero clamps.
	require.NoError(t, s.Release(5))
	assert.Equal(t, 0, s.Reserved)
}
