package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartwright-labs/purchaseflow/internal/cart/domain"
	"github.com/cartwright-labs/purchaseflow/internal/cart/repository"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

func setupStore(t *testing.T) (*CartQueryStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	store := NewCartQueryStore(mock)
	return store, mock
}

var snapshotColumns = []string{
	"cart_id", "customer_id", "status", "currency", "items",
	"marketing_opt_in", "version", "created_at", "updated_at",
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func TestTranslate_Leaves(t *testing.T) {
	where, args, err := translate(domain.ActiveCart())
	require.NoError(t, err)
	assert.Equal(t, "status = $1", where)
	assert.Equal(t, []any{domain.StatusActive}, args)

	threshold := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args, err = translate(domain.LastUpdatedBefore(threshold))
	require.NoError(t, err)
	assert.Equal(t, "updated_at < $1", where)
	assert.Equal(t, []any{threshold}, args)

	where, args, err = translate(domain.HasMinTotal(money.New(2500, "EUR")))
	require.NoError(t, err)
	assert.Equal(t, "(total_amount >= $1 AND currency = $2)", where)
	assert.Equal(t, []any{int64(2500), "EUR"}, args)

	where, args, err = translate(domain.HasAnyAvailableItem())
	require.NoError(t, err)
	assert.Equal(t, "has_available_item", where)
	assert.Empty(t, args)

	where, _, err = translate(domain.CustomerAllowsMarketing())
	require.NoError(t, err)
	assert.Equal(t, "marketing_opt_in", where)
}

func TestTranslate_Combinators(t *testing.T) {
	threshold := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	spec := domain.And(
		domain.ActiveCart(),
		domain.Or(
			domain.LastUpdatedBefore(threshold),
			domain.Not(domain.CustomerAllowsMarketing()),
		),
	)

	where, args, err := translate(spec)
	require.NoError(t, err)
	assert.Equal(t, "(status = $1 AND (updated_at < $2 OR (NOT marketing_opt_in)))", where)
	assert.Equal(t, []any{domain.StatusActive, threshold}, args)
}

// ---------------------------------------------------------------------------
// FindBySpecification
// ---------------------------------------------------------------------------

func TestFindBySpecification(t *testing.T) {
	store, mock := setupStore(t)

	items := []domain.Item{{ProductID: "prod-1", Quantity: 2, PriceAtAddition: money.New(1000, "EUR")}}
	itemsJSON, err := json.Marshal(items)
	require.NoError(t, err)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT cart_id, customer_id, status, currency, items`).
		WithArgs(domain.StatusActive, 20, 0).
		WillReturnRows(pgxmock.NewRows(snapshotColumns).AddRow(
			"cart-1", "cust-1", domain.StatusActive, "EUR", itemsJSON,
			true, 3, now, now,
		))

	carts, err := store.FindBySpecification(context.Background(), domain.ActiveCart(), repository.Page{})
	require.NoError(t, err)
	require.Len(t, carts, 1)

	assert.Equal(t, "cart-1", carts[0].ID)
	assert.Equal(t, 3, carts[0].Version)
	require.Len(t, carts[0].Items, 1)
	assert.Equal(t, money.New(1000, "EUR"), carts[0].Items[0].PriceAtAddition)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBySpecification_Paging(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`FROM cart_snapshots`).
		WithArgs(domain.StatusActive, 10, 20).
		WillReturnRows(pgxmock.NewRows(snapshotColumns))

	carts, err := store.FindBySpecification(context.Background(), domain.ActiveCart(), repository.Page{Number: 3, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, carts)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Upsert / Remove
// ---------------------------------------------------------------------------

func TestUpsert(t *testing.T) {
	store, mock := setupStore(t)

	cart := domain.NewShoppingCart("cust-1", "EUR")
	require.NoError(t, cart.AddItem("prod-1", 2, money.New(1000, "EUR")))
	cart.CollectEvents()

	itemsJSON, err := json.Marshal(cart.Items)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO cart_snapshots`).
		WithArgs(
			cart.ID, "cust-1", domain.StatusActive, "EUR", itemsJSON,
			int64(2000), 1, true, false, 0, cart.CreatedAt, cart.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Upsert(context.Background(), cart, true, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemove(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec(`DELETE FROM cart_snapshots`).
		WithArgs("cart-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Remove(context.Background(), "cart-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
