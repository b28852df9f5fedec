package domain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartwright-labs/purchaseflow/internal/pricing"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

func eur(amount int64) money.Money {
	return money.New(amount, "EUR")
}

func activeCart(t *testing.T) *ShoppingCart {
	t.Helper()
	cart := NewShoppingCart("cust-1", "EUR")
	cart.CollectEvents()
	return cart
}

// ============================================================================
// AddItem Tests
// ============================================================================

func TestAddItem_NewProduct(t *testing.T) {
	cart := activeCart(t)

	require.NoError(t, cart.AddItem("prod-1", 2, eur(1000)))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, eur(1000), cart.Items[0].PriceAtAddition)
}

func TestAddItem_ExistingProductKeepsOriginalSnapshot(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-1", 2, eur(1000)))

	// Adding again with a different price combines quantities but never
	// overwrites the original snapshot.
	require.NoError(t, cart.AddItem("prod-1", 3, eur(1500)))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, eur(1000), cart.Items[0].PriceAtAddition)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	cart := activeCart(t)

	assert.ErrorIs(t, cart.AddItem("prod-1", 0, eur(1000)), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, cart.AddItem("prod-1", -1, eur(1000)), apperrors.ErrInvalidInput)
}

func TestAddItem_QuantityCap(t *testing.T) {
	cart := activeCart(t)

	assert.ErrorIs(t, cart.AddItem("prod-1", MaxQuantityPerItem+1, eur(1000)), apperrors.ErrInvalidInput)

	require.NoError(t, cart.AddItem("prod-1", MaxQuantityPerItem, eur(1000)))
	assert.ErrorIs(t, cart.AddItem("prod-1", 1, eur(1000)), apperrors.ErrInvalidInput)
}

func TestAddItem_ForeignCurrencyRejected(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-eur", 1, eur(1000)))
	cart.CollectEvents()

	err := cart.AddItem("prod-usd", 1, money.New(500, "USD"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	// The rejected line must not poison the total.
	assert.Equal(t, 1, cart.ItemCount())
	assert.Equal(t, eur(1000), cart.Total())
	assert.Empty(t, cart.CollectEvents())
}

func TestAddItem_NotActive(t *testing.T) {
	cart := activeCart(t)
	cart.Status = StatusCheckedOut

	assert.ErrorIs(t, cart.AddItem("prod-1", 1, eur(1000)), apperrors.ErrInvalidState)
}

func TestAddItem_RecordsEvent(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-1", 2, eur(1000)))

	events := cart.CollectEvents()
	require.Len(t, events, 1)

	added, ok := events[0].(ItemAdded)
	require.True(t, ok)
	assert.Equal(t, "prod-1", added.ProductID)
	assert.Equal(t, 2, added.Quantity)

	// The buffer is drained by CollectEvents.
	assert.Empty(t, cart.CollectEvents())
}

// ============================================================================
// RemoveItem / ChangeQuantity Tests
// ============================================================================

func TestRemoveItem(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-1", 2, eur(1000)))

	require.NoError(t, cart.RemoveItem("prod-1"))
	assert.True(t, cart.IsEmpty())
}

func TestRemoveItem_AbsentProduct(t *testing.T) {
	cart := activeCart(t)

	assert.ErrorIs(t, cart.RemoveItem("prod-x"), apperrors.ErrNotFound)
}

func TestChangeQuantity(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-1", 2, eur(1000)))
	cart.CollectEvents()

	require.NoError(t, cart.ChangeQuantity("prod-1", 7))
	assert.Equal(t, 7, cart.Items[0].Quantity)

	events := cart.CollectEvents()
	require.Len(t, events, 1)
	changed, ok := events[0].(QuantityChanged)
	require.True(t, ok)
	assert.Equal(t, 7, changed.Quantity)
}

func TestChangeQuantity_ZeroRemovesItem(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-1", 2, eur(1000)))
	cart.CollectEvents()

	require.NoError(t, cart.ChangeQuantity("prod-1", 0))
	assert.True(t, cart.IsEmpty())

	events := cart.CollectEvents()
	require.Len(t, events, 1)
	_, ok := events[0].(ProductRemoved)
	assert.True(t, ok)
}

func TestChangeQuantity_AbsentProduct(t *testing.T) {
	cart := activeCart(t)

	assert.ErrorIs(t, cart.ChangeQuantity("prod-x", 3), apperrors.ErrNotFound)
}

// ============================================================================
// Checkout Tests
// ============================================================================

func TestCheckout(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-a", 2, eur(1000)))
	require.NoError(t, cart.AddItem("prod-b", 1, eur(500)))
	cart.CollectEvents()

	require.NoError(t, cart.Checkout())
	assert.Equal(t, StatusCheckedOut, cart.Status)

	events := cart.CollectEvents()
	require.Len(t, events, 1)
	checkedOut, ok := events[0].(CheckedOut)
	require.True(t, ok)

	// {A:2@10.00, B:1@5.00} → total 25.00, two distinct items.
	assert.Equal(t, eur(2500), checkedOut.Total)
	assert.Equal(t, 2, checkedOut.ItemCount)
}

func TestCheckout_EmptyCart(t *testing.T) {
	cart := activeCart(t)

	assert.ErrorIs(t, cart.Checkout(), apperrors.ErrInvalidState)
	assert.Equal(t, StatusActive, cart.Status)
}

func TestCheckout_NotActive(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-1", 1, eur(1000)))
	cart.Status = StatusAbandoned

	assert.ErrorIs(t, cart.Checkout(), apperrors.ErrInvalidState)
}

// ============================================================================
// Merge Tests
// ============================================================================

func TestMerge_IntoEmptyTarget(t *testing.T) {
	source := activeCart(t)
	require.NoError(t, source.AddItem("prod-a", 2, eur(1000)))
	require.NoError(t, source.AddItem("prod-b", 3, eur(500)))

	target := activeCart(t)
	merged, err := target.Merge(source)
	require.NoError(t, err)

	assert.Equal(t, 2, merged)
	assert.Equal(t, source.ItemCount(), target.ItemCount())
	assert.Equal(t, source.TotalQuantity(), target.TotalQuantity())
	assert.Equal(t, eur(1000), target.Items[0].PriceAtAddition)
}

func TestMerge_CombinesQuantitiesKeepsTargetSnapshot(t *testing.T) {
	target := activeCart(t)
	require.NoError(t, target.AddItem("prod-a", 2, eur(1000)))
	target.CollectEvents()

	source := activeCart(t)
	require.NoError(t, source.AddItem("prod-a", 3, eur(1800)))
	require.NoError(t, source.AddItem("prod-b", 1, eur(500)))

	merged, err := target.Merge(source)
	require.NoError(t, err)
	assert.Equal(t, 2, merged)

	itemA, ok := target.Item("prod-a")
	require.True(t, ok)
	assert.Equal(t, 5, itemA.Quantity)
	// The target's pre-merge snapshot wins, never the source's.
	assert.Equal(t, eur(1000), itemA.PriceAtAddition)

	itemB, ok := target.Item("prod-b")
	require.True(t, ok)
	assert.Equal(t, eur(500), itemB.PriceAtAddition)

	// One event per touched product, in source item order.
	events := target.CollectEvents()
	require.Len(t, events, 2)
	_, ok = events[0].(QuantityChanged)
	assert.True(t, ok)
	_, ok = events[1].(ItemAdded)
	assert.True(t, ok)
}

func TestMerge_EmptySourceIsNoOp(t *testing.T) {
	target := activeCart(t)
	require.NoError(t, target.AddItem("prod-a", 2, eur(1000)))
	target.CollectEvents()

	merged, err := target.Merge(activeCart(t))
	require.NoError(t, err)

	assert.Equal(t, 0, merged)
	assert.Equal(t, 1, target.ItemCount())
	assert.Empty(t, target.CollectEvents())
}

func TestMerge_SourceNeverMutated(t *testing.T) {
	source := activeCart(t)
	require.NoError(t, source.AddItem("prod-a", 2, eur(1000)))

	target := activeCart(t)
	require.NoError(t, target.AddItem("prod-a", 1, eur(900)))

	_, err := target.Merge(source)
	require.NoError(t, err)

	assert.Equal(t, 2, source.Items[0].Quantity)
	assert.Equal(t, eur(1000), source.Items[0].PriceAtAddition)
}

func TestMerge_TargetNotActive(t *testing.T) {
	source := activeCart(t)
	require.NoError(t, source.AddItem("prod-a", 1, eur(1000)))

	target := activeCart(t)
	target.Status = StatusCheckedOut

	_, err := target.Merge(source)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestMerge_ForeignCurrencyRejected(t *testing.T) {
	source := NewShoppingCart("cust-2", "USD")
	require.NoError(t, source.AddItem("prod-a", 1, money.New(500, "USD")))

	target := activeCart(t)
	require.NoError(t, target.AddItem("prod-b", 1, eur(1000)))
	target.CollectEvents()

	merged, err := target.Merge(source)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Equal(t, 0, merged)
	assert.Equal(t, 1, target.ItemCount())
	assert.Equal(t, eur(1000), target.Total())
	assert.Empty(t, target.CollectEvents())
}

func TestMerge_QuantityCapEnforced(t *testing.T) {
	source := activeCart(t)
	require.NoError(t, source.AddItem("prod-a", 60, eur(1000)))

	target := activeCart(t)
	require.NoError(t, target.AddItem("prod-a", 60, eur(1000)))
	target.CollectEvents()

	_, err := target.Merge(source)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	// Nothing changed: the target keeps its pre-merge quantity.
	itemA, ok := target.Item("prod-a")
	require.True(t, ok)
	assert.Equal(t, 60, itemA.Quantity)
	assert.Empty(t, target.CollectEvents())
}

func TestMerge_ItemCapEnforced(t *testing.T) {
	target := activeCart(t)
	for i := 0; i < MaxItemsPerCart; i++ {
		require.NoError(t, target.AddItem(fmt.Sprintf("prod-%d", i), 1, eur(100)))
	}
	target.CollectEvents()

	source := activeCart(t)
	require.NoError(t, source.AddItem("prod-extra", 1, eur(100)))

	_, err := target.Merge(source)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, MaxItemsPerCart, target.ItemCount())
}

// ============================================================================
// Total / CurrentTotal / ValidateForCheckout Tests
// ============================================================================

func TestTotal_UsesSnapshots(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-a", 2, eur(1000)))
	require.NoError(t, cart.AddItem("prod-b", 3, eur(500)))

	assert.Equal(t, eur(3500), cart.Total())
}

func TestTotal_EmptyCart(t *testing.T) {
	cart := activeCart(t)
	assert.True(t, cart.Total().IsZero())
}

func TestCurrentTotal_UsesResolverPrices(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-a", 2, eur(1000)))

	resolver := pricing.NewStaticResolver("EUR",
		pricing.Resolution{ProductID: "prod-a", Price: eur(1300), Available: true, Stock: 10},
	)

	total, err := cart.CurrentTotal(context.Background(), resolver)
	require.NoError(t, err)
	assert.Equal(t, eur(2600), total)
	assert.Equal(t, eur(2000), cart.Total())
}

func TestValidateForCheckout_ReportsOffendingItems(t *testing.T) {
	cart := activeCart(t)
	require.NoError(t, cart.AddItem("prod-a", 2, eur(1000)))
	require.NoError(t, cart.AddItem("prod-b", 5, eur(500)))

	resolver := pricing.NewStaticResolver("EUR",
		pricing.Resolution{ProductID: "prod-a", Price: eur(1000), Available: true, Stock: 2},
		pricing.Resolution{ProductID: "prod-b", Price: eur(500), Available: true, Stock: 4},
	)

	result, err := cart.ValidateForCheckout(context.Background(), resolver)
	require.NoError(t, err)

	// prod-a requested == stock is valid; prod-b exceeds stock.
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "prod-b", result.Issues[0].ProductID)
	assert.Equal(t, apperrors.ItemIssueInsufficientStock, result.Issues[0].Code)
}
