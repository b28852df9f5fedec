package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

func specCart(t *testing.T, status string, total int64) *ShoppingCart {
	t.Helper()
	cart := NewShoppingCart("cust-1", "EUR")
	if total > 0 {
		require.NoError(t, cart.AddItem("prod-1", 1, money.New(total, "EUR")))
	}
	cart.Status = status
	cart.CollectEvents()
	return cart
}

func TestActiveCartSpec(t *testing.T) {
	assert.True(t, ActiveCart().Matches(specCart(t, StatusActive, 1000)))
	assert.False(t, ActiveCart().Matches(specCart(t, StatusCheckedOut, 1000)))
}

func TestHasMinTotalSpec(t *testing.T) {
	spec := HasMinTotal(money.New(2000, "EUR"))

	assert.True(t, spec.Matches(specCart(t, StatusActive, 2000)))
	assert.True(t, spec.Matches(specCart(t, StatusActive, 2500)))
	assert.False(t, spec.Matches(specCart(t, StatusActive, 1999)))
}

func TestNeutralPredicatesMatchInMemory(t *testing.T) {
	// Predicates whose data lives outside the aggregate are neutral true
	// in memory regardless of the cart's actual state.
	carts := []*ShoppingCart{
		specCart(t, StatusActive, 1000),
		specCart(t, StatusAbandoned, 0),
	}

	for i, cart := range carts {
		t.Run(fmt.Sprintf("cart_%d", i), func(t *testing.T) {
			assert.True(t, LastUpdatedBefore(time.Unix(0, 0)).Matches(cart))
			assert.True(t, HasAnyAvailableItem().Matches(cart))
		})
	}
}

func TestCustomerAllowsMarketingSpec(t *testing.T) {
	optedIn := specCart(t, StatusActive, 1000)
	optedIn.MarketingOptIn = true
	optedOut := specCart(t, StatusActive, 1000)

	assert.True(t, CustomerAllowsMarketing().Matches(optedIn))
	assert.False(t, CustomerAllowsMarketing().Matches(optedOut))
}

func TestCombinators(t *testing.T) {
	active := specCart(t, StatusActive, 3000)
	checkedOut := specCart(t, StatusCheckedOut, 3000)
	minTotal := HasMinTotal(money.New(2000, "EUR"))

	assert.True(t, And(ActiveCart(), minTotal).Matches(active))
	assert.False(t, And(ActiveCart(), minTotal).Matches(checkedOut))

	assert.True(t, Or(ActiveCart(), minTotal).Matches(checkedOut))
	assert.False(t, Or(ActiveCart(), HasMinTotal(money.New(9000, "EUR"))).Matches(checkedOut))

	assert.False(t, Not(ActiveCart()).Matches(active))
	assert.True(t, Not(ActiveCart()).Matches(checkedOut))
}

// recordingVisitor translates a specification tree into a flat list of
// variant names, verifying double dispatch reaches every node.
type recordingVisitor struct {
	visited []string
}

func (r *recordingVisitor) VisitActiveCart(ActiveCartSpec) error {
	r.visited = append(r.visited, "active")
	return nil
}

func (r *recordingVisitor) VisitLastUpdatedBefore(LastUpdatedBeforeSpec) error {
	r.visited = append(r.visited, "last_updated_before")
	return nil
}

func (r *recordingVisitor) VisitHasMinTotal(HasMinTotalSpec) error {
	r.visited = append(r.visited, "has_min_total")
	return nil
}

func (r *recordingVisitor) VisitHasAnyAvailableItem(HasAnyAvailableItemSpec) error {
	r.visited = append(r.visited, "has_any_available_item")
	return nil
}

func (r *recordingVisitor) VisitCustomerAllowsMarketing(CustomerAllowsMarketingSpec) error {
	r.visited = append(r.visited, "customer_allows_marketing")
	return nil
}

func (r *recordingVisitor) VisitAnd(s AndSpec) error {
	r.visited = append(r.visited, "and")
	if err := s.Left.Accept(r); err != nil {
		return err
	}
	return s.Right.Accept(r)
}

func (r *recordingVisitor) VisitOr(s OrSpec) error {
	r.visited = append(r.visited, "or")
	if err := s.Left.Accept(r); err != nil {
		return err
	}
	return s.Right.Accept(r)
}

func (r *recordingVisitor) VisitNot(s NotSpec) error {
	r.visited = append(r.visited, "not")
	return s.Inner.Accept(r)
}

func TestAccept_DispatchesWholeTree(t *testing.T) {
	spec := And(
		ActiveCart(),
		Or(
			HasMinTotal(money.New(5000, "EUR")),
			Not(CustomerAllowsMarketing()),
		),
	)

	visitor := &recordingVisitor{}
	require.NoError(t, spec.Accept(visitor))

	assert.Equal(t, []string{
		"and", "active", "or", "has_min_total", "not", "customer_allows_marketing",
	}, visitor.visited)
}

func TestMatchesAndVisitorAgreeForInMemoryPredicates(t *testing.T) {
	// For predicates computable purely from cart state, the in-memory path
	// and a visitor-based evaluation must agree.
	active := specCart(t, StatusActive, 1000)

	spec := ActiveCart()
	visitor := &recordingVisitor{}
	require.NoError(t, spec.Accept(visitor))

	assert.True(t, spec.Matches(active))
	assert.Equal(t, []string{"active"}, visitor.visited)
}
