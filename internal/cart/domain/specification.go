package domain

import (
	"time"

	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// Specification is a composable, immutable predicate over carts. It is a
// closed set of variants: leaf predicates plus And/Or/Not combinators.
//
// Every variant supports two evaluation paths. Matches evaluates directly
// against a materialized cart; predicates depending on data the aggregate
// does not hold (last-updated recency windows resolved against a store
// clock, live product availability) return a neutral true there, since the
// in-memory path is a conservative fallback.
// Accept dispatches into a Visitor that translates the same predicate tree
// for a different target, e.g. a SQL query against the cart query store,
// where those predicates are evaluated precisely.
type Specification interface {
	// Matches evaluates the predicate in memory against the given cart.
	Matches(cart *ShoppingCart) bool

	// Accept dispatches into the visitor for this variant.
	Accept(v SpecificationVisitor) error

	// sealed prevents variants outside this package, keeping both
	// evaluation paths exhaustive.
	sealed()
}

// SpecificationVisitor translates a specification tree into another target.
type SpecificationVisitor interface {
	VisitActiveCart(s ActiveCartSpec) error
	VisitLastUpdatedBefore(s LastUpdatedBeforeSpec) error
	VisitHasMinTotal(s HasMinTotalSpec) error
	VisitHasAnyAvailableItem(s HasAnyAvailableItemSpec) error
	VisitCustomerAllowsMarketing(s CustomerAllowsMarketingSpec) error
	VisitAnd(s AndSpec) error
	VisitOr(s OrSpec) error
	VisitNot(s NotSpec) error
}

// ActiveCartSpec matches carts whose status is active.
type ActiveCartSpec struct{}

// ActiveCart matches carts whose status is active.
func ActiveCart() ActiveCartSpec { return ActiveCartSpec{} }

func (ActiveCartSpec) Matches(cart *ShoppingCart) bool       { return cart.IsActive() }
func (s ActiveCartSpec) Accept(v SpecificationVisitor) error { return v.VisitActiveCart(s) }
func (ActiveCartSpec) sealed()                               {}

// LastUpdatedBeforeSpec matches carts last updated before the threshold.
type LastUpdatedBeforeSpec struct {
	Threshold time.Time
}

// LastUpdatedBefore matches carts last updated before the threshold.
func LastUpdatedBefore(threshold time.Time) LastUpdatedBeforeSpec {
	return LastUpdatedBeforeSpec{Threshold: threshold}
}

// Matches returns neutral true: recency is judged against the query store's
// clock, not the in-memory snapshot.
func (LastUpdatedBeforeSpec) Matches(*ShoppingCart) bool { return true }

func (s LastUpdatedBeforeSpec) Accept(v SpecificationVisitor) error {
	return v.VisitLastUpdatedBefore(s)
}
func (LastUpdatedBeforeSpec) sealed() {}

// HasMinTotalSpec matches carts whose snapshot total is at least Min.
type HasMinTotalSpec struct {
	Min money.Money
}

// HasMinTotal matches carts whose snapshot total is at least min.
func HasMinTotal(min money.Money) HasMinTotalSpec { return HasMinTotalSpec{Min: min} }

func (s HasMinTotalSpec) Matches(cart *ShoppingCart) bool {
	cmp, err := cart.Total().Cmp(s.Min)
	if err != nil {
		return false
	}
	return cmp >= 0
}

func (s HasMinTotalSpec) Accept(v SpecificationVisitor) error { return v.VisitHasMinTotal(s) }
func (HasMinTotalSpec) sealed()                               {}

// HasAnyAvailableItemSpec matches carts holding at least one currently
// available product.
type HasAnyAvailableItemSpec struct{}

// HasAnyAvailableItem matches carts holding at least one available product.
func HasAnyAvailableItem() HasAnyAvailableItemSpec { return HasAnyAvailableItemSpec{} }

// Matches returns neutral true: availability lives in the catalog context
// and is only evaluated precisely by the query store translation.
func (HasAnyAvailableItemSpec) Matches(*ShoppingCart) bool { return true }

func (s HasAnyAvailableItemSpec) Accept(v SpecificationVisitor) error {
	return v.VisitHasAnyAvailableItem(s)
}
func (HasAnyAvailableItemSpec) sealed() {}

// CustomerAllowsMarketingSpec matches carts whose owner consented to
// marketing contact.
type CustomerAllowsMarketingSpec struct{}

// CustomerAllowsMarketing matches carts whose owner consented to marketing.
func CustomerAllowsMarketing() CustomerAllowsMarketingSpec { return CustomerAllowsMarketingSpec{} }

// Matches evaluates the consent flag carried on the cart's owner snapshot.
func (CustomerAllowsMarketingSpec) Matches(cart *ShoppingCart) bool {
	return cart.MarketingOptIn
}

func (s CustomerAllowsMarketingSpec) Accept(v SpecificationVisitor) error {
	return v.VisitCustomerAllowsMarketing(s)
}
func (CustomerAllowsMarketingSpec) sealed() {}

// AndSpec matches when both operands match.
type AndSpec struct {
	Left  Specification
	Right Specification
}

// And combines two specifications conjunctively.
func And(left, right Specification) AndSpec { return AndSpec{Left: left, Right: right} }

func (s AndSpec) Matches(cart *ShoppingCart) bool {
	return s.Left.Matches(cart) && s.Right.Matches(cart)
}

func (s AndSpec) Accept(v SpecificationVisitor) error { return v.VisitAnd(s) }
func (AndSpec) sealed()                               {}

// OrSpec matches when either operand matches.
type OrSpec struct {
	Left  Specification
	Right Specification
}

// Or combines two specifications disjunctively.
func Or(left, right Specification) OrSpec { return OrSpec{Left: left, Right: right} }

func (s OrSpec) Matches(cart *ShoppingCart) bool {
	return s.Left.Matches(cart) || s.Right.Matches(cart)
}

func (s OrSpec) Accept(v SpecificationVisitor) error { return v.VisitOr(s) }
func (OrSpec) sealed()                               {}

// NotSpec inverts its operand.
type NotSpec struct {
	Inner Specification
}

// Not inverts a specification.
func Not(inner Specification) NotSpec { return NotSpec{Inner: inner} }

func (s NotSpec) Matches(cart *ShoppingCart) bool { return !s.Inner.Matches(cart) }

func (s NotSpec) Accept(v SpecificationVisitor) error { return v.VisitNot(s) }
func (NotSpec) sealed()                               {}
