package pricing

import (
	"context"

	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// Resolution carries the current price and availability of a single product,
// as opposed to the price snapshot recorded on a cart item when it was added.
type Resolution struct {
	ProductID string
	Price     money.Money
	Available bool
	Stock     int
}

// Unresolvable returns the resolution used for a product the backing store
// knows nothing about: unavailable with zero stock and zero price. Resolvers
// must report unknown products this way instead of omitting them, so that
// validation cannot silently pass for a product that no longer exists.
func Unresolvable(productID, currency string) Resolution {
	return Resolution{
		ProductID: productID,
		Price:     money.Zero(currency),
		Available: false,
		Stock:     0,
	}
}

// Resolver supplies current price and availability for products. Cart and
// checkout aggregates depend only on this contract, not on where the data
// comes from (remote catalog, cache, fixture).
type Resolver interface {
	// Resolve returns the current resolution for a single product.
	Resolve(ctx context.Context, productID string) (Resolution, error)

	// ResolveMany returns resolutions for all given product ids in one round
	// trip. The returned map contains an entry for every requested id;
	// products unknown to the resolver appear as unavailable with zero stock.
	ResolveMany(ctx context.Context, productIDs []string) (map[string]Resolution, error)
}

// LineItem is the minimal view of a cart or checkout line item needed for
// availability validation.
type LineItem struct {
	ProductID string
	Quantity  int
}

// ValidationResult is the outcome of validating line items against current
// availability. An empty issue list means every item passed.
type ValidationResult struct {
	Issues []apperrors.ItemIssue
}

// Valid reports whether no item failed validation.
func (r ValidationResult) Valid() bool {
	return len(r.Issues) == 0
}

// Err returns a ValidationFailed error carrying the per-item issues, or nil
// when the result is valid.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return apperrors.ValidationFailed(r.Issues)
}

// Validate checks every line item against current availability and stock.
// It produces exactly one issue per offending item: PRODUCT_UNAVAILABLE when
// the product is not available (or unknown to the resolver), or
// INSUFFICIENT_STOCK when the requested quantity exceeds available stock.
// Requested quantity equal to available stock is valid. The input is never
// mutated; issues appear in line-item order.
func Validate(ctx context.Context, resolver Resolver, currency string, items []LineItem) (ValidationResult, error) {
	if len(items) == 0 {
		return ValidationResult{}, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	resolutions, err := resolver.ResolveMany(ctx, ids)
	if err != nil {
		return ValidationResult{}, err
	}

	var issues []apperrors.ItemIssue
	for _, item := range items {
		res, ok := resolutions[item.ProductID]
		if !ok {
			// A well-behaved resolver never omits ids, but a missing entry
			// must still fail the item rather than pass it.
			res = Unresolvable(item.ProductID, currency)
		}

		switch {
		case !res.Available:
			issues = append(issues, apperrors.ItemIssue{
				ProductID: item.ProductID,
				Code:      apperrors.ItemIssueUnavailable,
				Requested: item.Quantity,
				Available: 0,
			})
		case item.Quantity > res.Stock:
			issues = append(issues, apperrors.ItemIssue{
				ProductID: item.ProductID,
				Code:      apperrors.ItemIssueInsufficientStock,
				Requested: item.Quantity,
				Available: res.Stock,
			})
		}
	}

	return ValidationResult{Issues: issues}, nil
}

// CurrentTotal sums resolver price times quantity over the given items,
// using current prices rather than stored snapshots.
func CurrentTotal(ctx context.Context, resolver Resolver, currency string, items []LineItem) (money.Money, error) {
	if len(items) == 0 {
		return money.Zero(currency), nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	resolutions, err := resolver.ResolveMany(ctx, ids)
	if err != nil {
		return money.Money{}, err
	}

	total := money.Zero(currency)
	for _, item := range items {
		res, ok := resolutions[item.ProductID]
		if !ok {
			continue
		}
		line := res.Price.MulQty(item.Quantity)
		total, err = total.Add(line)
		if err != nil {
			return money.Money{}, err
		}
	}

	return total, nil
}
