package pricing

import (
	"context"
	"sync"
)

// StaticResolver serves resolutions from an in-memory table. It is used in
// tests and local development where no catalog backend is running.
type StaticResolver struct {
	mu       sync.RWMutex
	table    map[string]Resolution
	currency string
}

// NewStaticResolver creates a resolver backed by the given table. Products
// absent from the table resolve as unavailable with zero stock.
func NewStaticResolver(currency string, resolutions ...Resolution) *StaticResolver {
	table := make(map[string]Resolution, len(resolutions))
	for _, res := range resolutions {
		table[res.ProductID] = res
	}
	return &StaticResolver{table: table, currency: currency}
}

// Set adds or replaces the resolution for a product.
func (r *StaticResolver) Set(res Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[res.ProductID] = res
}

// Remove deletes a product from the table so it resolves as unavailable.
func (r *StaticResolver) Remove(productID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.table, productID)
}

// Resolve returns the current resolution for a single product.
func (r *StaticResolver) Resolve(_ context.Context, productID string) (Resolution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if res, ok := r.table[productID]; ok {
		return res, nil
	}
	return Unresolvable(productID, r.currency), nil
}

// ResolveMany returns a resolution for every requested id.
func (r *StaticResolver) ResolveMany(_ context.Context, productIDs []string) (map[string]Resolution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Resolution, len(productIDs))
	for _, id := range productIDs {
		if res, ok := r.table[id]; ok {
			out[id] = res
		} else {
			out[id] = Unresolvable(id, r.currency)
		}
	}
	return out, nil
}
