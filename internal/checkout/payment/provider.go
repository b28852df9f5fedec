// Package payment defines the payment provider port used at the payment
// step of checkout and a registry of the providers available for selection.
package payment

import (
	"context"

	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// InitiateInput holds the parameters for initiating a payment when a
// checkout session is confirmed.
type InitiateInput struct {
	SessionID      string
	OrderReference string
	CustomerID     string
	Amount         money.Money
}

// Result holds the provider's answer to a payment operation.
type Result struct {
	Succeeded   bool
	ProviderRef string
	Reason      string
}

// Provider is a payment provider integration selectable at checkout.
type Provider interface {
	// ID returns the stable provider identifier (e.g. "mock", "invoice").
	ID() string

	// DisplayName returns the name shown to the buyer.
	DisplayName() string

	// Available reports whether the provider currently accepts payments.
	Available() bool

	// Initiate starts a payment for a confirmed checkout session.
	Initiate(ctx context.Context, input InitiateInput) (Result, error)

	// Confirm captures a previously initiated payment.
	Confirm(ctx context.Context, providerRef string) (Result, error)

	// Cancel voids a previously initiated payment.
	Cancel(ctx context.Context, providerRef string) (Result, error)
}

// Registry holds the providers offered at the payment step, keyed by ID.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry creates a registry from the given providers. Registration
// order determines listing order.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if _, exists := r.providers[p.ID()]; exists {
			continue
		}
		r.providers[p.ID()] = p
		r.order = append(r.order, p.ID())
	}
	return r
}

// Get returns the provider with the given ID, or an invalid-input error
// when it is unknown or currently unavailable.
func (r *Registry) Get(providerID string) (Provider, error) {
	p, ok := r.providers[providerID]
	if !ok {
		return nil, apperrors.InvalidInput("unknown payment provider: " + providerID)
	}
	if !p.Available() {
		return nil, apperrors.ServiceUnavailable("payment provider " + providerID + " is currently unavailable")
	}
	return p, nil
}

// List returns the currently available providers in registration order.
func (r *Registry) List() []Provider {
	available := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		if p := r.providers[id]; p.Available() {
			available = append(available, p)
		}
	}
	return available
}
