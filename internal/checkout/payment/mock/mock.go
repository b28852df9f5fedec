// Package mock provides a payment provider that always succeeds, for
// development and testing.
package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/cartwright-labs/purchaseflow/internal/checkout/payment"
)

// Provider is a mock payment provider that accepts every payment.
type Provider struct{}

// NewProvider creates a new mock payment provider.
func NewProvider() *Provider {
	return &Provider{}
}

// ID returns the provider identifier.
func (p *Provider) ID() string {
	return "mock"
}

// DisplayName returns the name shown to the buyer.
func (p *Provider) DisplayName() string {
	return "Test payment"
}

// Available always reports true.
func (p *Provider) Available() bool {
	return true
}

// Initiate simulates a payment that always succeeds.
func (p *Provider) Initiate(_ context.Context, _ payment.InitiateInput) (payment.Result, error) {
	return payment.Result{
		Succeeded:   true,
		ProviderRef: "mock_pay_" + uuid.New().String(),
	}, nil
}

// Confirm simulates a capture that always succeeds.
func (p *Provider) Confirm(_ context.Context, providerRef string) (payment.Result, error) {
	return payment.Result{Succeeded: true, ProviderRef: providerRef}, nil
}

// Cancel simulates a void that always succeeds.
func (p *Provider) Cancel(_ context.Context, providerRef string) (payment.Result, error) {
	return payment.Result{Succeeded: true, ProviderRef: providerRef}, nil
}
