package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cartwright-labs/purchaseflow/internal/pricing"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// Checkout step constants, in order. A session's step only moves forward;
// resubmitting an already-passed step overwrites its data without moving
// the step backwards.
const (
	StepCart      = "cart"
	StepBuyerInfo = "buyer_info"
	StepDelivery  = "delivery"
	StepPayment   = "payment"
	StepReview    = "review"
	StepConfirmed = "confirmed"
)

// stepRank orders the checkout steps.
var stepRank = map[string]int{
	StepCart:      0,
	StepBuyerInfo: 1,
	StepDelivery:  2,
	StepPayment:   3,
	StepReview:    4,
	StepConfirmed: 5,
}

// Checkout session status constants.
const (
	StatusInProgress = "in_progress"
	StatusConfirmed  = "confirmed"
	StatusExpired    = "expired"
	StatusAbandoned  = "abandoned"
)

// LineItem is a checkout line, a point-in-time copy of a cart line.
type LineItem struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Price     money.Money `json:"price"`
}

// Subtotal returns the line total.
func (i LineItem) Subtotal() money.Money {
	return i.Price.MulQty(i.Quantity)
}

// BuyerInfo carries the buyer contact details submitted at the buyer step.
type BuyerInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

// DeliveryAddress is the shipping destination submitted at the delivery step.
type DeliveryAddress struct {
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
}

// ShippingOption is the delivery method chosen at the delivery step.
type ShippingOption struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Price       money.Money `json:"price"`
}

// PaymentSelection is the payment provider chosen at the payment step.
type PaymentSelection struct {
	ProviderID string `json:"provider_id"`
}

// CartSnapshot is the cart state a checkout session is opened from.
type CartSnapshot struct {
	CartID     string
	CustomerID string
	Currency   string
	Items      []LineItem
}

// CheckoutSession is the aggregate root for the multi-step checkout state
// machine: cart → buyer_info → delivery → payment → review → confirmed.
// Line items are a point-in-time copy of the cart, not a live view; the
// session is re-synced explicitly when the cart changes underneath it.
type CheckoutSession struct {
	ID               string            `json:"id"`
	CartID           string            `json:"cart_id"`
	CustomerID       string            `json:"customer_id"`
	CurrentStep      string            `json:"current_step"`
	Status           string            `json:"status"`
	Items            []LineItem        `json:"items"`
	Currency         string            `json:"currency"`
	BuyerInfo        *BuyerInfo        `json:"buyer_info,omitempty"`
	DeliveryAddress  *DeliveryAddress  `json:"delivery_address,omitempty"`
	ShippingOption   *ShippingOption   `json:"shipping_option,omitempty"`
	PaymentSelection *PaymentSelection `json:"payment_selection,omitempty"`
	Subtotal         money.Money       `json:"subtotal"`
	ShippingCost     money.Money       `json:"shipping_cost"`
	Total            money.Money       `json:"total"`
	OrderReference   string            `json:"order_reference,omitempty"`
	Version          int               `json:"version"`
	ExpiresAt        time.Time         `json:"expires_at"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`

	events []Event
}

// NewCheckoutSession opens a session from a cart snapshot.
func NewCheckoutSession(snapshot CartSnapshot, expiry time.Duration) (*CheckoutSession, error) {
	if snapshot.CartID == "" {
		return nil, apperrors.InvalidInput("cart id is required")
	}
	if snapshot.CustomerID == "" {
		return nil, apperrors.InvalidInput("customer id is required")
	}
	if len(snapshot.Items) == 0 {
		return nil, apperrors.InvalidInput("cannot start checkout for an empty cart")
	}
	if err := checkItemCurrency(snapshot.Currency, snapshot.Items); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &CheckoutSession{
		ID:          uuid.New().String(),
		CartID:      snapshot.CartID,
		CustomerID:  snapshot.CustomerID,
		CurrentStep: StepCart,
		Status:      StatusInProgress,
		Items:       append([]LineItem(nil), snapshot.Items...),
		Currency:    snapshot.Currency,
		Version:     0,
		ExpiresAt:   now.Add(expiry),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	session.recalculateTotals()
	session.record(Started{
		SessionID:  session.ID,
		CartID:     session.CartID,
		CustomerID: session.CustomerID,
	})
	return session, nil
}

// IsExpired reports whether the session has passed its expiry time.
func (s *CheckoutSession) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// MarkExpired flips an in-progress session to expired.
func (s *CheckoutSession) MarkExpired() {
	if s.Status == StatusInProgress {
		s.Status = StatusExpired
		s.touch()
	}
}

// ItemCount returns the number of distinct line items.
func (s *CheckoutSession) ItemCount() int {
	return len(s.Items)
}

// SubmitBuyerInfo records the buyer's contact details. Resubmission
// overwrites the previous data without moving the step backwards.
func (s *CheckoutSession) SubmitBuyerInfo(info BuyerInfo) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if info.FullName == "" {
		return apperrors.InvalidInput("full name is required")
	}
	if !strings.Contains(info.Email, "@") {
		return apperrors.InvalidInput("a valid email address is required")
	}

	s.BuyerInfo = &info
	s.advanceTo(StepBuyerInfo)
	s.maybeAdvanceToReview()
	s.touch()
	return nil
}

// SubmitDelivery records the shipping destination and method.
func (s *CheckoutSession) SubmitDelivery(address DeliveryAddress, option ShippingOption) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if address.AddressLine == "" || address.City == "" || address.Country == "" {
		return apperrors.InvalidInput("address line, city and country are required")
	}
	if option.ID == "" {
		return apperrors.InvalidInput("shipping option is required")
	}
	if option.Price.Currency != "" && option.Price.Currency != s.Currency {
		return apperrors.InvalidInput(fmt.Sprintf("shipping price currency %s does not match session currency %s", option.Price.Currency, s.Currency))
	}

	s.DeliveryAddress = &address
	s.ShippingOption = &option
	s.advanceTo(StepDelivery)
	s.maybeAdvanceToReview()
	s.recalculateTotals()
	s.touch()
	return nil
}

// SelectPayment records the chosen payment provider.
func (s *CheckoutSession) SelectPayment(selection PaymentSelection) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if selection.ProviderID == "" {
		return apperrors.InvalidInput("payment provider is required")
	}

	s.PaymentSelection = &selection
	s.advanceTo(StepPayment)
	s.maybeAdvanceToReview()
	s.touch()
	return nil
}

// Confirm finalizes the session. It requires an in-progress session with all
// steps submitted, re-validates every line against current availability, and
// on success assigns an order reference and records the single confirmed
// integration event. All checks happen before any state is written.
func (s *CheckoutSession) Confirm(ctx context.Context, resolver pricing.Resolver) error {
	if s.Status != StatusInProgress {
		return apperrors.InvalidState(fmt.Sprintf("checkout session %s is %s, only in-progress sessions can be confirmed", s.ID, s.Status))
	}
	if len(s.Items) == 0 {
		return apperrors.InvalidState("cannot confirm a checkout session without items")
	}
	if missing := s.missingSteps(); len(missing) > 0 {
		return apperrors.IncompleteCheckout(strings.Join(missing, ", "))
	}

	result, err := pricing.Validate(ctx, resolver, s.Currency, s.lineItems())
	if err != nil {
		return fmt.Errorf("validate checkout items: %w", err)
	}
	if !result.Valid() {
		return result.Err()
	}

	s.Status = StatusConfirmed
	s.CurrentStep = StepConfirmed
	s.OrderReference = newOrderReference()
	s.touch()

	items := make([]ConfirmedItem, len(s.Items))
	for i, item := range s.Items {
		items[i] = ConfirmedItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	s.record(Confirmed{
		SessionID:      s.ID,
		CartID:         s.CartID,
		CustomerID:     s.CustomerID,
		OrderReference: s.OrderReference,
		Items:          items,
	})

	return nil
}

// SyncWithCart replaces the session's line items with the cart's current
// items and recomputes totals, returning the new item count. The session is
// a point-in-time copy, so a concurrent cart edit must be applied explicitly.
func (s *CheckoutSession) SyncWithCart(items []LineItem) (int, error) {
	if err := s.ensureMutable(); err != nil {
		return 0, err
	}

	if err := checkItemCurrency(s.Currency, items); err != nil {
		return 0, err
	}

	s.Items = append([]LineItem(nil), items...)
	s.recalculateTotals()
	s.touch()
	return len(s.Items), nil
}

// MissingSteps lists the step submissions still required before Confirm.
func (s *CheckoutSession) MissingSteps() []string {
	return s.missingSteps()
}

func (s *CheckoutSession) missingSteps() []string {
	var missing []string
	if s.BuyerInfo == nil {
		missing = append(missing, StepBuyerInfo)
	}
	if s.DeliveryAddress == nil || s.ShippingOption == nil {
		missing = append(missing, StepDelivery)
	}
	if s.PaymentSelection == nil {
		missing = append(missing, StepPayment)
	}
	return missing
}

// CollectEvents drains and returns the buffered domain events.
func (s *CheckoutSession) CollectEvents() []Event {
	events := s.events
	s.events = nil
	return events
}

func (s *CheckoutSession) ensureMutable() error {
	if s.Status != StatusInProgress {
		return apperrors.InvalidState(fmt.Sprintf("checkout session %s is %s and can no longer be modified", s.ID, s.Status))
	}
	return nil
}

// advanceTo moves the step forward, never backwards.
func (s *CheckoutSession) advanceTo(step string) {
	if stepRank[step] > stepRank[s.CurrentStep] {
		s.CurrentStep = step
	}
}

// maybeAdvanceToReview moves to the review step once every step submission
// is present, regardless of submission order.
func (s *CheckoutSession) maybeAdvanceToReview() {
	if len(s.missingSteps()) == 0 {
		s.advanceTo(StepReview)
	}
}

func (s *CheckoutSession) recalculateTotals() {
	subtotal := money.Zero(s.Currency)
	for _, item := range s.Items {
		// Line prices are currency-checked on entry, so this cannot fail.
		subtotal, _ = subtotal.Add(item.Subtotal())
	}
	s.Subtotal = subtotal

	s.ShippingCost = money.Zero(s.Currency)
	if s.ShippingOption != nil {
		s.ShippingCost = s.ShippingOption.Price
	}

	s.Total, _ = s.Subtotal.Add(s.ShippingCost)
}

// checkItemCurrency rejects line prices in a currency other than the
// session's. Currency-neutral zero values pass.
func checkItemCurrency(currency string, items []LineItem) error {
	for _, item := range items {
		if item.Price.Currency != "" && item.Price.Currency != currency {
			return apperrors.InvalidInput(fmt.Sprintf("price currency %s for product %s does not match currency %s", item.Price.Currency, item.ProductID, currency))
		}
	}
	return nil
}

func (s *CheckoutSession) lineItems() []pricing.LineItem {
	items := make([]pricing.LineItem, len(s.Items))
	for i, item := range s.Items {
		items[i] = pricing.LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return items
}

func (s *CheckoutSession) record(event Event) {
	s.events = append(s.events, event)
}

func (s *CheckoutSession) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// newOrderReference generates a human-readable order reference.
func newOrderReference() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "ORD-" + time.Now().UTC().Format("20060102") + "-" + id[:8]
}
