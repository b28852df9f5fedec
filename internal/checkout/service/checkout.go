// Package service implements the business logic for the checkout workflow.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cartwright-labs/purchaseflow/internal/checkout/domain"
	"github.com/cartwright-labs/purchaseflow/internal/checkout/payment"
	"github.com/cartwright-labs/purchaseflow/internal/checkout/repository"
	"github.com/cartwright-labs/purchaseflow/internal/pricing"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
)

// DefaultSessionTTL bounds how long an untouched checkout session stays open.
const DefaultSessionTTL = 30 * time.Minute

// EventPublisher publishes checkout events after a successful persistence
// write.
type EventPublisher interface {
	PublishDomainEvents(ctx context.Context, events []domain.Event) error
}

// CheckoutService drives checkout sessions through their steps. Every
// mutation loads the session, applies the change, saves behind a version
// check, and publishes the drained events only after the write succeeds.
type CheckoutService struct {
	repo       repository.CheckoutRepository
	resolver   pricing.Resolver
	providers  *payment.Registry
	publisher  EventPublisher
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewCheckoutService creates a new checkout service. A non-positive
// sessionTTL falls back to DefaultSessionTTL.
func NewCheckoutService(
	repo repository.CheckoutRepository,
	resolver pricing.Resolver,
	providers *payment.Registry,
	publisher EventPublisher,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *CheckoutService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &CheckoutService{
		repo:       repo,
		resolver:   resolver,
		providers:  providers,
		publisher:  publisher,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// StartCheckout opens a checkout session from a cart snapshot. Starting
// checkout twice for the same cart returns the existing in-progress session.
func (s *CheckoutService) StartCheckout(ctx context.Context, snapshot domain.CartSnapshot) (*domain.CheckoutSession, error) {
	existing, err := s.repo.FindActiveByCart(ctx, snapshot.CartID)
	if err == nil {
		if !existing.IsExpired() {
			return existing, nil
		}
		s.expire(ctx, existing)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("find active checkout session: %w", err)
	}

	session, err := domain.NewCheckoutSession(snapshot, s.sessionTTL)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	s.publish(ctx, session)

	s.logger.InfoContext(ctx, "checkout session started",
		slog.String("session_id", session.ID),
		slog.String("cart_id", session.CartID),
		slog.String("customer_id", session.CustomerID),
		slog.Int("item_count", session.ItemCount()),
	)

	return session, nil
}

// GetSession retrieves a checkout session, flipping it to expired first if
// its expiry has passed.
func (s *CheckoutService) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	if session.Status == domain.StatusInProgress && session.IsExpired() {
		s.expire(ctx, session)
	}

	return session, nil
}

// SubmitBuyerInfo records the buyer's contact details on the session.
func (s *CheckoutService) SubmitBuyerInfo(ctx context.Context, sessionID string, info domain.BuyerInfo) (*domain.CheckoutSession, error) {
	return s.mutate(ctx, sessionID, func(session *domain.CheckoutSession) error {
		return session.SubmitBuyerInfo(info)
	})
}

// SubmitDelivery records the shipping destination and method on the session.
func (s *CheckoutService) SubmitDelivery(ctx context.Context, sessionID string, address domain.DeliveryAddress, option domain.ShippingOption) (*domain.CheckoutSession, error) {
	return s.mutate(ctx, sessionID, func(session *domain.CheckoutSession) error {
		return session.SubmitDelivery(address, option)
	})
}

// SelectPayment records the chosen payment provider after checking it is
// registered and currently available.
func (s *CheckoutService) SelectPayment(ctx context.Context, sessionID string, selection domain.PaymentSelection) (*domain.CheckoutSession, error) {
	if _, err := s.providers.Get(selection.ProviderID); err != nil {
		return nil, err
	}

	return s.mutate(ctx, sessionID, func(session *domain.CheckoutSession) error {
		return session.SelectPayment(selection)
	})
}

// Confirm finalizes the session: the aggregate re-checks completeness and
// current availability, the selected provider initiates the payment, and
// only then is the confirmed state persisted and published.
func (s *CheckoutService) Confirm(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	session, err := s.mutableSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	expectedVersion := session.Version
	if err := session.Confirm(ctx, s.resolver); err != nil {
		return nil, err
	}

	provider, err := s.providers.Get(session.PaymentSelection.ProviderID)
	if err != nil {
		return nil, err
	}

	result, err := provider.Initiate(ctx, payment.InitiateInput{
		SessionID:      session.ID,
		OrderReference: session.OrderReference,
		CustomerID:     session.CustomerID,
		Amount:         session.Total,
	})
	if err != nil {
		return nil, fmt.Errorf("initiate payment: %w", err)
	}
	if !result.Succeeded {
		return nil, apperrors.PaymentFailed(result.Reason)
	}

	if err := s.save(ctx, session, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout session confirmed",
		slog.String("session_id", session.ID),
		slog.String("order_reference", session.OrderReference),
		slog.String("payment_ref", result.ProviderRef),
		slog.String("total", session.Total.String()),
	)

	return session, nil
}

// SyncWithCart replaces the line items of the cart's in-progress session
// with the cart's current items and returns the new item count. When no
// session exists for the cart this is a no-op returning zero.
func (s *CheckoutService) SyncWithCart(ctx context.Context, cartID string, items []domain.LineItem) (int, error) {
	session, err := s.repo.FindActiveByCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("find active checkout session: %w", err)
	}

	if session.IsExpired() {
		s.expire(ctx, session)
		return 0, nil
	}

	expectedVersion := session.Version
	count, err := session.SyncWithCart(items)
	if err != nil {
		return 0, err
	}

	if err := s.save(ctx, session, expectedVersion); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "checkout session synced with cart",
		slog.String("session_id", session.ID),
		slog.String("cart_id", cartID),
		slog.Int("item_count", count),
	)

	return count, nil
}

// ExpireStale flips in-progress sessions whose expiry has passed and returns
// how many were expired. Sessions another writer touched concurrently are
// skipped.
func (s *CheckoutService) ExpireStale(ctx context.Context, limit int) (int, error) {
	sessions, err := s.repo.ListExpired(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}

	expired := 0
	for _, session := range sessions {
		expectedVersion := session.Version
		session.MarkExpired()
		ok, err := s.repo.SaveIfVersion(ctx, session, expectedVersion)
		if err != nil {
			return expired, fmt.Errorf("expire session %s: %w", session.ID, err)
		}
		if ok {
			expired++
		}
	}

	return expired, nil
}

// PaymentProviders lists the providers currently available for selection.
func (s *CheckoutService) PaymentProviders() []payment.Provider {
	return s.providers.List()
}

// mutate loads a mutable session, applies fn, and saves behind a version
// check.
func (s *CheckoutService) mutate(ctx context.Context, sessionID string, fn func(*domain.CheckoutSession) error) (*domain.CheckoutSession, error) {
	session, err := s.mutableSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	expectedVersion := session.Version
	if err := fn(session); err != nil {
		return nil, err
	}

	if err := s.save(ctx, session, expectedVersion); err != nil {
		return nil, err
	}

	return session, nil
}

// mutableSession loads a session and flips it to expired first when its
// expiry has passed, so the caller's mutation fails with an invalid-state
// error instead of operating on a dead session.
func (s *CheckoutService) mutableSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	if session.Status == domain.StatusInProgress && session.IsExpired() {
		s.expire(ctx, session)
		return nil, apperrors.InvalidState(fmt.Sprintf("checkout session %s has expired", sessionID))
	}

	return session, nil
}

// save persists the session behind a version check and publishes the drained
// events after the write commits. Publish failures are logged, not returned.
func (s *CheckoutService) save(ctx context.Context, session *domain.CheckoutSession, expectedVersion int) error {
	ok, err := s.repo.SaveIfVersion(ctx, session, expectedVersion)
	if err != nil {
		return fmt.Errorf("save checkout session: %w", err)
	}
	if !ok {
		return apperrors.Conflict("checkout session was modified concurrently, please retry")
	}

	s.publish(ctx, session)
	return nil
}

// expire flips the session to expired and writes it best-effort. A lost
// version race is fine, the periodic sweep picks the session up again.
func (s *CheckoutService) expire(ctx context.Context, session *domain.CheckoutSession) {
	expectedVersion := session.Version
	session.MarkExpired()
	if _, err := s.repo.SaveIfVersion(ctx, session, expectedVersion); err != nil {
		s.logger.WarnContext(ctx, "failed to persist session expiry",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) publish(ctx context.Context, session *domain.CheckoutSession) {
	events := session.CollectEvents()
	if len(events) == 0 {
		return
	}
	if err := s.publisher.PublishDomainEvents(ctx, events); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout events",
			slog.String("session_id", session.ID),
			slog.Int("event_count", len(events)),
			slog.String("error", err.Error()),
		)
	}
}
