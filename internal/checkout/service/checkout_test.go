package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cartwright-labs/purchaseflow/internal/checkout/domain"
	"github.com/cartwright-labs/purchaseflow/internal/checkout/payment"
	"github.com/cartwright-labs/purchaseflow/internal/pricing"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// ============================================================
// Mocks
// ============================================================

type mockCheckoutRepository struct {
	mock.Mock
}

func (m *mockCheckoutRepository) Create(ctx context.Context, session *domain.CheckoutSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockCheckoutRepository) FindByID(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockCheckoutRepository) FindActiveByCart(ctx context.Context, cartID string) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockCheckoutRepository) SaveIfVersion(ctx context.Context, session *domain.CheckoutSession, expectedVersion int) (bool, error) {
	args := m.Called(ctx, session, expectedVersion)
	return args.Bool(0), args.Error(1)
}

func (m *mockCheckoutRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.CheckoutSession, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CheckoutSession), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishDomainEvents(ctx context.Context, events []domain.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// fakeProvider is a scriptable payment provider.
type fakeProvider struct {
	id        string
	available bool
	result    payment.Result
	err       error
	initiated int
}

func (p *fakeProvider) ID() string          { return p.id }
func (p *fakeProvider) DisplayName() string { return p.id }
func (p *fakeProvider) Available() bool     { return p.available }

func (p *fakeProvider) Initiate(context.Context, payment.InitiateInput) (payment.Result, error) {
	p.initiated++
	return p.result, p.err
}

func (p *fakeProvider) Confirm(_ context.Context, ref string) (payment.Result, error) {
	return payment.Result{Succeeded: true, ProviderRef: ref}, nil
}

func (p *fakeProvider) Cancel(_ context.Context, ref string) (payment.Result, error) {
	return payment.Result{Succeeded: true, ProviderRef: ref}, nil
}

// ============================================================
// Fixture
// ============================================================

type fixture struct {
	repo      *mockCheckoutRepository
	publisher *mockPublisher
	resolver  *pricing.StaticResolver
	provider  *fakeProvider
	service   *CheckoutService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := new(mockCheckoutRepository)
	publisher := new(mockPublisher)
	resolver := pricing.NewStaticResolver("EUR",
		pricing.Resolution{ProductID: "prod-1", Price: eur(1000), Available: true, Stock: 10},
		pricing.Resolution{ProductID: "prod-2", Price: eur(500), Available: true, Stock: 10},
	)
	provider := &fakeProvider{
		id:        "mock",
		available: true,
		result:    payment.Result{Succeeded: true, ProviderRef: "pay-1"},
	}

	svc := NewCheckoutService(
		repo,
		resolver,
		payment.NewRegistry(provider),
		publisher,
		30*time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	return &fixture{repo: repo, publisher: publisher, resolver: resolver, provider: provider, service: svc}
}

func eur(amount int64) money.Money {
	return money.New(amount, "EUR")
}

func cartSnapshot() domain.CartSnapshot {
	return domain.CartSnapshot{
		CartID:     "cart-1",
		CustomerID: "cust-1",
		Currency:   "EUR",
		Items: []domain.LineItem{
			{ProductID: "prod-1", Quantity: 2, Price: eur(1000)},
			{ProductID: "prod-2", Quantity: 1, Price: eur(500)},
		},
	}
}

// storedSession builds a persisted-looking session at the given step.
func storedSession(t *testing.T, step string) *domain.CheckoutSession {
	t.Helper()

	session, err := domain.NewCheckoutSession(cartSnapshot(), 30*time.Minute)
	require.NoError(t, err)
	session.CollectEvents()
	session.Version = 1

	if step == domain.StepCart {
		return session
	}
	require.NoError(t, session.SubmitBuyerInfo(domain.BuyerInfo{FullName: "Ada Lovelace", Email: "ada@example.com"}))
	if step == domain.StepBuyerInfo {
		return session
	}
	require.NoError(t, session.SubmitDelivery(
		domain.DeliveryAddress{AddressLine: "1 Analytical Way", City: "London", Country: "GB"},
		domain.ShippingOption{ID: "standard", DisplayName: "Standard", Price: eur(300)},
	))
	if step == domain.StepDelivery {
		return session
	}
	require.NoError(t, session.SelectPayment(domain.PaymentSelection{ProviderID: "mock"}))
	return session
}

// ============================================================
// StartCheckout
// ============================================================

func TestStartCheckout(t *testing.T) {
	f := newFixture(t)

	f.repo.On("FindActiveByCart", mock.Anything, "cart-1").Return(nil, apperrors.ErrNotFound)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.CheckoutSession")).Return(nil)
	f.publisher.On("PublishDomainEvents", mock.Anything, mock.MatchedBy(func(events []domain.Event) bool {
		if len(events) != 1 {
			return false
		}
		started, ok := events[0].(domain.Started)
		return ok && started.CartID == "cart-1"
	})).Return(nil)

	session, err := f.service.StartCheckout(context.Background(), cartSnapshot())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInProgress, session.Status)
	assert.Equal(t, domain.StepCart, session.CurrentStep)
	f.repo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestStartCheckout_ExistingSession(t *testing.T) {
	f := newFixture(t)
	existing := storedSession(t, domain.StepBuyerInfo)

	f.repo.On("FindActiveByCart", mock.Anything, "cart-1").Return(existing, nil)

	session, err := f.service.StartCheckout(context.Background(), cartSnapshot())
	require.NoError(t, err)

	assert.Same(t, existing, session)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStartCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	f.repo.On("FindActiveByCart", mock.Anything, "cart-1").Return(nil, apperrors.ErrNotFound)

	snap := cartSnapshot()
	snap.Items = nil
	_, err := f.service.StartCheckout(context.Background(), snap)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// ============================================================
// Step submissions
// ============================================================

func TestSubmitBuyerInfo(t *testing.T) {
	f := newFixture(t)
	session := storedSession(t, domain.StepCart)

	f.repo.On("FindByID", mock.Anything, session.ID).Return(session, nil)
	f.repo.On("SaveIfVersion", mock.Anything, session, 1).Return(true, nil)

	updated, err := f.service.SubmitBuyerInfo(context.Background(), session.ID, domain.BuyerInfo{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StepBuyerInfo, updated.CurrentStep)
	f.repo.AssertExpectations(t)
}

func TestSubmitBuyerInfo_VersionConflict(t *testing.T) {
	f := newFixture(t)
	session := storedSession(t, domain.StepCart)

	f.repo.On("FindByID", mock.Anything, session.ID).Return(session, nil)
	f.repo.On("SaveIfVersion", mock.Anything, session, 1).Return(false, nil)

	_, err := f.service.SubmitBuyerInfo(context.Background(), session.ID, domain.BuyerInfo{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestSelectPayment_UnknownProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SelectPayment(context.Background(), "session-1", domain.PaymentSelection{ProviderID: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestSelectPayment_UnavailableProvider(t *testing.T) {
	f := newFixture(t)
	f.provider.available = false

	_, err := f.service.SelectPayment(context.Background(), "session-1", domain.PaymentSelection{ProviderID: "mock"})
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestMutate_ExpiredSession(t *testing.T) {
	f := newFixture(t)
	session := storedSession(t, domain.StepCart)
	session.ExpiresAt = time.Now().UTC().Add(-time.Minute)

	f.repo.On("FindByID", mock.Anything, session.ID).Return(session, nil)
	f.repo.On("SaveIfVersion", mock.Anything, session, 1).Return(true, nil)

	_, err := f.service.SubmitBuyerInfo(context.Background(), session.ID, domain.BuyerInfo{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Equal(t, domain.StatusExpired, session.Status)
}

// ============================================================
// Confirm
// ============================================================

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	session := storedSession(t, domain.StepReview)

	f.repo.On("FindByID", mock.Anything, session.ID).Return(session, nil)
	f.repo.On("SaveIfVersion", mock.Anything, session, 1).Return(true, nil)
	f.publisher.On("PublishDomainEvents", mock.Anything, mock.MatchedBy(func(events []domain.Event) bool {
		if len(events) != 1 {
			return false
		}
		confirmed, ok := events[0].(domain.Confirmed)
		return ok && confirmed.OrderReference != "" && len(confirmed.Items) == 2
	})).Return(nil)

	confirmed, err := f.service.Confirm(context.Background(), session.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	assert.Equal(t, 1, f.provider.initiated)
	f.repo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestConfirm_IncompleteSession(t *testing.T) {
	f := newFixture(t)
	session := storedSession(t, domain.StepBuyerInfo)

	f.repo.On("FindByID", mock.Anything, session.ID).Return(session, nil)

	_, err := f.service.Confirm(context.Background(), session.ID)
	assert.ErrorIs(t, err, apperrors.ErrIncompleteCheckout)
	assert.Equal(t, 0, f.provider.initiated)
	f.repo.AssertNotCalled(t, "SaveIfVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirm_ValidationFailure(t *testing.T) {
	f := newFixture(t)
	session := storedSession(t, domain.StepReview)
	f.resolver.Set(pricing.Resolution{ProductID: "prod-2", Price: eur(500), Available: false})

	f.repo.On("FindByID", mock.Anything, session.ID).Return(session, nil)

	_, err := f.service.Confirm(context.Background(), session.ID)
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)

	issues := apperrors.IssuesFromError(err)
	require.Len(t, issues, 1)
	assert.Equal(t, "prod-2", issues[0].ProductID)

	assert.Equal(t, domain.StatusInProgress, session.Status)
	assert.Equal(t, 0, f.provider.initiated)
	f.repo.AssertNotCalled(t, "SaveIfVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirm_PaymentDeclined(t *testing.T) {
	f := newFixture(t)
	session := storedSession(t, domain.StepReview)
	f.provider.result = payment.Result{Succeeded: false, Reason: "card declined"}

	f.repo.On("FindByID", mock.Anything, session.ID).Return(session, nil)

	_, err := f.service.Confirm(context.Background(), session.ID)
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)

	// The confirmed state is never persisted when the payment is declined.
	f.repo.AssertNotCalled(t, "SaveIfVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirm_PublishFailureDoesNotFailConfirmation(t *testing.T) {
	f := newFixture(t)
	session := storedSession(t, domain.StepReview)

	f.repo.On("FindByID", mock.Anything, session.ID).Return(session, nil)
	f.repo.On("SaveIfVersion", mock.Anything, session, 1).Return(true, nil)
	f.publisher.On("PublishDomainEvents", mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	confirmed, err := f.service.Confirm(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
}

// ============================================================
// SyncWithCart
// ============================================================

func TestSyncWithCart(t *testing.T) {
	f := newFixture(t)
	session := storedSession(t, domain.StepBuyerInfo)

	f.repo.On("FindActiveByCart", mock.Anything, "cart-1").Return(session, nil)
	f.repo.On("SaveIfVersion", mock.Anything, session, 1).Return(true, nil)

	count, err := f.service.SyncWithCart(context.Background(), "cart-1", []domain.LineItem{
		{ProductID: "prod-1", Quantity: 5, Price: eur(1000)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	assert.True(t, session.Subtotal.Equal(eur(5000)))
	f.repo.AssertExpectations(t)
}

func TestSyncWithCart_NoSession(t *testing.T) {
	f := newFixture(t)

	f.repo.On("FindActiveByCart", mock.Anything, "cart-1").Return(nil, apperrors.ErrNotFound)

	count, err := f.service.SyncWithCart(context.Background(), "cart-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	f.repo.AssertNotCalled(t, "SaveIfVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncWithCart_ExpiredSession(t *testing.T) {
	f := newFixture(t)
	session := storedSession(t, domain.StepBuyerInfo)
	session.ExpiresAt = time.Now().UTC().Add(-time.Minute)

	f.repo.On("FindActiveByCart", mock.Anything, "cart-1").Return(session, nil)
	f.repo.On("SaveIfVersion", mock.Anything, session, 1).Return(true, nil)

	count, err := f.service.SyncWithCart(context.Background(), "cart-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, domain.StatusExpired, session.Status)
}

// ============================================================
// ExpireStale
// ============================================================

func TestExpireStale(t *testing.T) {
	f := newFixture(t)

	first := storedSession(t, domain.StepCart)
	second := storedSession(t, domain.StepCart)

	f.repo.On("ListExpired", mock.Anything, mock.AnythingOfType("time.Time"), 50).
		Return([]*domain.CheckoutSession{first, second}, nil)
	f.repo.On("SaveIfVersion", mock.Anything, first, 1).Return(true, nil)
	// A concurrent writer beat us to the second session.
	f.repo.On("SaveIfVersion", mock.Anything, second, 1).Return(false, nil)

	expired, err := f.service.ExpireStale(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, 1, expired)
	assert.Equal(t, domain.StatusExpired, first.Status)
	f.repo.AssertExpectations(t)
}
