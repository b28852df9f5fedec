package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cartwright-labs/purchaseflow/internal/cart/domain"
	"github.com/cartwright-labs/purchaseflow/internal/cart/repository"
	"github.com/cartwright-labs/purchaseflow/internal/pricing"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// EventPublisher publishes cart events after a successful persistence write.
type EventPublisher interface {
	PublishDomainEvents(ctx context.Context, events []domain.Event) error
	PublishCartUpdated(ctx context.Context, cart *domain.ShoppingCart) error
	PublishCartDeleted(ctx context.Context, cartID, customerID string) error
}

// CartService implements the business logic for cart operations. Every
// mutation follows the same shape: load the aggregate, mutate it, save with a
// version check, and publish the drained events only after the write succeeds.
type CartService struct {
	repo       repository.CartRepository
	queryStore repository.CartQueryStore
	resolver   pricing.Resolver
	publisher  EventPublisher
	logger     *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	repo repository.CartRepository,
	queryStore repository.CartQueryStore,
	resolver pricing.Resolver,
	publisher EventPublisher,
	logger *slog.Logger,
) *CartService {
	return &CartService{
		repo:       repo,
		queryStore: queryStore,
		resolver:   resolver,
		publisher:  publisher,
		logger:     logger,
	}
}

// GetOrCreateActiveCart returns the customer's active cart, creating an
// empty one if none exists. The empty cart is not persisted until its first
// mutation.
func (s *CartService) GetOrCreateActiveCart(ctx context.Context, customerID string) (*domain.ShoppingCart, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("customer id is required")
	}

	cart, err := s.repo.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewShoppingCart(customerID, money.DefaultCurrency), nil
		}
		return nil, fmt.Errorf("find active cart: %w", err)
	}

	return cart, nil
}

// GetCart retrieves a cart by id.
func (s *CartService) GetCart(ctx context.Context, cartID string) (*domain.ShoppingCart, error) {
	if cartID == "" {
		return nil, apperrors.InvalidInput("cart id is required")
	}

	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddItem adds quantity of a product to the customer's active cart at the
// given price snapshot.
func (s *CartService) AddItem(ctx context.Context, customerID, productID string, quantity int, price money.Money) (*domain.ShoppingCart, error) {
	cart, err := s.GetOrCreateActiveCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	expectedVersion := cart.Version
	if err := cart.AddItem(productID, quantity, price); err != nil {
		return nil, err
	}

	if err := s.saveAndPublish(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("cart_id", cart.ID),
		slog.String("customer_id", customerID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// RemoveItem removes a product from the customer's active cart.
func (s *CartService) RemoveItem(ctx context.Context, customerID, productID string) (*domain.ShoppingCart, error) {
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	expectedVersion := cart.Version
	if err := cart.RemoveItem(productID); err != nil {
		return nil, err
	}

	if err := s.saveAndPublish(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("cart_id", cart.ID),
		slog.String("product_id", productID),
	)

	return cart, nil
}

// ChangeQuantity sets a line's quantity in the customer's active cart; 0
// removes the line.
func (s *CartService) ChangeQuantity(ctx context.Context, customerID, productID string, quantity int) (*domain.ShoppingCart, error) {
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	expectedVersion := cart.Version
	if err := cart.ChangeQuantity(productID, quantity); err != nil {
		return nil, err
	}

	if err := s.saveAndPublish(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item quantity changed",
		slog.String("cart_id", cart.ID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// Merge folds the source cart's items into the customer's active cart, e.g.
// an anonymous session cart after sign-in. Returns the updated cart and the
// number of distinct products touched.
func (s *CartService) Merge(ctx context.Context, customerID, sourceCartID string) (*domain.ShoppingCart, int, error) {
	if sourceCartID == "" {
		return nil, 0, apperrors.InvalidInput("source cart id is required")
	}

	source, err := s.repo.FindByID(ctx, sourceCartID)
	if err != nil {
		return nil, 0, fmt.Errorf("find source cart: %w", err)
	}

	target, err := s.GetOrCreateActiveCart(ctx, customerID)
	if err != nil {
		return nil, 0, err
	}
	if target.ID == source.ID {
		return nil, 0, apperrors.InvalidInput("cannot merge a cart into itself")
	}

	expectedVersion := target.Version
	merged, err := target.Merge(source)
	if err != nil {
		return nil, 0, err
	}
	if merged == 0 {
		return target, 0, nil
	}

	if err := s.saveAndPublish(ctx, target, expectedVersion); err != nil {
		return nil, 0, err
	}

	s.logger.InfoContext(ctx, "carts merged",
		slog.String("target_cart_id", target.ID),
		slog.String("source_cart_id", source.ID),
		slog.Int("merged_count", merged),
	)

	return target, merged, nil
}

// Checkout validates the customer's active cart against current availability
// and transitions it to checked-out. Validation failures carry one issue per
// offending product.
func (s *CartService) Checkout(ctx context.Context, customerID string) (*domain.ShoppingCart, error) {
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	result, err := cart.ValidateForCheckout(ctx, s.resolver)
	if err != nil {
		return nil, fmt.Errorf("validate cart for checkout: %w", err)
	}
	if !result.Valid() {
		return nil, result.Err()
	}

	expectedVersion := cart.Version
	if err := cart.Checkout(); err != nil {
		return nil, err
	}

	if err := s.saveAndPublish(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart checked out",
		slog.String("cart_id", cart.ID),
		slog.String("customer_id", customerID),
		slog.Int("item_count", cart.ItemCount()),
		slog.String("total", cart.Total().String()),
	)

	return cart, nil
}

// SetMarketingOptIn records the cart owner's marketing consent snapshot.
func (s *CartService) SetMarketingOptIn(ctx context.Context, customerID string, optIn bool) (*domain.ShoppingCart, error) {
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart.MarketingOptIn == optIn {
		return cart, nil
	}

	expectedVersion := cart.Version
	cart.MarketingOptIn = optIn

	if err := s.saveAndPublish(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	return cart, nil
}

// EnrichCart builds the read model pairing the customer's active cart with
// current prices and availability.
func (s *CartService) EnrichCart(ctx context.Context, customerID string) (*domain.EnrichedCart, error) {
	cart, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	enriched, err := domain.Enrich(ctx, cart, s.resolver)
	if err != nil {
		return nil, fmt.Errorf("enrich cart: %w", err)
	}
	return enriched, nil
}

// FindCarts answers a specification query against the cart projection.
func (s *CartService) FindCarts(ctx context.Context, spec domain.Specification, page repository.Page) ([]*domain.ShoppingCart, error) {
	carts, err := s.queryStore.FindBySpecification(ctx, spec, page)
	if err != nil {
		return nil, fmt.Errorf("find carts by specification: %w", err)
	}
	return carts, nil
}

func (s *CartService) activeCart(ctx context.Context, customerID string) (*domain.ShoppingCart, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("customer id is required")
	}

	cart, err := s.repo.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("find active cart: %w", err)
	}
	return cart, nil
}

// saveAndPublish persists the cart behind a version check and, only after
// the write succeeds, publishes the drained domain events followed by the
// full-state cart.updated event. Publish failures are logged, not returned:
// the mutation has committed and the projection catches up on the next event.
func (s *CartService) saveAndPublish(ctx context.Context, cart *domain.ShoppingCart, expectedVersion int) error {
	ok, err := s.repo.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return apperrors.Conflict("cart was modified concurrently, please retry")
	}

	events := cart.CollectEvents()
	if err := s.publisher.PublishDomainEvents(ctx, events); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart domain events",
			slog.String("cart_id", cart.ID),
			slog.Int("event_count", len(events)),
			slog.String("error", err.Error()),
		)
	}
	if err := s.publisher.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("cart_id", cart.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}
