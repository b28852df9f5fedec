package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cartwright-labs/purchaseflow/internal/cart/domain"
	"github.com/cartwright-labs/purchaseflow/internal/cart/repository"
	"github.com/cartwright-labs/purchaseflow/internal/pricing"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// Projector keeps the cart query store in step with cart.updated events.
// At write time it resolves current availability for the cart's products so
// the has_available_item column can serve specification queries precisely.
type Projector struct {
	store    repository.CartQueryStore
	resolver pricing.Resolver
	logger   *slog.Logger
}

// NewProjector creates a projector over the given query store.
func NewProjector(store repository.CartQueryStore, resolver pricing.Resolver, logger *slog.Logger) *Projector {
	return &Projector{
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}

// HandleCartUpdated applies a cart.updated event to the projection.
func (p *Projector) HandleCartUpdated(ctx context.Context, event *pkgkafka.Event) error {
	var data CartUpdatedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal cart.updated data: %w", err)
	}

	if data.Deleted {
		if err := p.store.Remove(ctx, data.CartID); err != nil {
			return fmt.Errorf("remove cart %s from projection: %w", data.CartID, err)
		}
		p.logger.DebugContext(ctx, "cart removed from projection",
			slog.String("cart_id", data.CartID),
		)
		return nil
	}

	cart := rebuildCart(data, event.Timestamp)

	hasAvailable, err := p.anyAvailable(ctx, cart)
	if err != nil {
		// The projection still advances; availability is refreshed on the
		// next cart mutation.
		p.logger.WarnContext(ctx, "availability resolution failed, projecting as unavailable",
			slog.String("cart_id", data.CartID),
			slog.String("error", err.Error()),
		)
		hasAvailable = false
	}

	if err := p.store.Upsert(ctx, cart, hasAvailable, data.MarketingOptIn); err != nil {
		return fmt.Errorf("project cart %s: %w", data.CartID, err)
	}

	p.logger.DebugContext(ctx, "cart projected",
		slog.String("cart_id", data.CartID),
		slog.Int("version", data.Version),
	)

	return nil
}

func (p *Projector) anyAvailable(ctx context.Context, cart *domain.ShoppingCart) (bool, error) {
	if cart.IsEmpty() {
		return false, nil
	}

	resolutions, err := p.resolver.ResolveMany(ctx, productIDs(cart))
	if err != nil {
		return false, err
	}

	for _, res := range resolutions {
		if res.Available {
			return true, nil
		}
	}
	return false, nil
}

func productIDs(cart *domain.ShoppingCart) []string {
	ids := make([]string, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}
	return ids
}

// rebuildCart materializes an aggregate snapshot from the event payload for
// the projection write.
func rebuildCart(data CartUpdatedData, at time.Time) *domain.ShoppingCart {
	items := make([]domain.Item, len(data.Items))
	for i, item := range data.Items {
		items[i] = domain.Item{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtAddition: money.New(item.PriceAtAddition, data.Currency),
		}
	}

	return &domain.ShoppingCart{
		ID:             data.CartID,
		CustomerID:     data.CustomerID,
		Items:          items,
		Currency:       data.Currency,
		Status:         data.Status,
		MarketingOptIn: data.MarketingOptIn,
		Version:        data.Version,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}
