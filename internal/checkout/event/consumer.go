package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cartwright-labs/purchaseflow/internal/checkout/domain"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

// TopicCartUpdated is the cart service's full-state event topic this
// consumer follows to keep open sessions in sync with their cart.
const TopicCartUpdated = "purchase.cart.updated"

// cartUpdatedData mirrors the cart service's cart.updated payload. Only the
// fields the session sync needs are decoded.
type cartUpdatedData struct {
	CartID   string         `json:"cart_id"`
	Items    []cartItemData `json:"items"`
	Currency string         `json:"currency"`
	Deleted  bool           `json:"deleted"`
}

type cartItemData struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	PriceAtAddition int64  `json:"price_at_addition"`
}

// SessionSyncer applies a cart's current items to its open checkout session.
type SessionSyncer interface {
	SyncWithCart(ctx context.Context, cartID string, items []domain.LineItem) (int, error)
}

// Consumer keeps in-progress checkout sessions in step with cart.updated
// events. A cart without an open session is a no-op.
type Consumer struct {
	syncer SessionSyncer
	logger *slog.Logger
}

// NewConsumer creates a cart.updated consumer for the checkout service.
func NewConsumer(syncer SessionSyncer, logger *slog.Logger) *Consumer {
	return &Consumer{
		syncer: syncer,
		logger: logger,
	}
}

// HandleCartUpdated re-syncs the cart's open session with the event's items.
// A deleted cart empties the session, so a later confirm fails instead of
// selling stale lines.
func (c *Consumer) HandleCartUpdated(ctx context.Context, event *pkgkafka.Event) error {
	var data cartUpdatedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal cart.updated data: %w", err)
	}

	items := make([]domain.LineItem, 0, len(data.Items))
	if !data.Deleted {
		for _, item := range data.Items {
			items = append(items, domain.LineItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     money.New(item.PriceAtAddition, data.Currency),
			})
		}
	}

	count, err := c.syncer.SyncWithCart(ctx, data.CartID, items)
	if err != nil {
		return fmt.Errorf("sync session with cart %s: %w", data.CartID, err)
	}

	c.logger.DebugContext(ctx, "checkout session synced from cart event",
		slog.String("cart_id", data.CartID),
		slog.Int("item_count", count),
	)

	return nil
}
