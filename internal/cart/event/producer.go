package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cartwright-labs/purchaseflow/internal/cart/domain"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
)

// Kafka topic constants for cart events.
const (
	TopicCartCheckedOut      = "purchase.cart.checked_out"
	TopicCartItemAdded       = "purchase.cart.item_added"
	TopicCartQuantityChanged = "purchase.cart.quantity_changed"
	TopicCartProductRemoved  = "purchase.cart.product_removed"
	TopicCartUpdated         = "purchase.cart.updated"
)

// Aggregate type constant.
const AggregateTypeCart = "cart"

// Source identifier for events originating from the cart service.
const SourceCartService = "cart-service"

// CartCheckedOutData is the payload for a cart.checked_out event. ItemCount
// counts distinct line items, not total quantity.
type CartCheckedOutData struct {
	CartID      string `json:"cart_id"`
	CustomerID  string `json:"customer_id"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
	ItemCount   int    `json:"item_count"`
}

// CartItemAddedData is the payload for a cart.item_added event. Quantity is
// the added delta.
type CartItemAddedData struct {
	CartID     string `json:"cart_id"`
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

// CartQuantityChangedData is the payload for a cart.quantity_changed event.
// Quantity is the line's new value.
type CartQuantityChangedData struct {
	CartID     string `json:"cart_id"`
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

// CartProductRemovedData is the payload for a cart.product_removed event.
type CartProductRemovedData struct {
	CartID     string `json:"cart_id"`
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
}

// CartUpdatedData is the full-state payload for a cart.updated event,
// consumed by the cart projector and the checkout session sync consumer.
type CartUpdatedData struct {
	CartID         string         `json:"cart_id"`
	CustomerID     string         `json:"customer_id"`
	Status         string         `json:"status"`
	Items          []CartItemData `json:"items"`
	ItemCount      int            `json:"item_count"`
	TotalAmount    int64          `json:"total_amount"`
	Currency       string         `json:"currency"`
	MarketingOptIn bool           `json:"marketing_opt_in"`
	Version        int            `json:"version"`
	Deleted        bool           `json:"deleted,omitempty"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	PriceAtAddition int64  `json:"price_at_addition"`
}

// Producer publishes cart events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the cart service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishDomainEvents publishes the drained domain events of a cart
// mutation, one Kafka event per domain event in order. It is only called
// after the aggregate's persistence write has succeeded.
func (p *Producer) PublishDomainEvents(ctx context.Context, events []domain.Event) error {
	for _, ev := range events {
		if err := p.publishDomainEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (p *Producer) publishDomainEvent(ctx context.Context, ev domain.Event) error {
	var (
		topic  string
		cartID string
		data   any
	)

	switch e := ev.(type) {
	case domain.ItemAdded:
		topic = TopicCartItemAdded
		cartID = e.CartID
		data = CartItemAddedData{
			CartID:     e.CartID,
			CustomerID: e.CustomerID,
			ProductID:  e.ProductID,
			Quantity:   e.Quantity,
		}
	case domain.QuantityChanged:
		topic = TopicCartQuantityChanged
		cartID = e.CartID
		data = CartQuantityChangedData{
			CartID:     e.CartID,
			CustomerID: e.CustomerID,
			ProductID:  e.ProductID,
			Quantity:   e.Quantity,
		}
	case domain.ProductRemoved:
		topic = TopicCartProductRemoved
		cartID = e.CartID
		data = CartProductRemovedData{
			CartID:     e.CartID,
			CustomerID: e.CustomerID,
			ProductID:  e.ProductID,
		}
	case domain.CheckedOut:
		topic = TopicCartCheckedOut
		cartID = e.CartID
		data = CartCheckedOutData{
			CartID:      e.CartID,
			CustomerID:  e.CustomerID,
			TotalAmount: e.Total.Amount,
			Currency:    e.Total.Currency,
			ItemCount:   e.ItemCount,
		}
	default:
		return fmt.Errorf("unknown cart domain event %T", ev)
	}

	kafkaEvent, err := pkgkafka.NewEvent(topic, cartID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, kafkaEvent); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published cart event",
		slog.String("topic", topic),
		slog.String("cart_id", cartID),
	)

	return nil
}

// PublishCartUpdated publishes the full-state cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.ShoppingCart) error {
	items := make([]CartItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemData{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtAddition: item.PriceAtAddition.Amount,
		}
	}

	data := CartUpdatedData{
		CartID:         cart.ID,
		CustomerID:     cart.CustomerID,
		Status:         cart.Status,
		Items:          items,
		ItemCount:      cart.ItemCount(),
		TotalAmount:    cart.Total().Amount,
		Currency:       cart.Currency,
		MarketingOptIn: cart.MarketingOptIn,
		Version:        cart.Version,
	}

	event, err := pkgkafka.NewEvent(TopicCartUpdated, cart.ID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	return nil
}

// PublishCartDeleted publishes a cart.updated tombstone so projections drop
// the cart.
func (p *Producer) PublishCartDeleted(ctx context.Context, cartID, customerID string) error {
	data := CartUpdatedData{
		CartID:     cartID,
		CustomerID: customerID,
		Deleted:    true,
	}

	event, err := pkgkafka.NewEvent(TopicCartUpdated, cartID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create cart.updated tombstone: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated tombstone: %w", err)
	}

	return nil
}
