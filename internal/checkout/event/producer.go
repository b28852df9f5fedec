// Package event wires the checkout service to Kafka: publishing checkout
// events and consuming cart updates to keep open sessions in sync.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cartwright-labs/purchaseflow/internal/checkout/domain"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
)

// Kafka topic constants for checkout events.
const (
	TopicCheckoutStarted   = "purchase.checkout.started"
	TopicCheckoutConfirmed = "purchase.checkout.confirmed"
)

// Aggregate type constant.
const AggregateTypeCheckout = "checkout_session"

// Source identifier for events originating from the checkout service.
const SourceCheckoutService = "checkout-service"

// CheckoutStartedData is the payload for a checkout.started event.
type CheckoutStartedData struct {
	SessionID  string `json:"session_id"`
	CartID     string `json:"cart_id"`
	CustomerID string `json:"customer_id"`
}

// CheckoutConfirmedData is the payload for a checkout.confirmed event, the
// integration event the stock-reduction consumer translates into commands.
type CheckoutConfirmedData struct {
	SessionID      string              `json:"session_id"`
	CartID         string              `json:"cart_id"`
	CustomerID     string              `json:"customer_id"`
	OrderReference string              `json:"order_reference"`
	Items          []ConfirmedItemData `json:"items"`
}

// ConfirmedItemData is one purchased line within a checkout.confirmed event.
type ConfirmedItemData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Producer publishes checkout events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the checkout service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishDomainEvents publishes the drained domain events of a checkout
// mutation, one Kafka event per domain event in order. It is only called
// after the session's persistence write has succeeded.
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
		topic     string
		sessionID string
		data      any
	)

	switch e := ev.(type) {
	case domain.Started:
		topic = TopicCheckoutStarted
		sessionID = e.SessionID
		data = CheckoutStartedData{
			SessionID:  e.SessionID,
			CartID:     e.CartID,
			CustomerID: e.CustomerID,
		}
	case domain.Confirmed:
		topic = TopicCheckoutConfirmed
		sessionID = e.SessionID
		items := make([]ConfirmedItemData, len(e.Items))
		for i, item := range e.Items {
			items[i] = ConfirmedItemData{ProductID: item.ProductID, Quantity: item.Quantity}
		}
		data = CheckoutConfirmedData{
			SessionID:      e.SessionID,
			CartID:         e.CartID,
			CustomerID:     e.CustomerID,
			OrderReference: e.OrderReference,
			Items:          items,
		}
	default:
		return fmt.Errorf("unknown checkout domain event %T", ev)
	}

	kafkaEvent, err := pkgkafka.NewEvent(topic, sessionID, AggregateTypeCheckout, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, kafkaEvent); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published checkout event",
		slog.String("topic", topic),
		slog.String("session_id", sessionID),
	)

	return nil
}
