// Package event consumes checkout confirmations and applies the translated
// stock reductions.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cartwright-labs/purchaseflow/internal/inventory/translator"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
)

// TopicCheckoutConfirmed is the checkout service's confirmation topic.
const TopicCheckoutConfirmed = "purchase.checkout.confirmed"

// StockReducer is the service interface the consumer drives.
type StockReducer interface {
	ReduceStock(ctx context.Context, productID string, quantity int, reference string) error
}

// Result reports the per-item outcome of processing one confirmation.
type Result struct {
	Succeeded int
	Failed    int
}

// Consumer applies checkout confirmations to stock. Each translated command
// executes independently: one product's failure is logged and counted but
// neither stops the remaining reductions nor unwinds the confirmed checkout.
type Consumer struct {
	service StockReducer
	logger  *slog.Logger
}

// NewConsumer creates a stock-reduction consumer.
func NewConsumer(service StockReducer, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleCheckoutConfirmed is the Kafka handler entry point. Translation
// failures (unknown schema version, malformed payload) are returned so the
// event reaches the dead-letter queue; per-item reduction failures are not.
func (c *Consumer) HandleCheckoutConfirmed(ctx context.Context, event *pkgkafka.Event) error {
	_, err := c.ProcessCheckoutConfirmed(ctx, event)
	return err
}

// ProcessCheckoutConfirmed translates the event and executes each reduction
// command, reporting how many succeeded and failed.
func (c *Consumer) ProcessCheckoutConfirmed(ctx context.Context, event *pkgkafka.Event) (Result, error) {
	commands, err := translator.TranslateCheckoutConfirmed(event)
	if err != nil {
		return Result{}, fmt.Errorf("translate checkout.confirmed event %s: %w", event.EventID, err)
	}

	var result Result
	for _, cmd := range commands {
		if err := c.service.ReduceStock(ctx, cmd.ProductID, cmd.Quantity, cmd.Reference); err != nil {
			result.Failed++
			c.logger.ErrorContext(ctx, "stock reduction failed",
				slog.String("event_id", event.EventID),
				slog.String("product_id", cmd.ProductID),
				slog.Int("quantity", cmd.Quantity),
				slog.String("reference", cmd.Reference),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Succeeded++
	}

	c.logger.InfoContext(ctx, "checkout confirmation applied to stock",
		slog.String("event_id", event.EventID),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}
