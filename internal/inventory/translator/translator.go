// Package translator is the inventory context's anti-corruption layer: it
// maps the checkout service's confirmed events onto inventory commands,
// keyed by the event's schema version. Translation is pure; side effects
// belong to the consumer executing the commands.
package translator

import (
	"fmt"

	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
)

// ReduceStockCommand orders one product's stock reduced for a confirmed
// purchase. Reference carries the order reference for the movement record.
type ReduceStockCommand struct {
	ProductID string
	Quantity  int
	Reference string
}

// checkoutConfirmedV1 is the version-1 wire shape of checkout.confirmed.
type checkoutConfirmedV1 struct {
	SessionID      string `json:"session_id"`
	OrderReference string `json:"order_reference"`
	Items          []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

// TranslateCheckoutConfirmed maps a checkout.confirmed event into one
// reduce-stock command per purchased line, in the event's item order. An
// unrecognized schema version is an explicit error, never a guessed shape.
func TranslateCheckoutConfirmed(event *pkgkafka.Event) ([]ReduceStockCommand, error) {
	switch event.SchemaVersion {
	case 1:
		return translateV1(event)
	default:
		return nil, apperrors.UnsupportedEventVersion(event.EventType, event.SchemaVersion)
	}
}

func translateV1(event *pkgkafka.Event) ([]ReduceStockCommand, error) {
	var data checkoutConfirmedV1
	if err := event.UnmarshalData(&data); err != nil {
		return nil, fmt.Errorf("unmarshal checkout.confirmed v1 data: %w", err)
	}

	commands := make([]ReduceStockCommand, 0, len(data.Items))
	for _, item := range data.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf(
				"malformed checkout.confirmed line: product %q quantity %d", item.ProductID, item.Quantity))
		}
		commands = append(commands, ReduceStockCommand{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Reference: data.OrderReference,
		})
	}

	return commands, nil
}
