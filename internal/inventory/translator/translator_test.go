package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
)

func confirmedEvent(t *testing.T, version int, data any) *pkgkafka.Event {
	t.Helper()
	event, err := pkgkafka.NewVersionedEvent(
		"purchase.checkout.confirmed", "session-1", "checkout_session", "checkout-service", version, data)
	require.NoError(t, err)
	return event
}

func TestTranslateCheckoutConfirmed_V1(t *testing.T) {
	event := confirmedEvent(t, 1, map[string]any{
		"session_id":      "session-1",
		"order_reference": "ORD-20260829-ABCD1234",
		"items": []map[string]any{
			{"product_id": "prod-1", "quantity": 2},
			{"product_id": "prod-2", "quantity": 1},
		},
	})

	commands, err := TranslateCheckoutConfirmed(event)
	require.NoError(t, err)

	require.Len(t, commands, 2)
	assert.Equal(t, ReduceStockCommand{ProductID: "prod-1", Quantity: 2, Reference: "ORD-20260829-ABCD1234"}, commands[0])
	assert.Equal(t, ReduceStockCommand{ProductID: "prod-2", Quantity: 1, Reference: "ORD-20260829-ABCD1234"}, commands[1])
}

func TestTranslateCheckoutConfirmed_EmptyItems(t *testing.T) {
	event := confirmedEvent(t, 1, map[string]any{
		"session_id":      "session-1",
		"order_reference": "ORD-1",
		"items":           []map[string]any{},
	})

	commands, err := TranslateCheckoutConfirmed(event)
	require.NoError(t, err)
	assert.Empty(t, commands)
}

func TestTranslateCheckoutConfirmed_UnknownVersion(t *testing.T) {
	event := confirmedEvent(t, 99, map[string]any{
		"items": []map[string]any{
			{"product_id": "prod-1", "quantity": 2},
		},
	})

	commands, err := TranslateCheckoutConfirmed(event)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedVersion)
	assert.Nil(t, commands)
}

func TestTranslateCheckoutConfirmed_MalformedLine(t *testing.T) {
	event := confirmedEvent(t, 1, map[string]any{
		"order_reference": "ORD-1",
		"items": []map[string]any{
			{"product_id": "", "quantity": 2},
		},
	})

	_, err := TranslateCheckoutConfirmed(event)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
