package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	pkgkafka "github.com/cartwright-labs/purchaseflow/pkg/kafka"
)

// scriptedReducer fails for the product ids in failFor.
type scriptedReducer struct {
	failFor map[string]error
	reduced []string
}

func (r *scriptedReducer) ReduceStock(_ context.Context, productID string, _ int, _ string) error {
	if err, ok := r.failFor[productID]; ok {
		return err
	}
	r.reduced = append(r.reduced, productID)
	return nil
}

func newTestConsumer(reducer *scriptedReducer) *Consumer {
	return NewConsumer(reducer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func confirmedEvent(t *testing.T, version int, items []map[string]any) *pkgkafka.Event {
	t.Helper()
	event, err := pkgkafka.NewVersionedEvent(
		TopicCheckoutConfirmed, "session-1", "checkout_session", "checkout-service", version,
		map[string]any{
			"session_id":      "session-1",
			"order_reference": "ORD-1",
			"items":           items,
		})
	require.NoError(t, err)
	return event
}

func TestProcessCheckoutConfirmed(t *testing.T) {
	reducer := &scriptedReducer{}
	consumer := newTestConsumer(reducer)

	event := confirmedEvent(t, 1, []map[string]any{
		{"product_id": "prod-1", "quantity": 2},
		{"product_id": "prod-2", "quantity": 1},
	})

	result, err := consumer.ProcessCheckoutConfirmed(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, Result{Succeeded: 2, Failed: 0}, result)
	assert.Equal(t, []string{"prod-1", "prod-2"}, reducer.reduced)
}

func TestProcessCheckoutConfirmed_PartialFailure(t *testing.T) {
	reducer := &scriptedReducer{
		failFor: map[string]error{"prod-2": errors.New("insufficient stock")},
	}
	consumer := newTestConsumer(reducer)

	event := confirmedEvent(t, 1, []map[string]any{
		{"product_id": "prod-1", "quantity": 1},
		{"product_id": "prod-2", "quantity": 3},
		{"product_id": "prod-3", "quantity": 2},
	})

	result, err := consumer.ProcessCheckoutConfirmed(context.Background(), event)
	require.NoError(t, err)

	// One item failing never stops the rest.
	assert.Equal(t, Result{Succeeded: 2, Failed: 1}, result)
	assert.Equal(t, []string{"prod-1", "prod-3"}, reducer.reduced)
}

func TestProcessCheckoutConfirmed_UnknownVersion(t *testing.T) {
	reducer := &scriptedReducer{}
	consumer := newTestConsumer(reducer)

	event := confirmedEvent(t, 99, []map[string]any{
		{"product_id": "prod-1", "quantity": 1},
	})

	_, err := consumer.ProcessCheckoutConfirmed(context.Background(), event)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedVersion)
	assert.Empty(t, reducer.reduced)
}

func TestHandleCheckoutConfirmed_ReturnsTranslationError(t *testing.T) {
	reducer := &scriptedReducer{}
	consumer := newTestConsumer(reducer)

	event := confirmedEvent(t, 99, nil)

	err := consumer.HandleCheckoutConfirmed(context.Background(), event)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedVersion)
}

func TestHandleCheckoutConfirmed_SwallowsItemFailures(t *testing.T) {
	reducer := &scriptedReducer{
		failFor: map[string]error{"prod-1": errors.New("postgres down")},
	}
	consumer := newTestConsumer(reducer)

	event := confirmedEvent(t, 1, []map[string]any{
		{"product_id": "prod-1", "quantity": 1},
	})

	assert.NoError(t, consumer.HandleCheckoutConfirmed(context.Background(), event))
}
