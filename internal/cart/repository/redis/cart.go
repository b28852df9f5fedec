package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cartwright-labs/purchaseflow/internal/cart/domain"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
)

const (
	cartKeyPrefix   = "cart:id:"
	activeKeyPrefix = "cart:active:"
)

// CartRepository implements repository.CartRepository on Redis. Carts are
// stored as JSON under their id, with a per-customer pointer to the active
// cart. Versioned saves run under WATCH so two concurrent writers cannot
// both succeed against the same expected version.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a Redis-backed cart repository. Carts expire
// after ttl of inactivity; every save refreshes the clock.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// FindByID retrieves a cart by its id.
func (r *CartRepository) FindByID(ctx context.Context, cartID string) (*domain.ShoppingCart, error) {
	return r.getCart(ctx, cartKeyPrefix+cartID, cartID)
}

// FindActiveByCustomer retrieves the customer's active cart by following the
// active-cart pointer.
func (r *CartRepository) FindActiveByCustomer(ctx context.Context, customerID string) (*domain.ShoppingCart, error) {
	cartID, err := r.client.Get(ctx, activeKeyPrefix+customerID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("active cart", customerID)
		}
		return nil, fmt.Errorf("redis get active cart pointer: %w", err)
	}

	cart, err := r.getCart(ctx, cartKeyPrefix+cartID, cartID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Stale pointer to an expired cart.
			return nil, apperrors.NotFound("active cart", customerID)
		}
		return nil, err
	}
	return cart, nil
}

// Save persists a cart unconditionally and bumps its version.
func (r *CartRepository) Save(ctx context.Context, cart *domain.ShoppingCart) error {
	cart.Version++

	data, err := json.Marshal(cart)
	if err != nil {
		cart.Version--
		return fmt.Errorf("marshal cart: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, cartKeyPrefix+cart.ID, data, r.ttl)
	r.writeActivePointer(ctx, pipe, cart)
	if _, err := pipe.Exec(ctx); err != nil {
		cart.Version--
		return fmt.Errorf("redis save cart: %w", err)
	}

	return nil
}

// SaveIfVersion persists a cart only if the stored version still equals
// expectedVersion. A missing key counts as version 0. On success the cart's
// version is bumped to expectedVersion+1.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart *domain.ShoppingCart, expectedVersion int) (bool, error) {
	key := cartKeyPrefix + cart.ID
	saved := false

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if expectedVersion != 0 {
				return nil
			}
		case err != nil:
			return fmt.Errorf("redis get cart: %w", err)
		default:
			var stored domain.ShoppingCart
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("unmarshal stored cart: %w", err)
			}
			if stored.Version != expectedVersion {
				return nil
			}
		}

		cart.Version = expectedVersion + 1
		payload, err := json.Marshal(cart)
		if err != nil {
			cart.Version = expectedVersion
			return fmt.Errorf("marshal cart: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			r.writeActivePointer(ctx, pipe, cart)
			return nil
		})
		if err != nil {
			cart.Version = expectedVersion
			return err
		}

		saved = true
		return nil
	}

	err := r.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		// The key changed between GET and EXEC; the version check no
		// longer holds, report a conflict.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return saved, nil
}

// Delete removes a cart and its active-cart pointer.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	cart, err := r.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, cartKeyPrefix+cartID)
	pipe.Del(ctx, activeKeyPrefix+cart.CustomerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete cart: %w", err)
	}

	return nil
}

func (r *CartRepository) getCart(ctx context.Context, key, id string) (*domain.ShoppingCart, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", id)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.ShoppingCart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}

	return &cart, nil
}

// writeActivePointer keeps the per-customer active-cart pointer in step with
// the cart's status: set while active, cleared once the cart leaves that
// status so the next get-or-create starts fresh.
func (r *CartRepository) writeActivePointer(ctx context.Context, pipe redis.Pipeliner, cart *domain.ShoppingCart) {
	key := activeKeyPrefix + cart.CustomerID
	if cart.Status == domain.StatusActive {
		pipe.Set(ctx, key, cart.ID, r.ttl)
	} else {
		pipe.Del(ctx, key)
	}
}
