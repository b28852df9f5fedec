// Package postgres implements the checkout session store on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cartwright-labs/purchaseflow/internal/checkout/domain"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
	apperrors "github.com/cartwright-labs/purchaseflow/pkg/errors"
	"github.com/cartwright-labs/purchaseflow/pkg/money"
)

const sessionColumns = `id, cart_id, customer_id, current_step, status, items, currency,
	buyer_info, delivery_address, shipping_option, payment_selection,
	subtotal_amount, shipping_amount, total_amount,
	order_reference, version, expires_at, created_at, updated_at`

// CheckoutRepository is a PostgreSQL-backed checkout session store.
type CheckoutRepository struct {
	db database.DBTX
}

// NewCheckoutRepository creates a checkout repository on the given querier.
func NewCheckoutRepository(db database.DBTX) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

// Create inserts a new session and bumps its version to 1.
func (r *CheckoutRepository) Create(ctx context.Context, session *domain.CheckoutSession) error {
	cols, err := marshalSession(session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO checkout_sessions (
			id, cart_id, customer_id, current_step, status, items, currency,
			buyer_info, delivery_address, shipping_option, payment_selection,
			subtotal_amount, shipping_amount, total_amount,
			order_reference, version, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18, $19
		)`

	_, err = r.db.Exec(ctx, query,
		session.ID,
		session.CartID,
		session.CustomerID,
		session.CurrentStep,
		session.Status,
		cols.items,
		session.Currency,
		cols.buyerInfo,
		cols.deliveryAddress,
		cols.shippingOption,
		cols.paymentSelection,
		session.Subtotal.Amount,
		session.ShippingCost.Amount,
		session.Total.Amount,
		nullableString(session.OrderReference),
		1,
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}

	session.Version = 1
	return nil
}

// FindByID retrieves a session by its ID.
func (r *CheckoutRepository) FindByID(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE id = $1`

	session, err := scanSession(r.db.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("checkout_session", sessionID)
		}
		return nil, err
	}
	return session, nil
}

// FindActiveByCart retrieves the in-progress session opened from a cart.
func (r *CheckoutRepository) FindActiveByCart(ctx context.Context, cartID string) (*domain.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM checkout_sessions
		WHERE cart_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`

	session, err := scanSession(r.db.QueryRow(ctx, query, cartID, domain.StatusInProgress))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("checkout_session for cart", cartID)
		}
		return nil, err
	}
	return session, nil
}

// SaveIfVersion writes the session only when the stored row still carries
// expectedVersion. Returns false with a nil error on a version mismatch.
func (r *CheckoutRepository) SaveIfVersion(ctx context.Context, session *domain.CheckoutSession, expectedVersion int) (bool, error) {
	cols, err := marshalSession(session)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE checkout_sessions
		SET current_step = $1, status = $2, items = $3,
			buyer_info = $4, delivery_address = $5, shipping_option = $6, payment_selection = $7,
			subtotal_amount = $8, shipping_amount = $9, total_amount = $10,
			order_reference = $11, version = $12, expires_at = $13, updated_at = $14
		WHERE id = $15 AND version = $16`

	ct, err := r.db.Exec(ctx, query,
		session.CurrentStep,
		session.Status,
		cols.items,
		cols.buyerInfo,
		cols.deliveryAddress,
		cols.shippingOption,
		cols.paymentSelection,
		session.Subtotal.Amount,
		session.ShippingCost.Amount,
		session.Total.Amount,
		nullableString(session.OrderReference),
		expectedVersion+1,
		session.ExpiresAt,
		session.UpdatedAt,
		session.ID,
		expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("update checkout session: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return false, nil
	}

	session.Version = expectedVersion + 1
	return true, nil
}

// ListExpired returns in-progress sessions whose expiry passed before the
// given time, oldest expiry first.
func (r *CheckoutRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM checkout_sessions
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, domain.StatusInProgress, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.CheckoutSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired session rows: %w", err)
	}

	return sessions, nil
}

type sessionColumnsJSON struct {
	items            []byte
	buyerInfo        []byte
	deliveryAddress  []byte
	shippingOption   []byte
	paymentSelection []byte
}

func marshalSession(session *domain.CheckoutSession) (sessionColumnsJSON, error) {
	var cols sessionColumnsJSON
	var err error

	if cols.items, err = json.Marshal(session.Items); err != nil {
		return cols, fmt.Errorf("marshal items: %w", err)
	}
	if cols.buyerInfo, err = marshalOptional(session.BuyerInfo); err != nil {
		return cols, fmt.Errorf("marshal buyer info: %w", err)
	}
	if cols.deliveryAddress, err = marshalOptional(session.DeliveryAddress); err != nil {
		return cols, fmt.Errorf("marshal delivery address: %w", err)
	}
	if cols.shippingOption, err = marshalOptional(session.ShippingOption); err != nil {
		return cols, fmt.Errorf("marshal shipping option: %w", err)
	}
	if cols.paymentSelection, err = marshalOptional(session.PaymentSelection); err != nil {
		return cols, fmt.Errorf("marshal payment selection: %w", err)
	}

	return cols, nil
}

func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func scanSession(row pgx.Row) (*domain.CheckoutSession, error) {
	var (
		session        domain.CheckoutSession
		itemsJSON      []byte
		buyerJSON      []byte
		addressJSON    []byte
		shippingJSON   []byte
		paymentJSON    []byte
		subtotalAmount int64
		shippingAmount int64
		totalAmount    int64
		orderReference *string
	)

	if err := row.Scan(
		&session.ID,
		&session.CartID,
		&session.CustomerID,
		&session.CurrentStep,
		&session.Status,
		&itemsJSON,
		&session.Currency,
		&buyerJSON,
		&addressJSON,
		&shippingJSON,
		&paymentJSON,
		&subtotalAmount,
		&shippingAmount,
		&totalAmount,
		&orderReference,
		&session.Version,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}

	if itemsJSON != nil {
		if err := json.Unmarshal(itemsJSON, &session.Items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	if session.Items == nil {
		session.Items = []domain.LineItem{}
	}

	if err := unmarshalOptional(buyerJSON, &session.BuyerInfo); err != nil {
		return nil, fmt.Errorf("unmarshal buyer info: %w", err)
	}
	if err := unmarshalOptional(addressJSON, &session.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("unmarshal delivery address: %w", err)
	}
	if err := unmarshalOptional(shippingJSON, &session.ShippingOption); err != nil {
		return nil, fmt.Errorf("unmarshal shipping option: %w", err)
	}
	if err := unmarshalOptional(paymentJSON, &session.PaymentSelection); err != nil {
		return nil, fmt.Errorf("unmarshal payment selection: %w", err)
	}

	session.Subtotal = money.New(subtotalAmount, session.Currency)
	session.ShippingCost = money.New(shippingAmount, session.Currency)
	session.Total = money.New(totalAmount, session.Currency)
	if orderReference != nil {
		session.OrderReference = *orderReference
	}

	return &session, nil
}

func unmarshalOptional[T any](data []byte, target **T) error {
	if data == nil || string(data) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*target = &v
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
