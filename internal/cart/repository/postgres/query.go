package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cartwright-labs/purchaseflow/internal/cart/domain"
	"github.com/cartwright-labs/purchaseflow/internal/cart/repository"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
)

// CartQueryStore implements repository.CartQueryStore on PostgreSQL. It reads
// the denormalized cart_snapshots projection maintained by the cart
// projector, which is where predicates over externally-owned data (product
// availability, marketing consent) can be evaluated precisely.
type CartQueryStore struct {
	pool database.DBTX
}

// NewCartQueryStore creates a PostgreSQL-backed cart query store.
func NewCartQueryStore(pool database.DBTX) *CartQueryStore {
	return &CartQueryStore{pool: pool}
}

// sqlTranslator turns a specification tree into a SQL predicate over
// cart_snapshots. It implements domain.SpecificationVisitor: leaves push one
// fragment, combinators pop their operands and push the combined fragment.
type sqlTranslator struct {
	fragments []string
	args      []any
}

func (t *sqlTranslator) push(fragment string) {
	t.fragments = append(t.fragments, fragment)
}

func (t *sqlTranslator) pop() string {
	last := t.fragments[len(t.fragments)-1]
	t.fragments = t.fragments[:len(t.fragments)-1]
	return last
}

// bind appends an argument and returns its positional placeholder.
func (t *sqlTranslator) bind(arg any) string {
	t.args = append(t.args, arg)
	return "$" + strconv.Itoa(len(t.args))
}

func (t *sqlTranslator) VisitActiveCart(domain.ActiveCartSpec) error {
	t.push("status = " + t.bind(domain.StatusActive))
	return nil
}

func (t *sqlTranslator) VisitLastUpdatedBefore(s domain.LastUpdatedBeforeSpec) error {
	t.push("updated_at < " + t.bind(s.Threshold))
	return nil
}

func (t *sqlTranslator) VisitHasMinTotal(s domain.HasMinTotalSpec) error {
	t.push(fmt.Sprintf("(total_amount >= %s AND currency = %s)",
		t.bind(s.Min.Amount), t.bind(s.Min.Currency)))
	return nil
}

func (t *sqlTranslator) VisitHasAnyAvailableItem(domain.HasAnyAvailableItemSpec) error {
	t.push("has_available_item")
	return nil
}

func (t *sqlTranslator) VisitCustomerAllowsMarketing(domain.CustomerAllowsMarketingSpec) error {
	t.push("marketing_opt_in")
	return nil
}

func (t *sqlTranslator) VisitAnd(s domain.AndSpec) error {
	return t.combine(s.Left, s.Right, "AND")
}

func (t *sqlTranslator) VisitOr(s domain.OrSpec) error {
	return t.combine(s.Left, s.Right, "OR")
}

func (t *sqlTranslator) VisitNot(s domain.NotSpec) error {
	if err := s.Inner.Accept(t); err != nil {
		return err
	}
	t.push("(NOT " + t.pop() + ")")
	return nil
}

func (t *sqlTranslator) combine(left, right domain.Specification, op string) error {
	if err := left.Accept(t); err != nil {
		return err
	}
	if err := right.Accept(t); err != nil {
		return err
	}
	rightFrag := t.pop()
	leftFrag := t.pop()
	t.push("(" + leftFrag + " " + op + " " + rightFrag + ")")
	return nil
}

// translate runs the visitor over the tree and returns the final predicate.
func translate(spec domain.Specification) (string, []any, error) {
	t := &sqlTranslator{}
	if err := spec.Accept(t); err != nil {
		return "", nil, fmt.Errorf("translate specification: %w", err)
	}
	if len(t.fragments) != 1 {
		return "", nil, fmt.Errorf("translate specification: unbalanced tree, %d fragments", len(t.fragments))
	}
	return t.fragments[0], t.args, nil
}

// FindBySpecification returns the carts matching the specification, newest
// first, windowed by page.
func (s *CartQueryStore) FindBySpecification(ctx context.Context, spec domain.Specification, page repository.Page) ([]*domain.ShoppingCart, error) {
	where, args, err := translate(spec)
	if err != nil {
		return nil, err
	}

	var query strings.Builder
	query.WriteString(`
		SELECT cart_id, customer_id, status, currency, items, marketing_opt_in, version, created_at, updated_at
		FROM cart_snapshots
		WHERE `)
	query.WriteString(where)
	query.WriteString(fmt.Sprintf(`
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2))
	args = append(args, page.Limit(), page.Offset())

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query carts by specification: %w", err)
	}
	defer rows.Close()

	var carts []*domain.ShoppingCart
	for rows.Next() {
		var (
			cart      domain.ShoppingCart
			itemsJSON []byte
		)
		err := rows.Scan(
			&cart.ID,
			&cart.CustomerID,
			&cart.Status,
			&cart.Currency,
			&itemsJSON,
			&cart.MarketingOptIn,
			&cart.Version,
			&cart.CreatedAt,
			&cart.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart snapshot: %w", err)
		}
		if err := json.Unmarshal(itemsJSON, &cart.Items); err != nil {
			return nil, fmt.Errorf("unmarshal cart items: %w", err)
		}
		carts = append(carts, &cart)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart snapshots: %w", err)
	}

	return carts, nil
}

// Upsert writes a cart's current state into the projection.
func (s *CartQueryStore) Upsert(ctx context.Context, cart *domain.ShoppingCart, hasAvailableItem, marketingOptIn bool) error {
	itemsJSON, err := json.Marshal(cart.Items)
	if err != nil {
		return fmt.Errorf("marshal cart items: %w", err)
	}

	query := `
		INSERT INTO cart_snapshots (
			cart_id, customer_id, status, currency, items, total_amount, item_count,
			has_available_item, marketing_opt_in, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (cart_id) DO UPDATE SET
			status = EXCLUDED.status,
			currency = EXCLUDED.currency,
			items = EXCLUDED.items,
			total_amount = EXCLUDED.total_amount,
			item_count = EXCLUDED.item_count,
			has_available_item = EXCLUDED.has_available_item,
			marketing_opt_in = EXCLUDED.marketing_opt_in,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`

	_, err = s.pool.Exec(ctx, query,
		cart.ID,
		cart.CustomerID,
		cart.Status,
		cart.Currency,
		itemsJSON,
		cart.Total().Amount,
		cart.ItemCount(),
		hasAvailableItem,
		marketingOptIn,
		cart.Version,
		cart.CreatedAt,
		cart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert cart snapshot: %w", err)
	}

	return nil
}

// Remove deletes a cart from the projection.
func (s *CartQueryStore) Remove(ctx context.Context, cartID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cart_snapshots WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}
