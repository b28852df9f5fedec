package postgres

// Schema is the DDL for the checkout session store.
const Schema = `
CREATE TABLE IF NOT EXISTS checkout_sessions (
    id               TEXT PRIMARY KEY,
    cart_id          TEXT NOT NULL,
    customer_id      TEXT NOT NULL,
    current_step     TEXT NOT NULL,
    status           TEXT NOT NULL,
    items            JSONB NOT NULL DEFAULT '[]'::jsonb,
    currency         TEXT NOT NULL,
    buyer_info       JSONB,
    delivery_address JSONB,
    shipping_option  JSONB,
    payment_selection JSONB,
    subtotal_amount  BIGINT NOT NULL DEFAULT 0,
    shipping_amount  BIGINT NOT NULL DEFAULT 0,
    total_amount     BIGINT NOT NULL DEFAULT 0,
    order_reference  TEXT,
    version          INTEGER NOT NULL DEFAULT 1,
    expires_at       TIMESTAMPTZ NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkout_sessions_cart
    ON checkout_sessions (cart_id) WHERE status = 'in_progress';

CREATE INDEX IF NOT EXISTS idx_checkout_sessions_expiry
    ON checkout_sessions (expires_at) WHERE status = 'in_progress';
`
