package postgres

// Schema is the DDL for the inventory store.
const Schema = `
CREATE TABLE IF NOT EXISTS stock_levels (
    id                  TEXT PRIMARY KEY,
    product_id          TEXT NOT NULL UNIQUE,
    quantity            INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    reserved            INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0 AND reserved <= quantity),
    low_stock_threshold INTEGER NOT NULL DEFAULT 10,
    updated_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_movements (
    id              BIGSERIAL PRIMARY KEY,
    product_id      TEXT NOT NULL,
    quantity_change INTEGER NOT NULL,
    reason          TEXT NOT NULL,
    reference_id    TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_stock_movements_product
    ON stock_movements (product_id, created_at DESC);
`
