package postgres

// Schema is the DDL for the cart projection table.
const Schema = `
CREATE TABLE IF NOT EXISTS cart_snapshots (
	cart_id            TEXT PRIMARY KEY,
	customer_id        TEXT NOT NULL,
	status             TEXT NOT NULL,
	currency           TEXT NOT NULL,
	items              JSONB NOT NULL DEFAULT '[]',
	total_amount       BIGINT NOT NULL DEFAULT 0,
	item_count         INT NOT NULL DEFAULT 0,
	has_available_item BOOLEAN NOT NULL DEFAULT FALSE,
	marketing_opt_in   BOOLEAN NOT NULL DEFAULT FALSE,
	version            INT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cart_snapshots_customer ON cart_snapshots (customer_id);
CREATE INDEX IF NOT EXISTS idx_cart_snapshots_status_updated ON cart_snapshots (status, updated_at);
`
