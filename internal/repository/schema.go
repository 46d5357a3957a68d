package repository

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                TEXT PRIMARY KEY,
	customer_id       TEXT NOT NULL,
	line_items        JSONB NOT NULL,
	total_primary     BIGINT NOT NULL DEFAULT 0,
	total_secondary   BIGINT NOT NULL DEFAULT 0,
	selected_currency TEXT NOT NULL,
	customer_details  JSONB NOT NULL,
	payment_method    TEXT NOT NULL,
	payment_intent_id TEXT,
	idempotency_key   TEXT UNIQUE,
	status            TEXT NOT NULL DEFAULT 'Pending',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS orders_customer_created_idx ON orders (customer_id, created_at DESC);

CREATE TABLE IF NOT EXISTS payment_captures (
	intent_id     TEXT PRIMARY KEY,
	amount        BIGINT NOT NULL,
	currency      TEXT NOT NULL,
	captured_at   TIMESTAMPTZ NOT NULL,
	order_id      TEXT,
	reconciled_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS payment_captures_pending_idx
	ON payment_captures (captured_at) WHERE reconciled_at IS NULL;
`

// EnsureSchema creates the orders and payment_captures tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
