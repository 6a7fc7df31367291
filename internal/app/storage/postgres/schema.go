package postgres

import (
	"context"
	"database/sql"
)

// Schema holds the DDL for the registrar tables.
const Schema = `
CREATE TABLE IF NOT EXISTS registrar_licenses (
	id            TEXT PRIMARY KEY,
	account       TEXT NOT NULL,
	parent_label  TEXT NOT NULL,
	charged_wei   TEXT NOT NULL,
	oracle_price8 BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (account, parent_label)
);

CREATE TABLE IF NOT EXISTS registrar_receipts (
	id               TEXT PRIMARY KEY,
	parent_label     TEXT NOT NULL,
	labels           JSONB NOT NULL,
	payer            TEXT NOT NULL,
	recipient        TEXT NOT NULL,
	licensed         BOOLEAN NOT NULL,
	unit_price_cents BIGINT NOT NULL,
	oracle_price8    BIGINT NOT NULL,
	charged_wei      TEXT NOT NULL,
	refund_wei       TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS registrar_receipts_parent_idx ON registrar_receipts (parent_label);

CREATE TABLE IF NOT EXISTS registrar_price_snapshots (
	id           TEXT PRIMARY KEY,
	price8       BIGINT NOT NULL,
	source       TEXT NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the registrar tables when they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
