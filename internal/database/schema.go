package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema DDL, applied idempotently at startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		player_id    TEXT PRIMARY KEY,
		balance      BIGINT NOT NULL CHECK (balance >= 0),
		last_sync_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS sign_shops (
		id         UUID PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		owner_name TEXT NOT NULL,
		world      TEXT NOT NULL,
		x          INTEGER NOT NULL,
		y          INTEGER NOT NULL,
		z          INTEGER NOT NULL,
		item_type  TEXT NOT NULL,
		item_meta  TEXT NOT NULL DEFAULT '',
		quantity   INTEGER NOT NULL DEFAULT 1,
		price      BIGINT NOT NULL,
		kind       TEXT NOT NULL,
		is_admin   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		UNIQUE (world, x, y, z)
	)`,
	`CREATE INDEX IF NOT EXISTS sign_shops_owner_idx ON sign_shops (owner_id)`,
	`CREATE TABLE IF NOT EXISTS player_listings (
		id          UUID PRIMARY KEY,
		seller_id   TEXT NOT NULL,
		seller_name TEXT NOT NULL,
		item_type   TEXT NOT NULL,
		item_data   TEXT NOT NULL DEFAULT '',
		quantity    INTEGER NOT NULL,
		price_each  BIGINT NOT NULL,
		created_at  BIGINT NOT NULL,
		expires_at  BIGINT NOT NULL,
		sold        INTEGER NOT NULL DEFAULT 0,
		collected   BOOLEAN NOT NULL DEFAULT FALSE,
		CHECK (sold >= 0 AND sold <= quantity)
	)`,
	`CREATE INDEX IF NOT EXISTS player_listings_seller_idx ON player_listings (seller_id)`,
	`CREATE INDEX IF NOT EXISTS player_listings_expiry_idx ON player_listings (expires_at)`,
	`CREATE TABLE IF NOT EXISTS economy_transactions (
		id            UUID PRIMARY KEY,
		ts            BIGINT NOT NULL,
		kind          TEXT NOT NULL,
		player_id     TEXT NOT NULL,
		counterparty  TEXT NOT NULL DEFAULT '',
		amount        BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		ref           TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS economy_transactions_player_idx ON economy_transactions (player_id, ts DESC)`,
}

// EnsureSchema creates tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
