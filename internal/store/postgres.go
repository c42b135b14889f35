package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Ping verifies the connection is healthy.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

func (p *Postgres) GetAccount(ctx context.Context, playerID string) (model.Account, error) {
	var acct model.Account
	err := p.db.QueryRow(ctx, `
		SELECT player_id, balance, last_sync_at
		FROM accounts
		WHERE player_id = $1
	`, playerID).Scan(&acct.PlayerID, &acct.Balance, &acct.LastSyncAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

func (p *Postgres) UpsertAccounts(ctx context.Context, accounts []model.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range accounts {
		batch.Queue(`
			INSERT INTO accounts (player_id, balance, last_sync_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (player_id) DO UPDATE
			SET balance = EXCLUDED.balance, last_sync_at = EXCLUDED.last_sync_at
		`, a.PlayerID, int64(a.Balance), a.LastSyncAt)
	}

	return p.sendBatch(ctx, batch, len(accounts), "upsert accounts")
}

func (p *Postgres) TopAccounts(ctx context.Context, n int) ([]model.Account, error) {
	rows, err := p.db.Query(ctx, `
		SELECT player_id, balance, last_sync_at
		FROM accounts
		ORDER BY balance DESC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("top accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.PlayerID, &a.Balance, &a.LastSyncAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Sign shops
// -----------------------------------------------------------------------------

const signShopColumns = `id, owner_id, owner_name, world, x, y, z,
	item_type, item_meta, quantity, price, kind, is_admin, created_at`

func scanSignShop(row pgx.Row) (model.SignShop, error) {
	var s model.SignShop
	var kind string
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.OwnerName,
		&s.Location.World, &s.Location.X, &s.Location.Y, &s.Location.Z,
		&s.Item.Type, &s.Item.Meta, &s.Quantity, &s.Price, &kind,
		&s.Admin, &s.CreatedAt,
	)
	s.Kind = model.ShopKind(kind)
	return s, err
}

func (p *Postgres) GetSignShop(ctx context.Context, id uuid.UUID) (model.SignShop, error) {
	row := p.db.QueryRow(ctx, `SELECT `+signShopColumns+` FROM sign_shops WHERE id = $1`, id)
	s, err := scanSignShop(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SignShop{}, ErrNotFound
	}
	if err != nil {
		return model.SignShop{}, fmt.Errorf("get sign shop: %w", err)
	}
	return s, nil
}

func (p *Postgres) ListSignShops(ctx context.Context) ([]model.SignShop, error) {
	rows, err := p.db.Query(ctx, `SELECT `+signShopColumns+` FROM sign_shops`)
	if err != nil {
		return nil, fmt.Errorf("list sign shops: %w", err)
	}
	defer rows.Close()

	var out []model.SignShop
	for rows.Next() {
		s, err := scanSignShop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sign shop: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertSignShops(ctx context.Context, shops []model.SignShop) error {
	if len(shops) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range shops {
		batch.Queue(`
			INSERT INTO sign_shops (`+signShopColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO UPDATE SET
				owner_id = EXCLUDED.owner_id, owner_name = EXCLUDED.owner_name,
				price = EXCLUDED.price, kind = EXCLUDED.kind, is_admin = EXCLUDED.is_admin,
				quantity = EXCLUDED.quantity
		`, s.ID, s.OwnerID, s.OwnerName,
			s.Location.World, s.Location.X, s.Location.Y, s.Location.Z,
			s.Item.Type, s.Item.Meta, s.Quantity, int64(s.Price), string(s.Kind),
			s.Admin, s.CreatedAt)
	}

	return p.sendBatch(ctx, batch, len(shops), "upsert sign shops")
}

func (p *Postgres) DeleteSignShops(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.db.Exec(ctx, `DELETE FROM sign_shops WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete sign shops: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Player listings
// -----------------------------------------------------------------------------

const listingColumns = `id, seller_id, seller_name, item_type, item_data,
	quantity, price_each, created_at, expires_at, sold, collected`

func scanListing(row pgx.Row) (model.PlayerListing, error) {
	var l model.PlayerListing
	err := row.Scan(
		&l.ID, &l.SellerID, &l.SellerName, &l.Item.Type, &l.Item.Meta,
		&l.Quantity, &l.PriceEach, &l.CreatedAt, &l.ExpiresAt, &l.Sold, &l.Collected,
	)
	return l, err
}

func (p *Postgres) GetListing(ctx context.Context, id uuid.UUID) (model.PlayerListing, error) {
	row := p.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM player_listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PlayerListing{}, ErrNotFound
	}
	if err != nil {
		return model.PlayerListing{}, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (p *Postgres) ListListings(ctx context.Context) ([]model.PlayerListing, error) {
	return p.queryListings(ctx, `SELECT `+listingColumns+` FROM player_listings`)
}

func (p *Postgres) ListListingsBySeller(ctx context.Context, sellerID string) ([]model.PlayerListing, error) {
	return p.queryListings(ctx,
		`SELECT `+listingColumns+` FROM player_listings WHERE seller_id = $1`, sellerID)
}

func (p *Postgres) queryListings(ctx context.Context, sql string, args ...any) ([]model.PlayerListing, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []model.PlayerListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertListings(ctx context.Context, listings []model.PlayerListing) error {
	if len(listings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(`
			INSERT INTO player_listings (`+listingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				sold = EXCLUDED.sold, collected = EXCLUDED.collected
		`, l.ID, l.SellerID, l.SellerName, l.Item.Type, l.Item.Meta,
			l.Quantity, int64(l.PriceEach), l.CreatedAt, l.ExpiresAt, l.Sold, l.Collected)
	}

	return p.sendBatch(ctx, batch, len(listings), "upsert listings")
}

func (p *Postgres) DeleteListings(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.db.Exec(ctx, `DELETE FROM player_listings WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete listings: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Transaction log
// -----------------------------------------------------------------------------

func (p *Postgres) AppendTransactions(ctx context.Context, records []model.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO economy_transactions
				(id, ts, kind, player_id, counterparty, amount, balance_after, ref)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.TS, string(r.Kind), r.PlayerID, r.Counterparty,
			int64(r.Amount), int64(r.BalanceAfter), r.Ref)
	}

	return p.sendBatch(ctx, batch, len(records), "append transactions")
}

func (p *Postgres) RecentTransactions(ctx context.Context, playerID string, limit int) ([]model.TransactionRecord, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, ts, kind, player_id, counterparty, amount, balance_after, ref
		FROM economy_transactions
		WHERE player_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	defer rows.Close()

	var out []model.TransactionRecord
	for rows.Next() {
		var r model.TransactionRecord
		var kind string
		if err := rows.Scan(&r.ID, &r.TS, &kind, &r.PlayerID, &r.Counterparty,
			&r.Amount, &r.BalanceAfter, &r.Ref); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		r.Kind = model.TransactionKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// sendBatch executes a pgx batch and drains all results.
func (p *Postgres) sendBatch(ctx context.Context, batch *pgx.Batch, n int, op string) error {
	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < n; i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}
