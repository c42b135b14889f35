package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// AccountStore persists account records.
type AccountStore interface {
	GetAccount(ctx context.Context, playerID string) (model.Account, error)
	UpsertAccounts(ctx context.Context, accounts []model.Account) error
	TopAccounts(ctx context.Context, n int) ([]model.Account, error)
}

// SignShopStore persists sign shop records.
type SignShopStore interface {
	GetSignShop(ctx context.Context, id uuid.UUID) (model.SignShop, error)
	ListSignShops(ctx context.Context) ([]model.SignShop, error)
	UpsertSignShops(ctx context.Context, shops []model.SignShop) error
	DeleteSignShops(ctx context.Context, ids []uuid.UUID) error
}

// ListingStore persists player market listings.
type ListingStore interface {
	GetListing(ctx context.Context, id uuid.UUID) (model.PlayerListing, error)
	ListListings(ctx context.Context) ([]model.PlayerListing, error)
	ListListingsBySeller(ctx context.Context, sellerID string) ([]model.PlayerListing, error)
	UpsertListings(ctx context.Context, listings []model.PlayerListing) error
	DeleteListings(ctx context.Context, ids []uuid.UUID) error
}

// TransactionLog appends to and reads the economy audit log.
type TransactionLog interface {
	AppendTransactions(ctx context.Context, records []model.TransactionRecord) error
	RecentTransactions(ctx context.Context, playerID string, limit int) ([]model.TransactionRecord, error)
}

// Store is the full persistence surface shared by all subsystems.
type Store interface {
	AccountStore
	SignShopStore
	ListingStore
	TransactionLog

	Ping(ctx context.Context) error
}
