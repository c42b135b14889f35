package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Money is an amount of currency in integer cents.
type Money int64

// ParseMoney parses a decimal string like "12.34" into cents.
// At most two fractional digits are accepted.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return Money(cents), nil
}

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

// Account is a per-player currency balance record.
type Account struct {
	PlayerID   string // Primary key (opaque unique id)
	Balance    Money  // Current balance, never negative
	Dirty      bool   // Unflushed changes relative to the store
	LastSyncAt int64  // Last successful flush (µs since epoch)
}

// -----------------------------------------------------------------------------
// Sign shops
// -----------------------------------------------------------------------------

// ShopKind distinguishes shops players buy from vs. sell to.
type ShopKind string

const (
	// KindSell: the shop sells to players; a buyer pays the owner.
	KindSell ShopKind = "sell"
	// KindBuy: the shop buys from players; a seller is paid by the owner.
	KindBuy ShopKind = "buy"
)

// Valid reports whether k is a known shop kind.
func (k ShopKind) Valid() bool {
	return k == KindSell || k == KindBuy
}

// Location is a fixed world position.
type Location struct {
	World string
	X     int
	Y     int
	Z     int
}

// Key returns the canonical index key for the location.
func (l Location) Key() string {
	return fmt.Sprintf("%s/%d/%d/%d", l.World, l.X, l.Y, l.Z)
}

// ItemDescriptor identifies an item type plus optional serialized metadata.
type ItemDescriptor struct {
	Type string // Item type identifier (e.g., "minecraft:diamond")
	Meta string // Serialized metadata, empty if none
}

// SignShop is a fixed-location buy/sell point bound to a world position.
type SignShop struct {
	ID        uuid.UUID
	OwnerID   string
	OwnerName string
	Location  Location
	Item      ItemDescriptor
	Quantity  int   // Unit batch size per transaction (default 1)
	Price     Money // Price per batch
	Kind      ShopKind
	Admin     bool  // Admin shops have unlimited stock and no owner payout
	CreatedAt int64 // µs since epoch
	Dirty     bool
}

// -----------------------------------------------------------------------------
// Player listings
// -----------------------------------------------------------------------------

// PlayerListing is a time-limited, quantity-limited sell offer.
// The item descriptor is a snapshot taken at listing time and never changes.
type PlayerListing struct {
	ID         uuid.UUID
	SellerID   string
	SellerName string
	Item       ItemDescriptor
	Quantity   int   // Total units offered, immutable
	PriceEach  Money // Price per unit
	CreatedAt  int64 // µs since epoch
	ExpiresAt  int64 // µs since epoch
	Sold       int   // Units sold so far, 0 <= Sold <= Quantity
	Collected  bool  // Seller has claimed earnings and remaining stock
}

// IsExpired reports whether the listing has passed its expiry at the given time.
func (l *PlayerListing) IsExpired(nowMicros int64) bool {
	return nowMicros > l.ExpiresAt
}

// IsSoldOut reports whether every unit has been sold.
func (l *PlayerListing) IsSoldOut() bool {
	return l.Sold >= l.Quantity
}

// Remaining returns the number of unsold units.
func (l *PlayerListing) Remaining() int {
	return l.Quantity - l.Sold
}

// TotalValue returns the value of the full listing.
func (l *PlayerListing) TotalValue() Money {
	return l.PriceEach * Money(l.Quantity)
}

// Earnings returns the seller's accrued earnings from sold units.
func (l *PlayerListing) Earnings() Money {
	return l.PriceEach * Money(l.Sold)
}

// -----------------------------------------------------------------------------
// Transaction log
// -----------------------------------------------------------------------------

// TransactionKind classifies entries in the economy transaction log.
type TransactionKind string

const (
	TxDeposit        TransactionKind = "deposit"
	TxWithdraw       TransactionKind = "withdraw"
	TxSetBalance     TransactionKind = "set_balance"
	TxTransfer       TransactionKind = "transfer"
	TxShopBuy        TransactionKind = "shop_buy"
	TxShopSell       TransactionKind = "shop_sell"
	TxMarketPurchase TransactionKind = "market_purchase"
	TxMarketCollect  TransactionKind = "market_collect"
)

// TransactionRecord is one append-only audit log entry.
type TransactionRecord struct {
	ID           uuid.UUID
	TS           int64 // µs since epoch
	Kind         TransactionKind
	PlayerID     string
	Counterparty string // Other party, empty if none
	Amount       Money
	BalanceAfter Money
	Ref          string // Shop or listing id, empty if none
}
