// Package engine implements the transaction engine: the component that
// composes balance transfer, stock mutation, and item movement into atomic
// operations against sign shops and player listings.
//
// Each operation is serialized per entity through a per-key lock, so two
// purchases against the same listing can never oversell it, and concurrent
// collects can never both succeed. On a mid-sequence failure the engine
// compensates already-applied steps in reverse order before returning.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Vonix-Network/VonixCore-sub003/internal/economy"
	"github.com/Vonix-Network/VonixCore-sub003/internal/gateway"
	"github.com/Vonix-Network/VonixCore-sub003/internal/keylock"
	"github.com/Vonix-Network/VonixCore-sub003/internal/market"
	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
	"github.com/Vonix-Network/VonixCore-sub003/internal/shops"
	"github.com/Vonix-Network/VonixCore-sub003/internal/signshop"
	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
)

// Engine executes buy/sell/collect operations.
type Engine struct {
	economy   *economy.Service
	shops     *signshop.Shops
	market    *market.Market
	inventory gateway.Inventory
	logger    *slog.Logger

	locks *keylock.Table
}

// New creates the engine. shops or market may be nil when the corresponding
// subsystem is disabled; operations against a nil subsystem fail with
// shops.ErrFeatureDisabled.
func New(eco *economy.Service, sh *signshop.Shops, mk *market.Market, inv gateway.Inventory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		economy:   eco,
		shops:     sh,
		market:    mk,
		inventory: inv,
		logger:    logger,
		locks:     keylock.New(),
	}
}

// -----------------------------------------------------------------------------
// Sign shop transactions
// -----------------------------------------------------------------------------

// BuyFromShop executes a purchase at a SELL-kind shop: the buyer pays the
// price and receives one batch of the shop's item; a non-admin owner
// supplies the stock and receives the proceeds.
func (e *Engine) BuyFromShop(ctx context.Context, shopID uuid.UUID, buyerID string) error {
	if e.shops == nil {
		return shops.ErrFeatureDisabled
	}

	key := "shop/" + shopID.String()
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	shop, ok := e.shops.Get(shopID)
	if !ok {
		return store.ErrNotFound
	}
	if shop.Kind != model.KindSell {
		return fmt.Errorf("shop %s is not a sell shop", shopID)
	}
	if !e.shops.ResolveLocation(shop) {
		return signshop.ErrLocationUnavailable
	}

	ref := shopID.String()

	// Buyer pays first; nothing to unwind if the funds are short.
	if _, err := e.economy.WithdrawFor(ctx, buyerID, shop.Price, model.TxShopBuy, shop.OwnerID, ref); err != nil {
		return err
	}

	// Non-admin shops draw stock from the owner's holdings.
	if !shop.Admin {
		if err := e.inventory.Take(ctx, shop.OwnerID, shop.Item, shop.Quantity); err != nil {
			e.refund(ctx, buyerID, shop.Price, model.TxShopBuy, shop.OwnerID, ref)
			return fmt.Errorf("take shop stock: %w", err)
		}
	}

	if err := e.inventory.Give(ctx, buyerID, shop.Item, shop.Quantity); err != nil {
		if !shop.Admin {
			e.restock(ctx, shop.OwnerID, shop.Item, shop.Quantity, ref)
		}
		e.refund(ctx, buyerID, shop.Price, model.TxShopBuy, shop.OwnerID, ref)
		return fmt.Errorf("deliver purchase: %w", err)
	}

	// Admin shops sink the payment instead of paying an owner.
	if !shop.Admin {
		if _, err := e.economy.DepositFor(ctx, shop.OwnerID, shop.Price, model.TxShopBuy, buyerID, ref); err != nil {
			e.logger.Error("owner payout failed after delivery",
				"shop_id", ref,
				"owner_id", shop.OwnerID,
				"error", err,
			)
			return err
		}
	}

	return nil
}

// SellToShop executes a sale at a BUY-kind shop: the seller delivers one
// batch of the shop's item and is paid; a non-admin owner funds the payment
// and receives the items.
func (e *Engine) SellToShop(ctx context.Context, shopID uuid.UUID, sellerID string) error {
	if e.shops == nil {
		return shops.ErrFeatureDisabled
	}

	key := "shop/" + shopID.String()
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	shop, ok := e.shops.Get(shopID)
	if !ok {
		return store.ErrNotFound
	}
	if shop.Kind != model.KindBuy {
		return fmt.Errorf("shop %s is not a buy shop", shopID)
	}
	if !e.shops.ResolveLocation(shop) {
		return signshop.ErrLocationUnavailable
	}

	ref := shopID.String()

	if err := e.inventory.Take(ctx, sellerID, shop.Item, shop.Quantity); err != nil {
		return fmt.Errorf("take sold items: %w", err)
	}

	// Non-admin shops pay from the owner's balance and the owner keeps the
	// items; admin shops mint the payment and sink the items.
	if !shop.Admin {
		if _, err := e.economy.WithdrawFor(ctx, shop.OwnerID, shop.Price, model.TxShopSell, sellerID, ref); err != nil {
			e.restock(ctx, sellerID, shop.Item, shop.Quantity, ref)
			return fmt.Errorf("owner cannot pay: %w", err)
		}
		if err := e.inventory.Give(ctx, shop.OwnerID, shop.Item, shop.Quantity); err != nil {
			e.refund(ctx, shop.OwnerID, shop.Price, model.TxShopSell, sellerID, ref)
			e.restock(ctx, sellerID, shop.Item, shop.Quantity, ref)
			return fmt.Errorf("deliver to owner: %w", err)
		}
	}

	if _, err := e.economy.DepositFor(ctx, sellerID, shop.Price, model.TxShopSell, shop.OwnerID, ref); err != nil {
		e.logger.Error("seller payout failed after item transfer",
			"shop_id", ref,
			"seller_id", sellerID,
			"error", err,
		)
		return err
	}

	return nil
}

// -----------------------------------------------------------------------------
// Player market transactions
// -----------------------------------------------------------------------------

// PurchaseListing buys qty units from a listing. The whole sequence is
// atomic: on any failure no stock or balance change survives.
func (e *Engine) PurchaseListing(ctx context.Context, listingID uuid.UUID, buyerID string, qty int) error {
	if e.market == nil {
		return shops.ErrFeatureDisabled
	}

	key := "listing/" + listingID.String()
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	listing, ok := e.market.Get(listingID)
	if !ok {
		return store.ErrNotFound
	}

	now := e.market.Now()
	switch {
	case listing.IsExpired(now):
		return market.ErrListingExpired
	case listing.IsSoldOut():
		return market.ErrListingSoldOut
	case qty < 1 || qty > listing.Remaining():
		return gateway.ErrInsufficientStock
	}

	cost := listing.PriceEach * model.Money(qty)
	ref := listingID.String()

	if _, err := e.economy.WithdrawFor(ctx, buyerID, cost, model.TxMarketPurchase, listing.SellerID, ref); err != nil {
		return err
	}

	if _, err := e.market.Adjust(listingID, func(l *model.PlayerListing) error {
		if qty > l.Remaining() {
			return gateway.ErrInsufficientStock
		}
		l.Sold += qty
		return nil
	}); err != nil {
		e.refund(ctx, buyerID, cost, model.TxMarketPurchase, listing.SellerID, ref)
		return err
	}

	if err := e.inventory.Give(ctx, buyerID, listing.Item, qty); err != nil {
		e.market.Adjust(listingID, func(l *model.PlayerListing) error {
			l.Sold -= qty
			return nil
		})
		e.refund(ctx, buyerID, cost, model.TxMarketPurchase, listing.SellerID, ref)
		return fmt.Errorf("deliver purchase: %w", err)
	}

	// Seller earnings accrue on the listing and pay out at collection.
	return nil
}

// CollectListing claims a listing's unsold stock and accrued earnings for
// the seller. Succeeds exactly once per listing.
func (e *Engine) CollectListing(ctx context.Context, listingID uuid.UUID, sellerID string) error {
	if e.market == nil {
		return shops.ErrFeatureDisabled
	}

	key := "listing/" + listingID.String()
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	listing, ok := e.market.Get(listingID)
	if !ok {
		return store.ErrNotFound
	}
	if listing.SellerID != sellerID {
		return market.ErrNotOwner
	}
	if listing.Collected {
		return market.ErrAlreadyCollected
	}

	ref := listingID.String()

	// Earnings first: the deposit is the step that can fail when the
	// seller's account cannot be materialized, and at that point nothing
	// has moved yet, so a retry starts from scratch instead of handing the
	// unsold stock out twice.
	if earnings := listing.Earnings(); earnings > 0 {
		if _, err := e.economy.DepositFor(ctx, sellerID, earnings, model.TxMarketCollect, "", ref); err != nil {
			return err
		}
	}

	if remaining := listing.Remaining(); remaining > 0 {
		if err := e.inventory.Give(ctx, sellerID, listing.Item, remaining); err != nil {
			if earnings := listing.Earnings(); earnings > 0 {
				e.reclaim(ctx, sellerID, earnings, model.TxMarketCollect, ref)
			}
			return fmt.Errorf("return unsold stock: %w", err)
		}
	}

	_, err := e.market.Adjust(listingID, func(l *model.PlayerListing) error {
		if l.Collected {
			return market.ErrAlreadyCollected
		}
		l.Collected = true
		return nil
	})
	return err
}

// -----------------------------------------------------------------------------
// Compensation helpers
// -----------------------------------------------------------------------------

// refund returns money to a player after a later step failed. A refund
// failure is logged loudly; it means the account vanished mid-operation.
func (e *Engine) refund(ctx context.Context, playerID string, amount model.Money, kind model.TransactionKind, counterparty, ref string) {
	if _, err := e.economy.DepositFor(ctx, playerID, amount, kind, counterparty, ref); err != nil {
		e.logger.Error("refund failed",
			"player_id", playerID,
			"amount", int64(amount),
			"ref", ref,
			"error", err,
		)
	}
}

// reclaim takes money back from a player after a later step failed. Like
// refund, a failure here is logged loudly; it means the player spent the
// money in the instant between the two steps.
func (e *Engine) reclaim(ctx context.Context, playerID string, amount model.Money, kind model.TransactionKind, ref string) {
	if _, err := e.economy.WithdrawFor(ctx, playerID, amount, kind, "", ref); err != nil {
		e.logger.Error("reclaim failed",
			"player_id", playerID,
			"amount", int64(amount),
			"ref", ref,
			"error", err,
		)
	}
}

// restock returns items to a player after a later step failed.
func (e *Engine) restock(ctx context.Context, playerID string, item model.ItemDescriptor, qty int, ref string) {
	if err := e.inventory.Give(ctx, playerID, item, qty); err != nil {
		e.logger.Error("restock failed",
			"player_id", playerID,
			"item", item.Type,
			"qty", qty,
			"ref", ref,
			"error", err,
		)
	}
}
