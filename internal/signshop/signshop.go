// Package signshop implements the fixed-location shop subsystem.
//
// All shops are loaded into memory at initialization and indexed by id and
// by world position. Mutations mark the record dirty and enqueue write-back;
// the store is never touched on the mutation path.
package signshop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vonix-Network/VonixCore-sub003/internal/economy"
	"github.com/Vonix-Network/VonixCore-sub003/internal/gateway"
	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
)

var (
	// ErrShopExists: another shop already occupies the location.
	ErrShopExists = errors.New("shop already exists at location")
	// ErrLocationUnavailable: the shop's world is not currently resolvable.
	ErrLocationUnavailable = errors.New("shop location unavailable")
)

// Flusher receives dirty shop records for asynchronous write-back.
type Flusher interface {
	EnqueueShop(model.SignShop)
	EnqueueShopDelete(uuid.UUID)
}

// Shops is the sign shop subsystem.
type Shops struct {
	store    store.SignShopStore
	flusher  Flusher
	resolver gateway.WorldResolver
	logger   *slog.Logger

	mu         sync.RWMutex
	byID       map[uuid.UUID]*model.SignShop
	byLocation map[string]uuid.UUID
	worlds     map[string]bool // Lazy world resolution cache

	// deleted tombstones shops whose delete is still queued in the flush
	// worker, so a reload cannot resurrect them from the stale store view.
	deleted map[uuid.UUID]struct{}
}

// New creates the subsystem. Initialize must be called before use.
func New(st store.SignShopStore, flusher Flusher, resolver gateway.WorldResolver, logger *slog.Logger) *Shops {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shops{
		store:      st,
		flusher:    flusher,
		resolver:   resolver,
		logger:     logger,
		byID:       make(map[uuid.UUID]*model.SignShop),
		byLocation: make(map[string]uuid.UUID),
		worlds:     make(map[string]bool),
		deleted:    make(map[uuid.UUID]struct{}),
	}
}

// Name identifies the subsystem to the registry.
func (s *Shops) Name() string { return "sign" }

// Initialize loads every shop from the store into the cache.
func (s *Shops) Initialize(ctx context.Context) error {
	shops, err := s.store.ListSignShops(ctx)
	if err != nil {
		return fmt.Errorf("load sign shops: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range shops {
		shop := shops[i]
		s.byID[shop.ID] = &shop
		s.byLocation[shop.Location.Key()] = shop.ID
	}

	s.logger.Info("sign shops loaded", "count", len(shops))
	return nil
}

// Shutdown clears the cache. Dirty records were already handed to the flush
// worker at mutation time, so there is nothing left to write here.
func (s *Shops) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[uuid.UUID]*model.SignShop)
	s.byLocation = make(map[string]uuid.UUID)
	s.worlds = make(map[string]bool)
	s.deleted = make(map[uuid.UUID]struct{})
	return nil
}

// Reload re-reads the store, keeping dirty in-memory records that have not
// flushed yet, skipping shops with a queued delete, and dropping the world
// resolution cache.
func (s *Shops) Reload(ctx context.Context) error {
	shops, err := s.store.ListSignShops(ctx)
	if err != nil {
		return fmt.Errorf("reload sign shops: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make(map[uuid.UUID]*model.SignShop, len(shops))
	freshLoc := make(map[string]uuid.UUID, len(shops))
	stored := make(map[uuid.UUID]struct{}, len(shops))
	for i := range shops {
		shop := shops[i]
		stored[shop.ID] = struct{}{}
		// Locally deleted, delete not flushed yet.
		if _, gone := s.deleted[shop.ID]; gone {
			continue
		}
		fresh[shop.ID] = &shop
		freshLoc[shop.Location.Key()] = shop.ID
	}
	// Tombstones absent from the store view have flushed; drop them.
	for id := range s.deleted {
		if _, still := stored[id]; !still {
			delete(s.deleted, id)
		}
	}
	// Unflushed local changes win over the stored copy.
	for id, shop := range s.byID {
		if shop.Dirty {
			fresh[id] = shop
			freshLoc[shop.Location.Key()] = id
		}
	}

	s.byID = fresh
	s.byLocation = freshLoc
	s.worlds = make(map[string]bool)

	s.logger.Info("sign shops reloaded", "count", len(s.byID))
	return nil
}

// Count returns the number of cached shops.
func (s *Shops) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// Get returns a shop by id.
func (s *Shops) Get(id uuid.UUID) (model.SignShop, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shop, ok := s.byID[id]
	if !ok {
		return model.SignShop{}, false
	}
	return *shop, true
}

// At returns the shop occupying the given location.
func (s *Shops) At(loc model.Location) (model.SignShop, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byLocation[loc.Key()]
	if !ok {
		return model.SignShop{}, false
	}
	return *s.byID[id], true
}

// ByOwner returns all shops owned by the player.
func (s *Shops) ByOwner(ownerID string) []model.SignShop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SignShop
	for _, shop := range s.byID {
		if shop.OwnerID == ownerID {
			out = append(out, *shop)
		}
	}
	return out
}

// ResolveLocation reports whether the shop's world is available. Resolution
// is lazy and cached until the next reload.
func (s *Shops) ResolveLocation(shop model.SignShop) bool {
	s.mu.RLock()
	ok, cached := s.worlds[shop.Location.World]
	s.mu.RUnlock()
	if cached {
		return ok
	}

	ok = s.resolver.Resolve(shop.Location.World)
	s.mu.Lock()
	s.worlds[shop.Location.World] = ok
	s.mu.Unlock()
	return ok
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// Create registers a new shop at the given location.
func (s *Shops) Create(ctx context.Context, ownerID, ownerName string, loc model.Location, item model.ItemDescriptor, quantity int, price model.Money, kind model.ShopKind, admin bool) (model.SignShop, error) {
	if price <= 0 {
		return model.SignShop{}, economy.ErrInvalidAmount
	}
	if quantity < 1 {
		quantity = 1
	}
	if !kind.Valid() {
		return model.SignShop{}, fmt.Errorf("unknown shop kind %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byLocation[loc.Key()]; taken {
		return model.SignShop{}, ErrShopExists
	}

	shop := model.SignShop{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		OwnerName: ownerName,
		Location:  loc,
		Item:      item,
		Quantity:  quantity,
		Price:     price,
		Kind:      kind,
		Admin:     admin,
		CreatedAt: time.Now().UnixMicro(),
		Dirty:     true,
	}

	s.byID[shop.ID] = &shop
	s.byLocation[loc.Key()] = shop.ID
	s.flusher.EnqueueShop(shop)

	s.logger.Info("sign shop created",
		"shop_id", shop.ID.String(),
		"owner", ownerName,
		"kind", string(kind),
		"location", loc.Key(),
	)
	return shop, nil
}

// Delete removes a shop.
func (s *Shops) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shop, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}

	delete(s.byID, id)
	delete(s.byLocation, shop.Location.Key())
	s.deleted[id] = struct{}{}
	s.flusher.EnqueueShopDelete(id)

	s.logger.Info("sign shop deleted", "shop_id", id.String())
	return nil
}

// SetPrice updates the shop's unit price.
func (s *Shops) SetPrice(id uuid.UUID, price model.Money) error {
	if price <= 0 {
		return economy.ErrInvalidAmount
	}
	return s.mutate(id, func(shop *model.SignShop) { shop.Price = price })
}

// SetKind switches the shop between buy and sell.
func (s *Shops) SetKind(id uuid.UUID, kind model.ShopKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown shop kind %q", kind)
	}
	return s.mutate(id, func(shop *model.SignShop) { shop.Kind = kind })
}

// SetAdmin toggles the admin flag.
func (s *Shops) SetAdmin(id uuid.UUID, admin bool) error {
	return s.mutate(id, func(shop *model.SignShop) { shop.Admin = admin })
}

func (s *Shops) mutate(id uuid.UUID, fn func(*model.SignShop)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shop, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(shop)
	shop.Dirty = true
	s.flusher.EnqueueShop(*shop)
	return nil
}
