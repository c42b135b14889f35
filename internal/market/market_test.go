package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Vonix-Network/VonixCore-sub003/internal/economy"
	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
)

type captureFlusher struct {
	mu      sync.Mutex
	upserts []model.PlayerListing
	deletes []uuid.UUID
}

func (f *captureFlusher) EnqueueListing(l model.PlayerListing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, l)
}

func (f *captureFlusher) EnqueueListingDelete(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
}

func (f *captureFlusher) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

// newTestMarket returns a market with a controllable clock, not initialized;
// the sweep loop stays off and sweeps run explicitly.
func newTestMarket(t *testing.T) (*Market, *store.Memory, *captureFlusher, *int64) {
	t.Helper()
	mem := store.NewMemory()
	flusher := &captureFlusher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(DefaultConfig(), mem, flusher, logger)

	now := time.Now().UnixMicro()
	m.nowFn = func() int64 { return now }
	return m, mem, flusher, &now
}

func TestCreateListing(t *testing.T) {
	m, _, flusher, now := newTestMarket(t)
	ctx := context.Background()

	l, err := m.Create(ctx, "seller1", "Alice", model.ItemDescriptor{Type: "diamond"}, 10, 500)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if l.Quantity != 10 || l.PriceEach != 500 || l.Sold != 0 || l.Collected {
		t.Errorf("listing = %+v, want fresh 10x500", l)
	}
	if want := *now + DefaultConfig().ListingDuration.Microseconds(); l.ExpiresAt != want {
		t.Errorf("ExpiresAt = %d, want %d", l.ExpiresAt, want)
	}

	got, ok := m.Get(l.ID)
	if !ok || got.ID != l.ID {
		t.Error("Get did not return the created listing")
	}

	flusher.mu.Lock()
	defer flusher.mu.Unlock()
	if len(flusher.upserts) != 1 {
		t.Errorf("enqueued upserts = %d, want 1", len(flusher.upserts))
	}
}

func TestCreateValidations(t *testing.T) {
	m, _, _, _ := newTestMarket(t)
	ctx := context.Background()
	item := model.ItemDescriptor{Type: "diamond"}

	if _, err := m.Create(ctx, "s", "S", item, 0, 100); !errors.Is(err, economy.ErrInvalidAmount) {
		t.Errorf("zero quantity = %v, want ErrInvalidAmount", err)
	}
	if _, err := m.Create(ctx, "s", "S", item, 5, 0); !errors.Is(err, economy.ErrInvalidAmount) {
		t.Errorf("zero price = %v, want ErrInvalidAmount", err)
	}
	if _, err := m.Create(ctx, "s", "S", item, 5, -10); !errors.Is(err, economy.ErrInvalidAmount) {
		t.Errorf("negative price = %v, want ErrInvalidAmount", err)
	}
}

func TestCreateListingCap(t *testing.T) {
	m, _, _, _ := newTestMarket(t)
	m.cfg.MaxListingsPerPlayer = 2
	ctx := context.Background()
	item := model.ItemDescriptor{Type: "diamond"}

	for i := 0; i < 2; i++ {
		if _, err := m.Create(ctx, "s", "S", item, 1, 100); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}
	if _, err := m.Create(ctx, "s", "S", item, 1, 100); !errors.Is(err, ErrListingLimit) {
		t.Errorf("Create over cap = %v, want ErrListingLimit", err)
	}

	// Other sellers are unaffected.
	if _, err := m.Create(ctx, "other", "O", item, 1, 100); err != nil {
		t.Errorf("Create for other seller failed: %v", err)
	}
}

func TestCollectedListingsFreeTheCap(t *testing.T) {
	m, _, _, _ := newTestMarket(t)
	m.cfg.MaxListingsPerPlayer = 1
	ctx := context.Background()
	item := model.ItemDescriptor{Type: "diamond"}

	l, err := m.Create(ctx, "s", "S", item, 1, 100)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.Adjust(l.ID, func(x *model.PlayerListing) error {
		x.Collected = true
		return nil
	}); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}

	if _, err := m.Create(ctx, "s", "S", item, 1, 100); err != nil {
		t.Errorf("Create after collecting should succeed, got %v", err)
	}
}

func TestAdjust(t *testing.T) {
	m, _, flusher, _ := newTestMarket(t)
	ctx := context.Background()

	l, err := m.Create(ctx, "s", "S", model.ItemDescriptor{Type: "diamond"}, 10, 100)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := m.Adjust(l.ID, func(x *model.PlayerListing) error {
		x.Sold += 4
		return nil
	})
	if err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if updated.Sold != 4 {
		t.Errorf("Sold = %d, want 4", updated.Sold)
	}

	// A failing fn does not enqueue write-back.
	before := len(flusher.upserts)
	sentinel := errors.New("nope")
	if _, err := m.Adjust(l.ID, func(x *model.PlayerListing) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("Adjust with failing fn = %v, want sentinel", err)
	}
	flusher.mu.Lock()
	after := len(flusher.upserts)
	flusher.mu.Unlock()
	if after != before {
		t.Error("failed Adjust should not enqueue write-back")
	}

	if _, err := m.Adjust(uuid.New(), func(x *model.PlayerListing) error { return nil }); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Adjust on unknown listing = %v, want ErrNotFound", err)
	}
}

func TestActiveFilters(t *testing.T) {
	m, _, _, now := newTestMarket(t)
	ctx := context.Background()
	item := model.ItemDescriptor{Type: "diamond"}

	open, _ := m.Create(ctx, "s", "S", item, 10, 100)
	soldOut, _ := m.Create(ctx, "s", "S", item, 1, 100)
	m.Adjust(soldOut.ID, func(x *model.PlayerListing) error {
		x.Sold = 1
		return nil
	})
	expired, _ := m.Create(ctx, "s", "S", item, 10, 100)
	m.Adjust(expired.ID, func(x *model.PlayerListing) error {
		x.ExpiresAt = *now - 1
		return nil
	})

	active := m.Active()
	if len(active) != 1 || active[0].ID != open.ID {
		t.Errorf("Active() = %d listings, want only the open one", len(active))
	}

	if got := len(m.BySeller("s")); got != 3 {
		t.Errorf("BySeller = %d, want 3 (includes closed listings)", got)
	}
}

func TestSweep(t *testing.T) {
	m, _, flusher, now := newTestMarket(t)
	ctx := context.Background()
	item := model.ItemDescriptor{Type: "diamond"}

	collected, _ := m.Create(ctx, "s", "S", item, 1, 100)
	m.Adjust(collected.ID, func(x *model.PlayerListing) error {
		x.Collected = true
		return nil
	})

	// Expired but inside the retention window: the seller can still collect.
	graced, _ := m.Create(ctx, "s", "S", item, 1, 100)
	m.Adjust(graced.ID, func(x *model.PlayerListing) error {
		x.ExpiresAt = *now - time.Hour.Microseconds()
		return nil
	})

	// Expired past retention: purged.
	stale, _ := m.Create(ctx, "s", "S", item, 1, 100)
	m.Adjust(stale.ID, func(x *model.PlayerListing) error {
		x.ExpiresAt = *now - (m.cfg.Retention + time.Hour).Microseconds()
		return nil
	})

	m.sweep()

	if _, ok := m.Get(collected.ID); ok {
		t.Error("collected listing should be swept")
	}
	if _, ok := m.Get(graced.ID); !ok {
		t.Error("listing inside retention window should survive the sweep")
	}
	if _, ok := m.Get(stale.ID); ok {
		t.Error("listing past retention should be swept")
	}
	if got := flusher.deleteCount(); got != 2 {
		t.Errorf("enqueued deletes = %d, want 2", got)
	}
}

func TestLifecycle(t *testing.T) {
	mem := store.NewMemory()
	stored := model.PlayerListing{
		ID:        uuid.New(),
		SellerID:  "s",
		Quantity:  5,
		PriceEach: 100,
		ExpiresAt: time.Now().Add(time.Hour).UnixMicro(),
	}
	mem.UpsertListings(context.Background(), []model.PlayerListing{stored})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Hour // Keep the loop quiet during the test
	m := New(cfg, mem, &captureFlusher{}, logger)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, ok := m.Get(stored.ID); !ok {
		t.Error("stored listing not loaded")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if got := m.Count(); got != 0 {
		t.Errorf("Count() after shutdown = %d, want 0", got)
	}
}

func TestReloadKeepsLoaded(t *testing.T) {
	m, mem, _, _ := newTestMarket(t)
	ctx := context.Background()

	local, err := m.Create(ctx, "s", "S", model.ItemDescriptor{Type: "diamond"}, 5, 100)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// The store holds a stale copy of the loaded listing and a new one.
	staleCopy := local
	staleCopy.Sold = 99
	fresh := model.PlayerListing{ID: uuid.New(), SellerID: "other", Quantity: 1, PriceEach: 50}
	mem.UpsertListings(ctx, []model.PlayerListing{staleCopy, fresh})

	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	got, _ := m.Get(local.ID)
	if got.Sold != 0 {
		t.Errorf("Sold = %d, want 0 (loaded copy wins over store)", got.Sold)
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Error("new stored listing not picked up by reload")
	}
}

func TestReloadSkipsSweptListing(t *testing.T) {
	m, mem, _, _ := newTestMarket(t)
	ctx := context.Background()

	listing, err := m.Create(ctx, "s", "S", model.ItemDescriptor{Type: "diamond"}, 5, 100)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// The upsert flushed before collection, so the stored copy is still
	// uncollected; the collect and the sweep's delete are queued.
	mem.UpsertListings(ctx, []model.PlayerListing{listing})
	m.Adjust(listing.ID, func(l *model.PlayerListing) error {
		l.Collected = true
		return nil
	})
	m.sweep()

	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if _, ok := m.Get(listing.ID); ok {
		t.Error("swept listing resurrected from the stale store view")
	}

	// Once the delete reaches the store, the tombstone is dropped.
	mem.DeleteListings(ctx, []uuid.UUID{listing.ID})
	if err := m.Reload(ctx); err != nil {
		t.Fatalf("second Reload failed: %v", err)
	}
	m.mu.RLock()
	tombstones := len(m.deleted)
	m.mu.RUnlock()
	if tombstones != 0 {
		t.Errorf("tombstones after flushed delete = %d, want 0", tombstones)
	}
}
