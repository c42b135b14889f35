package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vonix-Network/VonixCore-sub003/internal/economy"
	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
)

var (
	// ErrListingExpired: the listing's expiry time has passed.
	ErrListingExpired = errors.New("listing expired")
	// ErrListingSoldOut: every unit has been sold.
	ErrListingSoldOut = errors.New("listing sold out")
	// ErrAlreadyCollected: the seller has already claimed this listing.
	ErrAlreadyCollected = errors.New("listing already collected")
	// ErrNotOwner: the caller is not the listing's seller.
	ErrNotOwner = errors.New("not the listing owner")
	// ErrListingLimit: the seller is at the per-player listing cap.
	ErrListingLimit = errors.New("listing limit reached")
)

// Flusher receives listing changes for asynchronous write-back.
type Flusher interface {
	EnqueueListing(model.PlayerListing)
	EnqueueListingDelete(uuid.UUID)
}

// Config holds player market settings.
type Config struct {
	ListingDuration      time.Duration
	MaxListingsPerPlayer int
	SweepInterval        time.Duration
	Retention            time.Duration // Kept after expiry before purge
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListingDuration:      48 * time.Hour,
		MaxListingsPerPlayer: 8,
		SweepInterval:        5 * time.Minute,
		Retention:            7 * 24 * time.Hour,
	}
}

// Market is the player market subsystem.
type Market struct {
	cfg     Config
	store   store.ListingStore
	flusher Flusher
	logger  *slog.Logger

	mu       sync.RWMutex
	listings map[uuid.UUID]*model.PlayerListing

	// deleted tombstones swept listings whose delete is still queued in the
	// flush worker, so a reload cannot resurrect them from the stale store
	// view and reopen a collected listing.
	deleted map[uuid.UUID]struct{}

	nowFn func() int64 // Overridden in tests

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the subsystem. Initialize must be called before use.
func New(cfg Config, st store.ListingStore, flusher Flusher, logger *slog.Logger) *Market {
	if logger == nil {
		logger = slog.Default()
	}
	return &Market{
		cfg:      cfg,
		store:    st,
		flusher:  flusher,
		logger:   logger,
		listings: make(map[uuid.UUID]*model.PlayerListing),
		deleted:  make(map[uuid.UUID]struct{}),
		nowFn:    func() int64 { return time.Now().UnixMicro() },
	}
}

// Name identifies the subsystem to the registry.
func (m *Market) Name() string { return "market" }

// Initialize loads all listings and starts the expiry sweep loop.
func (m *Market) Initialize(ctx context.Context) error {
	listings, err := m.store.ListListings(ctx)
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}

	m.mu.Lock()
	for i := range listings {
		l := listings[i]
		m.listings[l.ID] = &l
	}
	count := len(m.listings)
	m.mu.Unlock()

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.wg.Add(1)
	go m.sweepLoop()

	m.logger.Info("player market initialized", "listings", count)
	return nil
}

// Shutdown stops the sweep loop and clears the cache.
func (m *Market) Shutdown(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("player market shutdown timed out")
	}

	m.mu.Lock()
	m.listings = make(map[uuid.UUID]*model.PlayerListing)
	m.deleted = make(map[uuid.UUID]struct{})
	m.mu.Unlock()
	return nil
}

// Reload re-reads the store. In-memory listings win: while loaded they are
// the single-writer copy, so the stored row is never fresher. Swept listings
// with a queued delete are skipped instead of resurrected.
func (m *Market) Reload(ctx context.Context) error {
	listings, err := m.store.ListListings(ctx)
	if err != nil {
		return fmt.Errorf("reload listings: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make(map[uuid.UUID]struct{}, len(listings))
	for i := range listings {
		l := listings[i]
		stored[l.ID] = struct{}{}
		if _, gone := m.deleted[l.ID]; gone {
			continue
		}
		if _, loaded := m.listings[l.ID]; !loaded {
			m.listings[l.ID] = &l
		}
	}
	// Tombstones absent from the store view have flushed; drop them.
	for id := range m.deleted {
		if _, still := stored[id]; !still {
			delete(m.deleted, id)
		}
	}
	m.logger.Info("player market reloaded", "listings", len(m.listings))
	return nil
}

// Count returns the number of cached listings.
func (m *Market) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listings)
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// Get returns a listing by id.
func (m *Market) Get(id uuid.UUID) (model.PlayerListing, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	if !ok {
		return model.PlayerListing{}, false
	}
	return *l, true
}

// Active returns listings still open for purchase.
func (m *Market) Active() []model.PlayerListing {
	now := m.nowFn()
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.PlayerListing
	for _, l := range m.listings {
		if !l.Collected && !l.IsSoldOut() && !l.IsExpired(now) {
			out = append(out, *l)
		}
	}
	return out
}

// BySeller returns all of a seller's listings, collected or not.
func (m *Market) BySeller(sellerID string) []model.PlayerListing {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.PlayerListing
	for _, l := range m.listings {
		if l.SellerID == sellerID {
			out = append(out, *l)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// Create opens a new listing with an immutable item snapshot.
func (m *Market) Create(ctx context.Context, sellerID, sellerName string, item model.ItemDescriptor, quantity int, priceEach model.Money) (model.PlayerListing, error) {
	if quantity < 1 || priceEach <= 0 {
		return model.PlayerListing{}, economy.ErrInvalidAmount
	}

	now := m.nowFn()

	m.mu.Lock()
	defer m.mu.Unlock()

	open := 0
	for _, l := range m.listings {
		if l.SellerID == sellerID && !l.Collected {
			open++
		}
	}
	if open >= m.cfg.MaxListingsPerPlayer {
		return model.PlayerListing{}, ErrListingLimit
	}

	listing := model.PlayerListing{
		ID:         uuid.New(),
		SellerID:   sellerID,
		SellerName: sellerName,
		Item:       item,
		Quantity:   quantity,
		PriceEach:  priceEach,
		CreatedAt:  now,
		ExpiresAt:  now + m.cfg.ListingDuration.Microseconds(),
	}

	m.listings[listing.ID] = &listing
	m.flusher.EnqueueListing(listing)

	m.logger.Info("listing created",
		"listing_id", listing.ID.String(),
		"seller", sellerName,
		"quantity", quantity,
		"price_each", int64(priceEach),
	)
	return listing, nil
}

// Adjust applies fn to the listing under the market lock and enqueues
// write-back if fn succeeds. fn sees the live record; returning an error
// leaves it untouched only if fn itself made no changes, so callers mutate
// last, after all checks pass.
func (m *Market) Adjust(id uuid.UUID, fn func(*model.PlayerListing) error) (model.PlayerListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return model.PlayerListing{}, store.ErrNotFound
	}
	if err := fn(l); err != nil {
		return *l, err
	}
	m.flusher.EnqueueListing(*l)
	return *l, nil
}

// Now returns the market's current time in µs since epoch.
func (m *Market) Now() int64 { return m.nowFn() }

// -----------------------------------------------------------------------------
// Sweep
// -----------------------------------------------------------------------------

func (m *Market) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep removes collected listings and listings whose retention window after
// expiry has lapsed. Expired-but-uncollected listings inside the window stay
// so the seller can still collect.
func (m *Market) sweep() {
	now := m.nowFn()
	cutoff := now - m.cfg.Retention.Microseconds()

	m.mu.Lock()
	var victims []uuid.UUID
	for id, l := range m.listings {
		if l.Collected || l.ExpiresAt < cutoff {
			victims = append(victims, id)
		}
	}
	for _, id := range victims {
		delete(m.listings, id)
		m.deleted[id] = struct{}{}
		m.flusher.EnqueueListingDelete(id)
	}
	m.mu.Unlock()

	if len(victims) > 0 {
		m.logger.Info("swept listings", "count", len(victims))
	}
}
