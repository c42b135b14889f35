package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
)

// Memory implements Store entirely in memory. Used by tests and by the
// standalone mode where no database is configured.
type Memory struct {
	mu           sync.RWMutex
	accounts     map[string]model.Account
	shops        map[uuid.UUID]model.SignShop
	listings     map[uuid.UUID]model.PlayerListing
	transactions []model.TransactionRecord

	err error // Injected failure for tests
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]model.Account),
		shops:    make(map[uuid.UUID]model.SignShop),
		listings: make(map[uuid.UUID]model.PlayerListing),
	}
}

// SetError makes every subsequent operation fail with err until cleared.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

func (m *Memory) GetAccount(ctx context.Context, playerID string) (model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return model.Account{}, m.err
	}
	acct, ok := m.accounts[playerID]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return acct, nil
}

func (m *Memory) UpsertAccounts(ctx context.Context, accounts []model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, a := range accounts {
		a.Dirty = false
		m.accounts[a.PlayerID] = a
	}
	return nil
}

func (m *Memory) TopAccounts(ctx context.Context, n int) ([]model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Balance > out[j].Balance })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Sign shops
// -----------------------------------------------------------------------------

func (m *Memory) GetSignShop(ctx context.Context, id uuid.UUID) (model.SignShop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return model.SignShop{}, m.err
	}
	s, ok := m.shops[id]
	if !ok {
		return model.SignShop{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) ListSignShops(ctx context.Context) ([]model.SignShop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.SignShop, 0, len(m.shops))
	for _, s := range m.shops {
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) UpsertSignShops(ctx context.Context, shops []model.SignShop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, s := range shops {
		s.Dirty = false
		m.shops[s.ID] = s
	}
	return nil
}

func (m *Memory) DeleteSignShops(ctx context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, id := range ids {
		delete(m.shops, id)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Player listings
// -----------------------------------------------------------------------------

func (m *Memory) GetListing(ctx context.Context, id uuid.UUID) (model.PlayerListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return model.PlayerListing{}, m.err
	}
	l, ok := m.listings[id]
	if !ok {
		return model.PlayerListing{}, ErrNotFound
	}
	return l, nil
}

func (m *Memory) ListListings(ctx context.Context) ([]model.PlayerListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.PlayerListing, 0, len(m.listings))
	for _, l := range m.listings {
		out = append(out, l)
	}
	return out, nil
}

func (m *Memory) ListListingsBySeller(ctx context.Context, sellerID string) ([]model.PlayerListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []model.PlayerListing
	for _, l := range m.listings {
		if l.SellerID == sellerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) UpsertListings(ctx context.Context, listings []model.PlayerListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, l := range listings {
		m.listings[l.ID] = l
	}
	return nil
}

func (m *Memory) DeleteListings(ctx context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, id := range ids {
		delete(m.listings, id)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Transaction log
// -----------------------------------------------------------------------------

func (m *Memory) AppendTransactions(ctx context.Context, records []model.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.transactions = append(m.transactions, records...)
	return nil
}

func (m *Memory) RecentTransactions(ctx context.Context, playerID string, limit int) ([]model.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []model.TransactionRecord
	for i := len(m.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.transactions[i].PlayerID == playerID {
			out = append(out, m.transactions[i])
		}
	}
	return out, nil
}
