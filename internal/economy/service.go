package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vonix-Network/VonixCore-sub003/internal/gateway"
	"github.com/Vonix-Network/VonixCore-sub003/internal/keylock"
	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
)

var (
	// ErrInvalidAmount: the amount is zero, negative, or otherwise unusable.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds: a withdrawal exceeds the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotLoaded: the account could not be materialized from the store.
	ErrAccountNotLoaded = errors.New("account not loaded")
)

// Flusher receives dirty records for asynchronous write-back.
// EnqueueAccountFlushed reports durability: the callback fires once the
// record reached the store, and is cancelled by a later write for the same
// player.
type Flusher interface {
	EnqueueAccount(model.Account)
	EnqueueAccountFlushed(model.Account, func())
	EnqueueTransaction(model.TransactionRecord)
}

// EventSink receives successful transaction records as they happen.
// Used by the ops live feed; nil disables emission.
type EventSink interface {
	EconomyEvent(model.TransactionRecord)
}

// Config holds economy service settings.
type Config struct {
	StartingBalance model.Money // Granted when a player first appears
	CurrencySymbol  string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		StartingBalance: 10000,
		CurrencySymbol:  "$",
	}
}

// Service is the economy service over the account cache.
type Service struct {
	cfg     Config
	store   store.AccountStore
	flusher Flusher
	logger  *slog.Logger

	locks *keylock.Table

	// mu guards the cache map and the fields of the cached structs. Writers
	// additionally hold the player's keylock, so reads under the keylock
	// alone (Balance, the withdraw check) are stable without mu.
	mu    sync.RWMutex
	cache map[string]*model.Account

	sink EventSink

	wg sync.WaitGroup // In-flight async loads
}

// NewService creates the economy service.
func NewService(cfg Config, st store.AccountStore, flusher Flusher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		store:   st,
		flusher: flusher,
		logger:  logger,
		locks:   keylock.New(),
		cache:   make(map[string]*model.Account),
	}
}

// SetEventSink sets the sink for transaction events. Must be called before
// the service starts handling traffic.
func (s *Service) SetEventSink(sink EventSink) {
	s.sink = sink
}

// Subscribe wires the service to the host server's connect/disconnect hooks.
func (s *Service) Subscribe(hooks gateway.Hooks) {
	hooks.OnPlayerConnect(func(playerID, name string) {
		s.LoadAsync(context.Background(), playerID)
	})
	hooks.OnPlayerDisconnect(func(playerID string) {
		s.Unload(context.Background(), playerID)
	})
}

// Stop waits for in-flight async loads to settle.
func (s *Service) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CacheSize returns the number of online accounts. For diagnostics.
func (s *Service) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// Balance returns the player's balance, materializing the account on a cache
// miss. It never returns a stale pre-initialization value.
func (s *Service) Balance(ctx context.Context, playerID string) (model.Money, error) {
	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	acct, err := s.materialize(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// TopBalances returns the n richest accounts, merging any unflushed cached
// balances over the stored view.
func (s *Service) TopBalances(ctx context.Context, n int) ([]model.Account, error) {
	// Over-fetch so cached entries pushed down by dirty balances still rank.
	stored, err := s.store.TopAccounts(ctx, n+s.CacheSize())
	if err != nil {
		return nil, fmt.Errorf("top accounts: %w", err)
	}

	merged := make(map[string]model.Account, len(stored))
	for _, a := range stored {
		merged[a.PlayerID] = a
	}
	s.mu.RLock()
	for id, a := range s.cache {
		merged[id] = *a
	}
	s.mu.RUnlock()

	out := make([]model.Account, 0, len(merged))
	for _, a := range merged {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Balance > out[j].Balance })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Lifecycle per player
// -----------------------------------------------------------------------------

// LoadAsync fetches or creates the account in the background, so the first
// synchronous Balance call after connect finds a warm cache. A miss is not
// fatal: Balance self-heals by materializing on demand.
func (s *Service) LoadAsync(ctx context.Context, playerID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.locks.Lock(playerID)
		defer s.locks.Unlock(playerID)

		if _, err := s.materialize(ctx, playerID); err != nil {
			s.logger.Error("async balance load failed",
				"player_id", playerID,
				"error", err,
			)
		}
	}()
}

// Unload schedules the player's dirty balance for write-back. A clean entry
// is evicted immediately; a dirty one stays cached and readable until the
// flush worker confirms the write landed, so a quick reconnect can never
// observe a balance older than the player's last mutation. The per-player
// lock orders the unload after any mutation already admitted.
func (s *Service) Unload(ctx context.Context, playerID string) {
	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	s.mu.Lock()
	acct, ok := s.cache[playerID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if !acct.Dirty {
		delete(s.cache, playerID)
		s.mu.Unlock()
		return
	}
	snapshot := *acct
	s.mu.Unlock()

	s.flusher.EnqueueAccountFlushed(snapshot, func() {
		s.evictFlushed(playerID, snapshot.Balance)
	})
}

// evictFlushed drops the cache entry once its balance is durable. A mutation
// after the unload changes the balance and voids the eviction; the entry is
// live again and a later unload re-arms it.
func (s *Service) evictFlushed(playerID string, flushed model.Money) {
	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.cache[playerID]; ok && acct.Balance == flushed {
		delete(s.cache, playerID)
	}
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// Deposit adds amount to the player's balance. Fails with ErrInvalidAmount
// if amount <= 0. Returns the new balance.
func (s *Service) Deposit(ctx context.Context, playerID string, amount model.Money) (model.Money, error) {
	return s.DepositFor(ctx, playerID, amount, model.TxDeposit, "", "")
}

// DepositFor is Deposit with an explicit transaction kind, counterparty, and
// reference for the audit log. Used by the transaction engine so shop and
// market credits are logged under their own kind.
func (s *Service) DepositFor(ctx context.Context, playerID string, amount model.Money, kind model.TransactionKind, counterparty, ref string) (model.Money, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	acct, err := s.materialize(ctx, playerID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	acct.Balance += amount
	acct.Dirty = true
	snapshot := *acct
	s.mu.Unlock()

	s.flusher.EnqueueAccount(snapshot)
	s.record(kind, playerID, counterparty, amount, snapshot.Balance, ref)

	return snapshot.Balance, nil
}

// Withdraw subtracts amount from the player's balance. Fails with
// ErrInvalidAmount if amount <= 0 and ErrInsufficientFunds if amount exceeds
// the balance; the balance is unchanged on failure.
func (s *Service) Withdraw(ctx context.Context, playerID string, amount model.Money) (model.Money, error) {
	return s.WithdrawFor(ctx, playerID, amount, model.TxWithdraw, "", "")
}

// WithdrawFor is Withdraw with an explicit transaction kind, counterparty,
// and reference for the audit log.
func (s *Service) WithdrawFor(ctx context.Context, playerID string, amount model.Money, kind model.TransactionKind, counterparty, ref string) (model.Money, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	acct, err := s.materialize(ctx, playerID)
	if err != nil {
		return 0, err
	}

	if amount > acct.Balance {
		return acct.Balance, ErrInsufficientFunds
	}

	s.mu.Lock()
	acct.Balance -= amount
	acct.Dirty = true
	snapshot := *acct
	s.mu.Unlock()

	s.flusher.EnqueueAccount(snapshot)
	s.record(kind, playerID, counterparty, -amount, snapshot.Balance, ref)

	return snapshot.Balance, nil
}

// SetBalance replaces the balance unconditionally. Fails with
// ErrInvalidAmount if amount < 0.
func (s *Service) SetBalance(ctx context.Context, playerID string, amount model.Money) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	acct, err := s.materialize(ctx, playerID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	acct.Balance = amount
	acct.Dirty = true
	snapshot := *acct
	s.mu.Unlock()

	s.flusher.EnqueueAccount(snapshot)
	s.record(model.TxSetBalance, playerID, "", amount, snapshot.Balance, "")

	return nil
}

// ResetBalance sets the balance back to the configured starting balance.
func (s *Service) ResetBalance(ctx context.Context, playerID string) error {
	return s.SetBalance(ctx, playerID, s.cfg.StartingBalance)
}

// Transfer moves amount from one player to another, all or nothing. Locks
// are taken in a canonical order so concurrent opposite transfers cannot
// deadlock.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount model.Money) error {
	if amount <= 0 || fromID == toID {
		return ErrInvalidAmount
	}

	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	s.locks.Lock(first)
	defer s.locks.Unlock(first)
	s.locks.Lock(second)
	defer s.locks.Unlock(second)

	from, err := s.materialize(ctx, fromID)
	if err != nil {
		return err
	}
	to, err := s.materialize(ctx, toID)
	if err != nil {
		return err
	}

	if amount > from.Balance {
		return ErrInsufficientFunds
	}

	s.mu.Lock()
	from.Balance -= amount
	from.Dirty = true
	to.Balance += amount
	to.Dirty = true
	fromSnap, toSnap := *from, *to
	s.mu.Unlock()

	s.flusher.EnqueueAccount(fromSnap)
	s.flusher.EnqueueAccount(toSnap)
	s.record(model.TxTransfer, fromID, toID, -amount, fromSnap.Balance, "")
	s.record(model.TxTransfer, toID, fromID, amount, toSnap.Balance, "")

	return nil
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

// materialize returns the cached account, loading or creating it on a miss.
// Caller must hold the player's lock.
func (s *Service) materialize(ctx context.Context, playerID string) (*model.Account, error) {
	s.mu.RLock()
	acct, ok := s.cache[playerID]
	s.mu.RUnlock()
	if ok {
		return acct, nil
	}

	stored, err := s.store.GetAccount(ctx, playerID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		stored = model.Account{
			PlayerID: playerID,
			Balance:  s.cfg.StartingBalance,
			Dirty:    true,
		}
		s.flusher.EnqueueAccount(stored)
		s.logger.Info("created account",
			"player_id", playerID,
			"starting_balance", int64(stored.Balance),
		)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrAccountNotLoaded, err)
	}

	acct = &stored
	s.mu.Lock()
	s.cache[playerID] = acct
	s.mu.Unlock()

	return acct, nil
}

// record emits a transaction log entry and, if set, an event.
func (s *Service) record(kind model.TransactionKind, playerID, counterparty string, amount, after model.Money, ref string) {
	rec := model.TransactionRecord{
		ID:           uuid.New(),
		TS:           time.Now().UnixMicro(),
		Kind:         kind,
		PlayerID:     playerID,
		Counterparty: counterparty,
		Amount:       amount,
		BalanceAfter: after,
		Ref:          ref,
	}
	s.flusher.EnqueueTransaction(rec)
	if s.sink != nil {
		s.sink.EconomyEvent(rec)
	}
}
