package flush

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
)

// pending accumulates requests between flushes. Upserts for the same record
// collapse so only the latest state is written.
type pending struct {
	accounts       map[string]model.Account
	accountDones   map[string]func()
	shopUpserts    map[uuid.UUID]model.SignShop
	shopDeletes    []uuid.UUID
	listingUpserts map[uuid.UUID]model.PlayerListing
	listingDeletes []uuid.UUID
	transactions   []model.TransactionRecord
}

func newPending() *pending {
	return &pending{
		accounts:       make(map[string]model.Account),
		accountDones:   make(map[string]func()),
		shopUpserts:    make(map[uuid.UUID]model.SignShop),
		listingUpserts: make(map[uuid.UUID]model.PlayerListing),
	}
}

func (p *pending) add(r Request) {
	switch r.Kind {
	case KindAccount:
		p.accounts[r.Account.PlayerID] = r.Account
		if r.Done != nil {
			p.accountDones[r.Account.PlayerID] = r.Done
		} else {
			// A plain write voids any earlier callback for the player; the
			// snapshot it was armed for is no longer what gets written.
			delete(p.accountDones, r.Account.PlayerID)
		}
	case KindShopUpsert:
		p.shopUpserts[r.Shop.ID] = r.Shop
	case KindShopDelete:
		// A delete supersedes any buffered upsert for the same shop.
		delete(p.shopUpserts, r.DeleteID)
		p.shopDeletes = append(p.shopDeletes, r.DeleteID)
	case KindListingUpsert:
		p.listingUpserts[r.Listing.ID] = r.Listing
	case KindListingDelete:
		delete(p.listingUpserts, r.DeleteID)
		p.listingDeletes = append(p.listingDeletes, r.DeleteID)
	case KindTransaction:
		p.transactions = append(p.transactions, r.Transaction)
	}
}

// mergeUnder folds a failed snapshot back in. Entries already re-queued since
// the failure are newer and win.
func (p *pending) mergeUnder(old *pending) {
	for id, a := range old.accounts {
		if _, ok := p.accounts[id]; !ok {
			p.accounts[id] = a
			if done, ok := old.accountDones[id]; ok {
				p.accountDones[id] = done
			}
		}
	}
	for id, s := range old.shopUpserts {
		if _, ok := p.shopUpserts[id]; !ok {
			p.shopUpserts[id] = s
		}
	}
	for id, l := range old.listingUpserts {
		if _, ok := p.listingUpserts[id]; !ok {
			p.listingUpserts[id] = l
		}
	}
	p.shopDeletes = append(old.shopDeletes, p.shopDeletes...)
	p.listingDeletes = append(old.listingDeletes, p.listingDeletes...)
	p.transactions = append(old.transactions, p.transactions...)
}

func (p *pending) size() int {
	return len(p.accounts) + len(p.shopUpserts) + len(p.shopDeletes) +
		len(p.listingUpserts) + len(p.listingDeletes) + len(p.transactions)
}

// Worker is the asynchronous write-back worker.
type Worker struct {
	cfg    Config
	store  store.Store
	logger *slog.Logger

	queue *Queue[Request]

	mu       sync.Mutex
	pending  *pending
	attempts int
	retryAt  time.Time
	metrics  Metrics

	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a flush worker over the given store.
func NewWorker(cfg Config, st store.Store, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:     cfg,
		store:   st,
		logger:  logger,
		queue:   NewQueue[Request](cfg.BufferSize),
		pending: newPending(),
	}
}

// -----------------------------------------------------------------------------
// Producer API
// -----------------------------------------------------------------------------

// Enqueue adds a request for write-back. Never blocks on I/O.
func (w *Worker) Enqueue(r Request) {
	if !w.queue.Push(r) {
		w.logger.Warn("flush queue closed, request dropped", "kind", r.Kind.String())
	}
}

// EnqueueAccount schedules an account upsert.
func (w *Worker) EnqueueAccount(a model.Account) {
	w.Enqueue(Request{Kind: KindAccount, Account: a})
}

// EnqueueAccountFlushed schedules an account upsert and calls flushed once
// the record is durably written. A later write for the same player cancels
// the callback.
func (w *Worker) EnqueueAccountFlushed(a model.Account, flushed func()) {
	w.Enqueue(Request{Kind: KindAccount, Account: a, Done: flushed})
}

// EnqueueShop schedules a sign shop upsert.
func (w *Worker) EnqueueShop(s model.SignShop) {
	w.Enqueue(Request{Kind: KindShopUpsert, Shop: s})
}

// EnqueueShopDelete schedules a sign shop delete.
func (w *Worker) EnqueueShopDelete(id uuid.UUID) {
	w.Enqueue(Request{Kind: KindShopDelete, DeleteID: id})
}

// EnqueueListing schedules a listing upsert.
func (w *Worker) EnqueueListing(l model.PlayerListing) {
	w.Enqueue(Request{Kind: KindListingUpsert, Listing: l})
}

// EnqueueListingDelete schedules a listing delete.
func (w *Worker) EnqueueListingDelete(id uuid.UUID) {
	w.Enqueue(Request{Kind: KindListingDelete, DeleteID: id})
}

// EnqueueTransaction schedules a transaction log append.
func (w *Worker) EnqueueTransaction(t model.TransactionRecord) {
	w.Enqueue(Request{Kind: KindTransaction, Transaction: t})
}

// QueueDepth returns the number of requests not yet batched.
func (w *Worker) QueueDepth() int {
	return w.queue.Len()
}

// PendingSize returns the number of records awaiting flush.
func (w *Worker) PendingSize() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending.size()
}

// Stats returns current metrics.
func (w *Worker) Stats() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start begins consuming requests and writing batches.
func (w *Worker) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("flush worker started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains pending writes within the context deadline. Anything still
// unflushed when the deadline expires is logged record by record.
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("stopping flush worker")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("flush worker stop timed out waiting for loops")
	}

	// Pull whatever the consume loop did not get to.
	w.mu.Lock()
	for _, r := range w.queue.Drain(0) {
		w.pending.add(r)
	}
	w.mu.Unlock()
	w.queue.Close()

	// Final drain with retries until the deadline.
	for {
		if w.PendingSize() == 0 {
			w.logger.Info("flush worker stopped, all writes drained")
			return nil
		}
		if err := w.flushOnce(ctx, true); err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			w.logUnflushed()
			return fmt.Errorf("%w: shutdown drain incomplete: %w", ErrPersistenceFailure, ctx.Err())
		case <-time.After(w.cfg.RetryBaseDelay):
		}
	}
}

// -----------------------------------------------------------------------------
// Loops
// -----------------------------------------------------------------------------

func (w *Worker) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			req, ok := w.queue.TryPop()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.mu.Lock()
			w.pending.add(req)
			full := w.pending.size() >= w.cfg.BatchSize
			w.mu.Unlock()

			if full {
				w.flushOnce(w.ctx, false)
			}
		}
	}
}

func (w *Worker) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flushOnce(w.ctx, false)
		}
	}
}

// flushOnce writes the current pending set. With force set, the retry
// backoff window is ignored (used during shutdown drain).
func (w *Worker) flushOnce(ctx context.Context, force bool) error {
	w.mu.Lock()
	if w.pending.size() == 0 {
		w.mu.Unlock()
		return nil
	}
	if !force && time.Now().Before(w.retryAt) {
		w.mu.Unlock()
		return nil
	}
	snapshot := w.pending
	w.pending = newPending()
	w.mu.Unlock()

	start := time.Now()
	err := w.write(ctx, snapshot)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	w.mu.Lock()

	if err != nil {
		w.metrics.Failures++
		w.attempts++

		if w.cfg.MaxRetries > 0 && w.attempts > w.cfg.MaxRetries {
			w.logger.Error("flush retries exhausted, dropping batch",
				"error", err,
				"records", snapshot.size(),
				"attempts", w.attempts,
			)
			logRecords(w.logger, snapshot)
			w.metrics.Dropped += int64(snapshot.size())
			w.attempts = 0
			w.retryAt = time.Time{}
			w.mu.Unlock()
			return err
		}

		// Exponential backoff, capped.
		shift := w.attempts - 1
		if shift > 16 {
			shift = 16
		}
		delay := w.cfg.RetryBaseDelay << shift
		if max := 30 * time.Second; delay > max {
			delay = max
		}
		w.retryAt = time.Now().Add(delay)
		w.metrics.Retries++
		w.pending.mergeUnder(snapshot)

		w.logger.Error("flush failed, will retry",
			"error", err,
			"records", w.pending.size(),
			"attempt", w.attempts,
			"retry_in", delay,
		)
		w.mu.Unlock()
		return err
	}

	w.attempts = 0
	w.retryAt = time.Time{}
	w.metrics.Flushes++
	w.metrics.Writes += int64(snapshot.size())
	w.mu.Unlock()

	// Confirmation callbacks run outside the worker lock; they may call back
	// into producers that are themselves enqueueing.
	for _, done := range snapshot.accountDones {
		done()
	}

	w.logger.Debug("flushed dirty records",
		"count", snapshot.size(),
		"duration", time.Since(start),
	)
	return nil
}

// write pushes one snapshot to the store, group by group.
func (w *Worker) write(ctx context.Context, p *pending) error {
	if len(p.accounts) > 0 {
		accounts := make([]model.Account, 0, len(p.accounts))
		now := time.Now().UnixMicro()
		for _, a := range p.accounts {
			a.LastSyncAt = now
			accounts = append(accounts, a)
		}
		if err := w.store.UpsertAccounts(ctx, accounts); err != nil {
			return err
		}
	}
	if len(p.shopUpserts) > 0 {
		shops := make([]model.SignShop, 0, len(p.shopUpserts))
		for _, s := range p.shopUpserts {
			shops = append(shops, s)
		}
		if err := w.store.UpsertSignShops(ctx, shops); err != nil {
			return err
		}
	}
	if len(p.shopDeletes) > 0 {
		if err := w.store.DeleteSignShops(ctx, p.shopDeletes); err != nil {
			return err
		}
	}
	if len(p.listingUpserts) > 0 {
		listings := make([]model.PlayerListing, 0, len(p.listingUpserts))
		for _, l := range p.listingUpserts {
			listings = append(listings, l)
		}
		if err := w.store.UpsertListings(ctx, listings); err != nil {
			return err
		}
	}
	if len(p.listingDeletes) > 0 {
		if err := w.store.DeleteListings(ctx, p.listingDeletes); err != nil {
			return err
		}
	}
	if len(p.transactions) > 0 {
		if err := w.store.AppendTransactions(ctx, p.transactions); err != nil {
			return err
		}
	}
	return nil
}

// logUnflushed reports every record that could not be written before
// shutdown completed.
func (w *Worker) logUnflushed() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logger.Error("shutdown drain incomplete, unflushed records follow",
		"records", w.pending.size(),
	)
	logRecords(w.logger, w.pending)
	w.metrics.Dropped += int64(w.pending.size())
}

func logRecords(logger *slog.Logger, p *pending) {
	for id, a := range p.accounts {
		logger.Error("unflushed account", "player_id", id, "balance", int64(a.Balance))
	}
	for id := range p.shopUpserts {
		logger.Error("unflushed sign shop", "shop_id", id.String())
	}
	for _, id := range p.shopDeletes {
		logger.Error("unflushed shop delete", "shop_id", id.String())
	}
	for id, l := range p.listingUpserts {
		logger.Error("unflushed listing", "listing_id", id.String(), "sold", l.Sold, "collected", l.Collected)
	}
	for _, id := range p.listingDeletes {
		logger.Error("unflushed listing delete", "listing_id", id.String())
	}
	for _, t := range p.transactions {
		logger.Error("unflushed transaction", "tx_id", t.ID.String(), "kind", string(t.Kind))
	}
}
