// Package app wires the economy engine's components together and manages
// their lifecycle. It is the surface an embedding host (or the standalone
// daemon) holds: construct once, Start, use the accessors, Stop.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Vonix-Network/VonixCore-sub003/internal/config"
	"github.com/Vonix-Network/VonixCore-sub003/internal/economy"
	"github.com/Vonix-Network/VonixCore-sub003/internal/engine"
	"github.com/Vonix-Network/VonixCore-sub003/internal/flush"
	"github.com/Vonix-Network/VonixCore-sub003/internal/gateway"
	"github.com/Vonix-Network/VonixCore-sub003/internal/market"
	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
	"github.com/Vonix-Network/VonixCore-sub003/internal/ops"
	"github.com/Vonix-Network/VonixCore-sub003/internal/shops"
	"github.com/Vonix-Network/VonixCore-sub003/internal/signshop"
	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
)

// Collaborators are the host-server interfaces the engine consumes.
type Collaborators struct {
	Inventory gateway.Inventory
	Identity  gateway.Identity
	Resolver  gateway.WorldResolver
	Hooks     gateway.Hooks
}

// Application bundles the economy components behind one lifecycle.
type Application struct {
	cfg        *config.DaemonConfig
	configPath string
	logger     *slog.Logger
	collab     Collaborators

	st       store.Store
	worker   *flush.Worker
	eco      *economy.Service
	registry *shops.Registry
	eng      *engine.Engine
	feed     *ops.Feed
	opsSrv   *ops.Server

	// Set by the registry factories during Start; nil when disabled.
	signShops *signshop.Shops
	mkt       *market.Market
}

// New constructs the application. Nothing runs until Start.
func New(cfg *config.DaemonConfig, configPath string, st store.Store, collab Collaborators, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Application{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		collab:     collab,
		st:         st,
	}

	a.worker = flush.NewWorker(flush.Config{
		BatchSize:       cfg.Flush.BatchSize,
		FlushInterval:   cfg.Flush.FlushInterval,
		BufferSize:      cfg.Flush.BufferSize,
		MaxRetries:      cfg.Flush.MaxRetries,
		RetryBaseDelay:  cfg.Flush.RetryBaseDelay,
		ShutdownTimeout: cfg.Flush.ShutdownTimeout,
	}, st, logger)

	a.feed = ops.NewFeed(logger)

	a.eco = economy.NewService(economy.Config{
		StartingBalance: model.Money(cfg.Economy.StartingBalance),
		CurrencySymbol:  cfg.Economy.CurrencySymbol,
	}, st, a.worker, logger)
	a.eco.SetEventSink(a.feed)

	a.registry = shops.NewRegistry(cfg.Shops, a.factories(), a.reloadShopFlags, logger)

	a.opsSrv = ops.NewServer(ops.Config{
		Enabled: cfg.Ops.Enabled,
		Port:    cfg.Ops.Port,
	}, st, a.eco, a.worker, a.feed, logger)

	return a
}

// factories builds the per-subsystem constructors the registry runs in
// declared order.
func (a *Application) factories() shops.Factories {
	return shops.Factories{
		Chest: func(st store.Store) (shops.Subsystem, error) {
			return shops.NewStatic("chest", a.logger), nil
		},
		Sign: func(st store.Store) (shops.Subsystem, error) {
			a.signShops = signshop.New(st, a.worker, a.collab.Resolver, a.logger)
			return a.signShops, nil
		},
		Server: func(st store.Store) (shops.Subsystem, error) {
			return shops.NewStatic("server", a.logger), nil
		},
		Market: func(st store.Store) (shops.Subsystem, error) {
			a.mkt = market.New(market.Config{
				ListingDuration:      a.cfg.Market.ListingDuration,
				MaxListingsPerPlayer: a.cfg.Market.MaxListingsPerPlayer,
				SweepInterval:        a.cfg.Market.SweepInterval,
				Retention:            a.cfg.Market.Retention,
			}, st, a.worker, a.logger)
			return a.mkt, nil
		},
	}
}

// reloadShopFlags re-reads the shop flags from the config file.
func (a *Application) reloadShopFlags() (config.ShopsConfig, error) {
	if a.configPath == "" {
		return a.cfg.Shops, nil
	}
	cfg, err := config.LoadAndValidate(a.configPath)
	if err != nil {
		return config.ShopsConfig{}, err
	}
	return cfg.Shops, nil
}

// Start brings the components up: flush worker, shop registry, transaction
// engine, hook subscriptions, ops surface.
func (a *Application) Start(ctx context.Context) error {
	if err := a.worker.Start(ctx); err != nil {
		return fmt.Errorf("start flush worker: %w", err)
	}

	if err := a.registry.Initialize(ctx, a.st); err != nil {
		return fmt.Errorf("initialize shop registry: %w", err)
	}

	a.eng = engine.New(a.eco, a.signShops, a.mkt, a.collab.Inventory, a.logger)

	if a.collab.Hooks != nil {
		a.eco.Subscribe(a.collab.Hooks)
	}

	if err := a.opsSrv.Start(ctx); err != nil {
		return fmt.Errorf("start ops server: %w", err)
	}

	a.logger.Info("economy application started",
		"sign_shops", a.registry.IsSignEnabled(),
		"player_market", a.registry.IsMarketEnabled(),
	)
	return nil
}

// Stop shuts everything down in reverse order, draining dirty writes last.
func (a *Application) Stop(ctx context.Context) error {
	var firstErr error

	if err := a.opsSrv.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.registry.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.eco.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Flush.ShutdownTimeout)
	defer cancel()
	if err := a.worker.Stop(drainCtx); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Reload re-reads configuration and cascades to active subsystems.
func (a *Application) Reload(ctx context.Context) error {
	return a.registry.Reload(ctx)
}

// Economy returns the economy service.
func (a *Application) Economy() *economy.Service { return a.eco }

// Engine returns the transaction engine. Nil before Start.
func (a *Application) Engine() *engine.Engine { return a.eng }

// Registry returns the shop registry.
func (a *Application) Registry() *shops.Registry { return a.registry }

// SignShops returns the sign shop subsystem; nil when disabled.
func (a *Application) SignShops() *signshop.Shops { return a.signShops }

// Market returns the player market subsystem; nil when disabled.
func (a *Application) Market() *market.Market { return a.mkt }

// Worker returns the flush worker.
func (a *Application) Worker() *flush.Worker { return a.worker }
