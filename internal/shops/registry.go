// Package shops implements the shop registry: lifecycle orchestration for
// the chest, sign, server, and player-market shop subsystems.
package shops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Vonix-Network/VonixCore-sub003/internal/config"
	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
)

// ErrFeatureDisabled: the operation targets a subsystem the configuration
// has switched off. Command boundaries treat it as a silent no-op.
var ErrFeatureDisabled = errors.New("shop feature disabled")

// ErrAlreadyInitialized: Initialize was called on a live registry.
var ErrAlreadyInitialized = errors.New("shop registry already initialized")

// Subsystem is one shop subsystem under registry management.
type Subsystem interface {
	Name() string
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Reload(ctx context.Context) error
}

// Factory constructs a subsystem against the shared store handle.
type Factory func(st store.Store) (Subsystem, error)

// Factories supplies one factory per subsystem, in the fixed init order:
// chest, sign, server, market. A nil factory behaves like a disabled flag.
type Factories struct {
	Chest  Factory
	Sign   Factory
	Server Factory
	Market Factory
}

// ReloadFunc re-reads the shop flags during Registry.Reload.
type ReloadFunc func() (config.ShopsConfig, error)

// Registry owns the shop subsystems' lifecycle.
type Registry struct {
	factories Factories
	reloadCfg ReloadFunc
	logger    *slog.Logger

	mu          sync.Mutex
	cfg         config.ShopsConfig
	initialized bool
	active      []Subsystem // In initialization order
	byName      map[string]Subsystem
}

// NewRegistry creates a registry. Initialize constructs the subsystems.
func NewRegistry(cfg config.ShopsConfig, factories Factories, reloadCfg ReloadFunc, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: factories,
		reloadCfg: reloadCfg,
		logger:    logger,
		cfg:       cfg,
		byName:    make(map[string]Subsystem),
	}
}

// Initialize constructs and initializes every enabled subsystem in declared
// order. On the first failure it shuts down what it already started, stays
// not-initialized, and returns the error.
func (r *Registry) Initialize(ctx context.Context, st store.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return ErrAlreadyInitialized
	}

	ordered := []struct {
		enabled bool
		factory Factory
	}{
		{r.cfg.ChestEnabled, r.factories.Chest},
		{r.cfg.SignEnabled, r.factories.Sign},
		{r.cfg.ServerEnabled, r.factories.Server},
		{r.cfg.MarketEnabled, r.factories.Market},
	}

	for _, entry := range ordered {
		if !entry.enabled || entry.factory == nil {
			continue
		}

		sub, err := entry.factory(st)
		if err != nil {
			r.teardownLocked(ctx)
			return fmt.Errorf("construct shop subsystem: %w", err)
		}
		if err := sub.Initialize(ctx); err != nil {
			r.teardownLocked(ctx)
			return fmt.Errorf("initialize %s shops: %w", sub.Name(), err)
		}

		r.active = append(r.active, sub)
		r.byName[sub.Name()] = sub
		r.logger.Info("shop subsystem initialized", "subsystem", sub.Name())
	}

	r.initialized = true
	return nil
}

// Shutdown shuts down every active subsystem. Calling it on an already
// shut-down (or never initialized) registry is a no-op.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}

	r.teardownLocked(ctx)
	r.initialized = false
	r.logger.Info("shop registry shut down")
	return nil
}

// teardownLocked shuts active subsystems down in reverse init order.
func (r *Registry) teardownLocked(ctx context.Context) {
	for i := len(r.active) - 1; i >= 0; i-- {
		sub := r.active[i]
		if err := sub.Shutdown(ctx); err != nil {
			r.logger.Error("shop subsystem shutdown failed",
				"subsystem", sub.Name(),
				"error", err,
			)
		}
	}
	r.active = nil
	r.byName = make(map[string]Subsystem)
}

// Reload re-reads the shop flags and cascades Reload to every active
// subsystem. A failure in one subsystem does not stop the others; all
// failures are joined in the returned error.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}

	if r.reloadCfg != nil {
		cfg, err := r.reloadCfg()
		if err != nil {
			return fmt.Errorf("reload shop config: %w", err)
		}
		r.cfg = cfg
	}

	var errs []error
	for _, sub := range r.active {
		if err := sub.Reload(ctx); err != nil {
			r.logger.Error("shop subsystem reload failed",
				"subsystem", sub.Name(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("reload %s shops: %w", sub.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// Predicates and accessors
// -----------------------------------------------------------------------------

// enabledLocked reports "constructed AND still enabled by current config".
func (r *Registry) enabledLocked(name string, flag bool) bool {
	_, constructed := r.byName[name]
	return constructed && flag
}

func (r *Registry) IsChestEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabledLocked("chest", r.cfg.ChestEnabled)
}

func (r *Registry) IsSignEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabledLocked("sign", r.cfg.SignEnabled)
}

func (r *Registry) IsServerEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabledLocked("server", r.cfg.ServerEnabled)
}

func (r *Registry) IsMarketEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabledLocked("market", r.cfg.MarketEnabled)
}

// Get returns the named subsystem if it is active.
func (r *Registry) Get(name string) (Subsystem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byName[name]
	return sub, ok
}
