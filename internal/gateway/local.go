package gateway

import (
	"context"
	"sync"

	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
)

// Local is an in-process gateway: item holdings, an identity table, a world
// set, and a hook bus, all in memory. It backs the standalone daemon mode
// and tests; an embedding host server supplies its own implementations.
type Local struct {
	mu           sync.Mutex
	holdings     map[string]map[string]int // playerID -> item key -> count
	names        map[string]string         // playerID -> display name
	ids          map[string]string         // display name -> playerID
	worlds       map[string]bool
	onConnect    []ConnectHandler
	onDisconnect []DisconnectHandler
}

// NewLocal creates an empty in-process gateway.
func NewLocal() *Local {
	return &Local{
		holdings: make(map[string]map[string]int),
		names:    make(map[string]string),
		ids:      make(map[string]string),
		worlds:   make(map[string]bool),
	}
}

func itemKey(item model.ItemDescriptor) string {
	if item.Meta == "" {
		return item.Type
	}
	return item.Type + "#" + item.Meta
}

// -----------------------------------------------------------------------------
// Inventory
// -----------------------------------------------------------------------------

func (g *Local) Give(ctx context.Context, playerID string, item model.ItemDescriptor, qty int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, ok := g.holdings[playerID]
	if !ok {
		h = make(map[string]int)
		g.holdings[playerID] = h
	}
	h[itemKey(item)] += qty
	return nil
}

func (g *Local) Take(ctx context.Context, playerID string, item model.ItemDescriptor, qty int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := itemKey(item)
	h := g.holdings[playerID]
	if h[key] < qty {
		return ErrInsufficientStock
	}
	h[key] -= qty
	if h[key] == 0 {
		delete(h, key)
	}
	return nil
}

// Holdings returns how many units of item the player holds.
func (g *Local) Holdings(playerID string, item model.ItemDescriptor) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holdings[playerID][itemKey(item)]
}

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

func (g *Local) Name(playerID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	name, ok := g.names[playerID]
	return name, ok
}

func (g *Local) ID(name string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.ids[name]
	return id, ok
}

// -----------------------------------------------------------------------------
// Worlds
// -----------------------------------------------------------------------------

// AddWorld marks a world as loaded.
func (g *Local) AddWorld(world string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.worlds[world] = true
}

// RemoveWorld marks a world as unloaded.
func (g *Local) RemoveWorld(world string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.worlds, world)
}

func (g *Local) Resolve(world string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.worlds[world]
}

// -----------------------------------------------------------------------------
// Hooks
// -----------------------------------------------------------------------------

func (g *Local) OnPlayerConnect(h ConnectHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onConnect = append(g.onConnect, h)
}

func (g *Local) OnPlayerDisconnect(h DisconnectHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onDisconnect = append(g.onDisconnect, h)
}

// PlayerConnected records the identity and fires connect handlers.
func (g *Local) PlayerConnected(playerID, name string) {
	g.mu.Lock()
	g.names[playerID] = name
	g.ids[name] = playerID
	handlers := append([]ConnectHandler(nil), g.onConnect...)
	g.mu.Unlock()

	for _, h := range handlers {
		h(playerID, name)
	}
}

// PlayerDisconnected fires disconnect handlers.
func (g *Local) PlayerDisconnected(playerID string) {
	g.mu.Lock()
	handlers := append([]DisconnectHandler(nil), g.onDisconnect...)
	g.mu.Unlock()

	for _, h := range handlers {
		h(playerID)
	}
}
