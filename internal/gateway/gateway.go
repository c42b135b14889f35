// Package gateway declares the boundary interfaces the economy engine
// consumes from the host game server: inventory transfer, identity lookup,
// world resolution, and player connect/disconnect hooks. The engine owns no
// event bus and renders no items; it only calls through these.
package gateway

import (
	"context"
	"errors"

	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
)

var (
	// ErrInsufficientStock: a Take found fewer items than requested.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInsufficientSpace: a Give found no room in the target holdings.
	ErrInsufficientSpace = errors.New("insufficient space")
)

// Inventory moves items in and out of player holdings.
type Inventory interface {
	// Give transfers qty units of item to the player.
	Give(ctx context.Context, playerID string, item model.ItemDescriptor, qty int) error
	// Take removes qty units of item from the player.
	Take(ctx context.Context, playerID string, item model.ItemDescriptor, qty int) error
}

// Identity resolves player ids to display names and back.
type Identity interface {
	Name(playerID string) (string, bool)
	ID(name string) (string, bool)
}

// WorldResolver reports whether a world identifier is currently loaded.
// An unloaded world is not an error; shop transactions against it fail
// with a location error instead.
type WorldResolver interface {
	Resolve(world string) bool
}

// WorldResolverFunc is a function adapter for WorldResolver.
type WorldResolverFunc func(world string) bool

func (f WorldResolverFunc) Resolve(world string) bool {
	return f(world)
}

// ConnectHandler is invoked when a player joins.
type ConnectHandler func(playerID, name string)

// DisconnectHandler is invoked when a player leaves.
type DisconnectHandler func(playerID string)

// Hooks is the host server's event surface the engine subscribes to.
type Hooks interface {
	OnPlayerConnect(ConnectHandler)
	OnPlayerDisconnect(DisconnectHandler)
}
