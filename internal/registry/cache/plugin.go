package cache

import (
	"context"
	"fmt"

	"github.com/chirino/chat-service/internal/model"
)

// ChannelCache caches immutable channel metadata by id and by name. Channels
// never change after creation (no rename, no cap resize), so the only
// invalidation point is deletion. Capacity checks and sequence assignment
// must not consult the cache; those read inside their transaction.
type ChannelCache interface {
	Get(channelID string) (*model.Channel, bool)
	GetByName(name string) (*model.Channel, bool)
	Put(ch *model.Channel)
	Invalidate(ch *model.Channel)
}

// Loader creates a ChannelCache from config carried in the context.
type Loader func(ctx context.Context) (ChannelCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q", name)
}

type contextKey struct{}

// WithContext returns a context carrying the given channel cache so store
// loaders can pick it up.
func WithContext(ctx context.Context, c ChannelCache) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext retrieves the channel cache from the context, or nil.
func FromContext(ctx context.Context) ChannelCache {
	c, _ := ctx.Value(contextKey{}).(ChannelCache)
	return c
}
