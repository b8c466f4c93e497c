// Package ristretto caches channel metadata in-process. Channel rows are
// immutable after creation, so the cache only has to drop entries when a
// channel is deleted.
package ristretto

import (
	"context"
	"fmt"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/model"
	registrycache "github.com/chirino/chat-service/internal/registry/cache"
	"github.com/dgraph-io/ristretto/v2"
)

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func init() {
	registrycache.Register(registrycache.Plugin{
		Name: "ristretto",
		Loader: func(ctx context.Context) (registrycache.ChannelCache, error) {
			cfg := config.FromContext(ctx)
			maxEntries := int64(10_000)
			if cfg != nil && cfg.CacheMaxEntries > 0 {
				maxEntries = cfg.CacheMaxEntries
			}
			inner, err := ristretto.NewCache(&ristretto.Config[string, *model.Channel]{
				NumCounters: maxEntries * 10,
				MaxCost:     maxEntries,
				BufferItems: 64,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create channel cache: %w", err)
			}
			return &Cache{inner: inner}, nil
		},
	})
}

// Cache implements registrycache.ChannelCache over a ristretto cache, keyed
// both by channel id and by name.
type Cache struct {
	inner *ristretto.Cache[string, *model.Channel]
}

func (c *Cache) Get(channelID string) (*model.Channel, bool) {
	return c.inner.Get("id:" + channelID)
}

func (c *Cache) GetByName(name string) (*model.Channel, bool) {
	return c.inner.Get("name:" + name)
}

func (c *Cache) Put(ch *model.Channel) {
	c.inner.Set("id:"+ch.ChannelID.String(), ch, 1)
	c.inner.Set("name:"+ch.Name, ch, 1)
}

// Invalidate drops both keys and waits for the drop to apply, so a deleted
// channel is never served from cache afterwards.
func (c *Cache) Invalidate(ch *model.Channel) {
	c.inner.Del("id:" + ch.ChannelID.String())
	c.inner.Del("name:" + ch.Name)
	c.inner.Wait()
}
