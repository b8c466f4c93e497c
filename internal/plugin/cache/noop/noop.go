// Package noop provides a channel cache that caches nothing. Selected with
// --cache-kind none; every lookup falls through to the store.
package noop

import (
	"context"

	"github.com/chirino/chat-service/internal/model"
	registrycache "github.com/chirino/chat-service/internal/registry/cache"
)

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func init() {
	registrycache.Register(registrycache.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (registrycache.ChannelCache, error) {
			return Cache{}, nil
		},
	})
}

// Cache implements registrycache.ChannelCache by never holding anything.
type Cache struct{}

func (Cache) Get(string) (*model.Channel, bool)       { return nil, false }
func (Cache) GetByName(string) (*model.Channel, bool) { return nil, false }
func (Cache) Put(*model.Channel)                      {}
func (Cache) Invalidate(*model.Channel)               {}
