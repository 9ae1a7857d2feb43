package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-authgate/grantd/internal/cache"
	"github.com/go-authgate/grantd/internal/core"
	"github.com/go-authgate/grantd/internal/models"
)

var _ core.ClientStore = (*CachedClientStore)(nil)

// CachedClientStore puts a cache in front of another ClientStore.
// Unknown clients are not cached.
type CachedClientStore struct {
	next    core.ClientStore
	cache   core.Cache[models.RegisteredClient]
	ttl     time.Duration
	metrics core.Recorder
}

func NewCachedClientStore(
	next core.ClientStore,
	cache core.Cache[models.RegisteredClient],
	ttl time.Duration,
	metrics core.Recorder,
) *CachedClientStore {
	return &CachedClientStore{next: next, cache: cache, ttl: ttl, metrics: metrics}
}

func (c *CachedClientStore) Load(ctx context.Context, clientID string) (*models.RegisteredClient, error) {
	if client, err := c.cache.Get(ctx, clientID); err == nil {
		c.metrics.RecordCacheLookup(true)
		return &client, nil
	}
	c.metrics.RecordCacheLookup(false)

	client, err := c.cache.GetWithFetch(ctx, clientID, c.ttl,
		func(ctx context.Context, key string) (models.RegisteredClient, error) {
			loaded, err := c.next.Load(ctx, key)
			if err != nil {
				return models.RegisteredClient{}, err
			}
			return *loaded, nil
		},
	)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheUnavailable) && !errors.Is(err, cache.ErrInvalidValue) {
			return nil, err
		}
		// Cache trouble should not take the token endpoint down.
		log.Printf("[Store] client cache unavailable for %s: %v", clientID, err)
		return c.next.Load(ctx, clientID)
	}
	return &client, nil
}

// Invalidate drops a cached client after its record changed.
func (c *CachedClientStore) Invalidate(ctx context.Context, clientID string) error {
	return c.cache.Delete(ctx, clientID)
}
