package repositories

import (
	"context"
	"fmt"

	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/dgraph-io/ristretto/v2"
)

// CachedUsers answers GetUserByID from memory in front of another
// UserStore. Account records are never updated or deleted, so cached
// entries need no invalidation.
type CachedUsers struct {
	UserStore
	cache *ristretto.Cache[string, models.User]
}

var _ UserStore = (*CachedUsers)(nil)

// NewCachedUsers keeps up to maxEntries accounts. Every entry costs 1, so
// ristretto's per-item overhead must stay out of the budget.
func NewCachedUsers(next UserStore, maxEntries int64) (*CachedUsers, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, models.User]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("user cache: %w", err)
	}
	return &CachedUsers{UserStore: next, cache: cache}, nil
}

func (c *CachedUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := c.cache.Get(id); ok {
		return &u, nil
	}
	user, err := c.UserStore.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(id, *user, 1)
	return user, nil
}

func (c *CachedUsers) Close() {
	c.cache.Close()
}
