package profile

import (
	"context"
	"sync"

	"reverie/internal/domain/repositories"
)

// ActiveCache memoizes the active profile id process-wide. Reads are lock
// cheap; activation, duplication, and deletion invalidate it explicitly and
// the next read reloads from the store.
type ActiveCache struct {
	repo repositories.ProfileRepository

	mu     sync.RWMutex
	id     int64
	loaded bool
}

// NewActiveCache creates an active-profile cache
func NewActiveCache(repo repositories.ProfileRepository) *ActiveCache {
	return &ActiveCache{repo: repo}
}

// ActiveID returns the active profile id, loading it on first use.
func (c *ActiveCache) ActiveID(ctx context.Context) (int64, error) {
	c.mu.RLock()
	if c.loaded {
		id := c.id
		c.mu.RUnlock()
		return id, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.id, nil
	}

	profile, err := c.repo.GetActive(ctx)
	if err != nil {
		return 0, err
	}

	c.id = profile.ID
	c.loaded = true
	return c.id, nil
}

// Invalidate drops the cached id; the next ActiveID reloads it.
func (c *ActiveCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}
