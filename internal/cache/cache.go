package cache

import (
	"time"

	"feedbrief/internal/models"

	gocache "github.com/patrickmn/go-cache"
)

const recentFeedsKey = "feeds:recent"

// FeedsCache holds the read endpoint payload for a short time so repeated
// page loads do not hit the store. A non-positive TTL disables it.
type FeedsCache struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewFeedsCache(ttl time.Duration) *FeedsCache {
	cleanup := 10 * time.Minute
	if ttl > 0 && ttl < cleanup {
		cleanup = ttl * 2
	}
	return &FeedsCache{
		cache: gocache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

// Enabled reports whether responses are cached at all
func (c *FeedsCache) Enabled() bool {
	return c.ttl > 0
}

// TTL is how long a stored payload stays fresh
func (c *FeedsCache) TTL() time.Duration {
	return c.ttl
}

func (c *FeedsCache) Get() (models.FeedsResponse, bool) {
	if !c.Enabled() {
		return models.FeedsResponse{}, false
	}

	cached, found := c.cache.Get(recentFeedsKey)
	if !found {
		return models.FeedsResponse{}, false
	}
	resp, ok := cached.(models.FeedsResponse)
	return resp, ok
}

func (c *FeedsCache) Set(resp models.FeedsResponse) {
	if !c.Enabled() {
		return
	}
	c.cache.Set(recentFeedsKey, resp, c.ttl)
}

// Invalidate drops the cached payload, e.g. after a run stored new articles
func (c *FeedsCache) Invalidate() {
	c.cache.Delete(recentFeedsKey)
}
