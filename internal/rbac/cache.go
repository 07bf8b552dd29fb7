package rbac

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Cache holds resolved permission sets keyed by role ID. Entries expire on
// their own; mutations additionally delete the affected role's entry so
// permission changes are visible immediately.
type Cache interface {
	Get(roleID string) ([]string, bool)
	Set(roleID string, permissions []string)
	Delete(roleID string)
}

const cacheShards = 16

// evictionPercentage is how much of a shard sturdyc frees when it fills up.
const evictionPercentage = 10

type memoryCache struct {
	client *sturdyc.Client[[]string]
}

// NewMemoryCache returns an in-process TTL cache. Options are passed through
// to sturdyc; tests inject a clock with sturdyc.WithClock.
func NewMemoryCache(capacity int, ttl time.Duration, opts ...sturdyc.Option) Cache {
	return &memoryCache{
		client: sturdyc.New[[]string](capacity, cacheShards, ttl, evictionPercentage, opts...),
	}
}

func (c *memoryCache) Get(roleID string) ([]string, bool) {
	return c.client.Get(roleID)
}

func (c *memoryCache) Set(roleID string, permissions []string) {
	c.client.Set(roleID, permissions)
}

func (c *memoryCache) Delete(roleID string) {
	c.client.Delete(roleID)
}
