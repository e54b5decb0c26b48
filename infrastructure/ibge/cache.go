package ibge

import (
	"context"
	"sync"
	"time"

	"github.com/lb-conn/nfse-dps/application/ports"
)

type cacheEntry struct {
	code    string
	expires time.Time
}

// Cache memoizes successful lookups of next for ttl. Failures are not cached.
type Cache struct {
	next ports.MunicipalityResolver
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCache(next ports.MunicipalityResolver, ttl time.Duration) *Cache {
	return &Cache{next: next, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *Cache) ResolveMunicipality(ctx context.Context, city, state string) (string, error) {
	key := Key(city, state)
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Before(e.expires) {
		return e.code, nil
	}

	code, err := c.next.ResolveMunicipality(ctx, city, state)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{code: code, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return code, nil
}
