package store

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// ConfigCache is a read-through cache over the configuration singleton. It is
// a constructed service passed to handlers, not hidden package state, so the
// TTL and clock are injectable and Invalidate is an explicit operation tied
// to config writes.
type ConfigCache struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time

	mu        sync.RWMutex
	cached    *Config
	fetchedAt time.Time
}

// DefaultConfigTTL is the cache lifetime used by the API server.
const DefaultConfigTTL = 5 * time.Minute

// NewConfigCache creates a ConfigCache over the given repository.
func NewConfigCache(repo Repository, ttl time.Duration) *ConfigCache {
	return &ConfigCache{repo: repo, ttl: ttl, now: time.Now}
}

// Get returns the cached config, refreshing it from the repository when the
// TTL has elapsed or nothing is cached yet.
func (c *ConfigCache) Get(ctx context.Context) (*Config, error) {
	c.mu.RLock()
	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		cfg := c.cached
		c.mu.RUnlock()
		return cfg, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed while we upgraded the lock.
	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.cached, nil
	}

	cfg, err := c.repo.Get(ctx)
	if err != nil {
		// Serve the stale copy rather than failing the request outright.
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, errors.Wrap(err, "load store config")
	}

	c.cached = cfg
	c.fetchedAt = c.now()
	return cfg, nil
}

// Invalidate drops the cached copy. Call after any configuration write so the
// next read observes it immediately instead of after the TTL.
func (c *ConfigCache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
